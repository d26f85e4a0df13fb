package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(OutboundIntent{NodeID: "n1", Kind: IntentMessage})

	got := <-a
	assert.Equal(t, "n1", got.NodeID)
	assert.False(t, got.CreatedAt.IsZero())
	got = <-b
	assert.Equal(t, "n1", got.NodeID)

	published, dropped := bus.Stats()
	assert.Equal(t, int64(1), published)
	assert.Equal(t, int64(0), dropped)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Publish(OutboundIntent{NodeID: "n1"})
	bus.Publish(OutboundIntent{NodeID: "n2"})

	got := <-ch
	assert.Equal(t, "n1", got.NodeID)

	_, dropped := bus.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Close()
	_, open := <-ch
	assert.False(t, open)

	// Publishing and closing again are harmless.
	bus.Publish(OutboundIntent{NodeID: "n1"})
	bus.Close()

	// Subscribing after close yields a closed channel.
	late := bus.Subscribe(1)
	_, open = <-late
	require.False(t, open)
}
