package queue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/events"
)

// fakeRenderClient records rendered intents and can fail on demand.
type fakeRenderClient struct {
	mu       sync.Mutex
	rendered []events.OutboundIntent
	err      error
}

func (c *fakeRenderClient) Render(_ context.Context, intent events.OutboundIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.rendered = append(c.rendered, intent)
	return nil
}

func (c *fakeRenderClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rendered)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerPoolDeliversIntents(t *testing.T) {
	bus := events.NewBus()
	client := &fakeRenderClient{}
	pool := NewWorkerPool(client, bus.Subscribe(16), 3)

	pool.Start(context.Background())
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		bus.Publish(events.OutboundIntent{NodeID: "n1", Recipient: "+1555"})
	}

	waitFor(t, func() bool { return client.count() == 5 })

	health := pool.Health()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, 3, health.Workers)
	assert.Equal(t, int64(5), health.Delivered)
	assert.Equal(t, int64(0), health.Failed)
}

func TestWorkerPoolCountsFailures(t *testing.T) {
	bus := events.NewBus()
	client := &fakeRenderClient{err: errors.New("connector down")}
	pool := NewWorkerPool(client, bus.Subscribe(16), 1)

	pool.Start(context.Background())
	defer pool.Stop()

	bus.Publish(events.OutboundIntent{NodeID: "n1"})

	waitFor(t, func() bool {
		return pool.Health().Failed == 1
	})
	assert.Equal(t, int64(0), pool.Health().Delivered)
}

func TestWorkerPoolStopsOnClosedBus(t *testing.T) {
	bus := events.NewBus()
	pool := NewWorkerPool(&fakeRenderClient{}, bus.Subscribe(1), 2)

	pool.Start(context.Background())
	bus.Close()
	// Workers exit when the subscription closes; Stop returns promptly.
	pool.Stop()
}

func TestHTTPRenderClient(t *testing.T) {
	t.Run("posts intent as JSON", func(t *testing.T) {
		var gotContentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		client := NewHTTPRenderClient(server.URL, time.Second)
		err := client.Render(context.Background(), events.OutboundIntent{NodeID: "n1"})
		require.NoError(t, err)
		assert.Equal(t, "application/json", gotContentType)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewHTTPRenderClient(server.URL, time.Second)
		err := client.Render(context.Background(), events.OutboundIntent{NodeID: "n1"})
		assert.ErrorContains(t, err, "502")
	})
}
