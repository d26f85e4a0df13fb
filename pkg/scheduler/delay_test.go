package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// captureSink records the synthetic events the schedulers emit. It fails
// the next failNext calls before succeeding.
type captureSink struct {
	events   []*models.WebhookMessage
	failNext int
}

func (s *captureSink) ProcessSynthetic(_ context.Context, msg *models.WebhookMessage) error {
	if s.failNext > 0 {
		s.failNext--
		return errors.New("engine unavailable")
	}
	s.events = append(s.events, msg)
	return nil
}

func TestDelaySchedulerFiresDueTimers(t *testing.T) {
	store := database.NewMemory()
	sink := &captureSink{}
	sched := NewDelayScheduler(DelayConfig{Store: store, Sink: sink, Interval: time.Hour})
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.ArmTimer(ctx, &models.DelayTimer{
		ID: "t-due", UserStateID: "u1", Sender: "+1555", BrandID: 7,
		FlowID: "f1", NodeID: "delay", Status: models.DelayPending,
		CompletesAt: now.Add(-time.Second),
	}))
	require.NoError(t, store.ArmTimer(ctx, &models.DelayTimer{
		ID: "t-future", UserStateID: "u2", Sender: "+1666", BrandID: 7,
		FlowID: "f1", NodeID: "delay", Status: models.DelayPending,
		CompletesAt: now.Add(time.Hour),
	}))

	sched.Tick(ctx)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, models.ChannelDelayComplete, evt.Channel)
	assert.Equal(t, "+1555", evt.Sender)
	assert.Equal(t, 7, evt.BrandID)
	assert.Equal(t, "u1", evt.MessageBody["user_state_id"])

	// The fired timer settled to processed.
	fired, err := store.GetTimer(ctx, "t-due")
	require.NoError(t, err)
	assert.Equal(t, models.DelayProcessed, fired.Status)

	// A second tick finds nothing: the claim already flipped the timer.
	sched.Tick(ctx)
	assert.Len(t, sink.events, 1)
}

func TestDelaySchedulerRetriesFailedCompletions(t *testing.T) {
	store := database.NewMemory()
	sink := &captureSink{failNext: 1}
	sched := NewDelayScheduler(DelayConfig{Store: store, Sink: sink, Interval: time.Hour})
	ctx := context.Background()

	require.NoError(t, store.ArmTimer(ctx, &models.DelayTimer{
		ID: "t-retry", UserStateID: "u1", Sender: "+1555", BrandID: 7,
		FlowID: "f1", NodeID: "delay", Status: models.DelayPending,
		CompletesAt: time.Now().UTC().Add(-time.Second),
	}))

	// The completion event fails: the timer goes back to pending instead of
	// being lost.
	sched.Tick(ctx)
	assert.Empty(t, sink.events)
	timer, err := store.GetTimer(ctx, "t-retry")
	require.NoError(t, err)
	assert.Equal(t, models.DelayPending, timer.Status)

	// The next tick reclaims and fires it.
	sched.Tick(ctx)
	require.Len(t, sink.events, 1)
	timer, err = store.GetTimer(ctx, "t-retry")
	require.NoError(t, err)
	assert.Equal(t, models.DelayProcessed, timer.Status)
}

func TestDelaySchedulerStartStop(t *testing.T) {
	store := database.NewMemory()
	sched := NewDelayScheduler(DelayConfig{Store: store, Sink: &captureSink{}, Interval: time.Hour})

	assert.False(t, sched.Running())
	sched.Start(context.Background())
	assert.True(t, sched.Running())
	// Starting twice is a no-op.
	sched.Start(context.Background())

	sched.Stop()
	assert.False(t, sched.Running())
	// Stopping twice is a no-op.
	sched.Stop()
}
