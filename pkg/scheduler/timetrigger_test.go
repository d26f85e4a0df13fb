package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func TestParseRecurrence(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	t.Run("named patterns", func(t *testing.T) {
		for _, name := range []string{"hourly", "daily", "weekly", "monthly"} {
			schedule, err := ParseRecurrence(name)
			require.NoError(t, err, name)
			assert.True(t, schedule.Next(now).After(now), name)
		}
	})

	t.Run("raw cron expression", func(t *testing.T) {
		schedule, err := ParseRecurrence("0 9 * * 1")
		require.NoError(t, err)
		next := schedule.Next(now)
		assert.Equal(t, time.Monday, next.Weekday())
		assert.Equal(t, 9, next.Hour())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ParseRecurrence("every full moon")
		assert.Error(t, err)
	})
}

func TestTimeTriggerSchedulerFiresPerTargetUser(t *testing.T) {
	store := database.NewMemory()
	sink := &captureSink{}
	sched := NewTimeTriggerScheduler(TimeTriggerConfig{Store: store, Sink: sink})
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveSchedule(ctx, &models.ScheduledTrigger{
		ID: "s1", FlowID: "f1", BrandID: 7, Recurrence: "daily",
		TargetUsers: []string{"+1555", "+1666"},
		NextRunAt:   now.Add(-time.Minute),
		Enabled:     true,
	}))

	sched.Tick(ctx)

	require.Len(t, sink.events, 2)
	senders := []string{sink.events[0].Sender, sink.events[1].Sender}
	assert.ElementsMatch(t, []string{"+1555", "+1666"}, senders)
	for _, evt := range sink.events {
		assert.Equal(t, models.ChannelScheduledTrigger, evt.Channel)
		assert.Equal(t, "f1", evt.MessageBody["flow_id"])
	}

	// The schedule advanced past now, so the next tick fires nothing.
	sched.Tick(ctx)
	assert.Len(t, sink.events, 2)
}

func TestTimeTriggerSchedulerSkipsDisabled(t *testing.T) {
	store := database.NewMemory()
	sink := &captureSink{}
	sched := NewTimeTriggerScheduler(TimeTriggerConfig{Store: store, Sink: sink})
	ctx := context.Background()

	require.NoError(t, store.SaveSchedule(ctx, &models.ScheduledTrigger{
		ID: "s1", FlowID: "f1", BrandID: 7, Recurrence: "daily",
		TargetUsers: []string{"+1555"},
		NextRunAt:   time.Now().UTC().Add(-time.Minute),
		Enabled:     false,
	}))

	sched.Tick(ctx)
	assert.Empty(t, sink.events)
}
