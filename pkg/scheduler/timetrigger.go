package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Named recurrence patterns accepted alongside raw cron expressions.
var namedRecurrences = map[string]string{
	"daily":   "@daily",
	"weekly":  "@weekly",
	"monthly": "@monthly",
	"hourly":  "@hourly",
}

// ParseRecurrence resolves a schedule's recurrence (a named pattern or a
// cron expression) into a cron schedule.
func ParseRecurrence(recurrence string) (cron.Schedule, error) {
	expr := recurrence
	if named, ok := namedRecurrences[recurrence]; ok {
		expr = named
	}
	return cron.ParseStandard(expr)
}

// TimeTriggerConfig configures the time-trigger scheduler.
type TimeTriggerConfig struct {
	Store    database.ScheduleStore
	Sink     Sink
	Logger   *slog.Logger
	Interval time.Duration
}

// TimeTriggerScheduler fires scheduled flow starts: each tick it claims
// due schedules and synthesizes a scheduled_trigger event per target user.
type TimeTriggerScheduler struct {
	store    database.ScheduleStore
	sink     Sink
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewTimeTriggerScheduler creates a stopped scheduler.
func NewTimeTriggerScheduler(cfg TimeTriggerConfig) *TimeTriggerScheduler {
	if cfg.Store == nil {
		panic("scheduler: schedule store is required")
	}
	if cfg.Sink == nil {
		panic("scheduler: sink is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "time-trigger-scheduler")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &TimeTriggerScheduler{
		store:    cfg.Store,
		sink:     cfg.Sink,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the tick loop.
func (s *TimeTriggerScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("Time-trigger scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for the current tick to finish.
func (s *TimeTriggerScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Time-trigger scheduler stopped")
}

// Running reports whether the loop is active.
func (s *TimeTriggerScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *TimeTriggerScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick claims due schedules and fires one event per target user. Exported
// for tests.
func (s *TimeTriggerScheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()
	claimed, err := s.store.ClaimDueSchedules(ctx, now, func(sched *models.ScheduledTrigger) time.Time {
		next, err := s.nextRun(sched, now)
		if err != nil {
			s.logger.Error("Invalid recurrence, disabling advance for an hour",
				"schedule_id", sched.ID, "recurrence", sched.Recurrence, "error", err)
			return now.Add(time.Hour)
		}
		return next
	})
	if err != nil {
		s.logger.Error("Failed to claim due schedules", "error", err)
		return
	}
	for i := range claimed {
		s.fire(ctx, &claimed[i])
	}
}

func (s *TimeTriggerScheduler) nextRun(sched *models.ScheduledTrigger, now time.Time) (time.Time, error) {
	schedule, err := ParseRecurrence(sched.Recurrence)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now), nil
}

func (s *TimeTriggerScheduler) fire(ctx context.Context, sched *models.ScheduledTrigger) {
	s.logger.Info("Scheduled trigger fired",
		"schedule_id", sched.ID, "flow_id", sched.FlowID, "targets", len(sched.TargetUsers))

	for _, target := range sched.TargetUsers {
		msg := &models.WebhookMessage{
			ID:          uuid.NewString(),
			Sender:      target,
			BrandID:     sched.BrandID,
			Channel:     models.ChannelScheduledTrigger,
			MessageType: models.ChannelScheduledTrigger,
			MessageBody: map[string]any{"flow_id": sched.FlowID},
		}
		if err := s.sink.ProcessSynthetic(ctx, msg); err != nil {
			s.logger.Error("Failed to process scheduled trigger",
				"schedule_id", sched.ID, "target", target, "error", err)
		}
	}
}
