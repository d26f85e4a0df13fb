// Package scheduler runs the background loops that feed synthetic events
// into the engine: delay-timer completions and time-based flow triggers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// DefaultTickInterval is used when DELAY_TICK_SECONDS is not configured.
const DefaultTickInterval = 20 * time.Second

const defaultBatchSize = 100

// Sink receives the synthetic webhook events the schedulers produce. The
// webhook service implements it, so scheduled events take the same path
// as connector traffic.
type Sink interface {
	ProcessSynthetic(ctx context.Context, msg *models.WebhookMessage) error
}

// DelayConfig configures the delay scheduler.
type DelayConfig struct {
	Store     database.DelayStore
	Sink      Sink
	Logger    *slog.Logger
	Interval  time.Duration
	BatchSize int
}

// DelayScheduler claims due delay timers each tick and synthesizes
// delay_complete events. Claiming is atomic in the store, so running one
// scheduler per replica is safe.
type DelayScheduler struct {
	store     database.DelayStore
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDelayScheduler creates a stopped scheduler.
func NewDelayScheduler(cfg DelayConfig) *DelayScheduler {
	if cfg.Store == nil {
		panic("scheduler: delay store is required")
	}
	if cfg.Sink == nil {
		panic("scheduler: sink is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "delay-scheduler")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &DelayScheduler{
		store:     cfg.Store,
		sink:      cfg.Sink,
		logger:    logger,
		interval:  interval,
		batchSize: batch,
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *DelayScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("Delay scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for the current tick to finish.
func (s *DelayScheduler) Stop() {
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
	s.logger.Info("Delay scheduler stopped")
}

// Running reports whether the loop is active, for health checks.
func (s *DelayScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *DelayScheduler) loop(ctx context.Context) {
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

// Tick claims and fires every due timer. Exported so tests can drive the
// scheduler without waiting on the ticker.
func (s *DelayScheduler) Tick(ctx context.Context) {
	timers, err := s.store.ClaimDue(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		s.logger.Error("Failed to claim due delay timers", "error", err)
	}
	for i := range timers {
		s.fire(ctx, &timers[i])
	}
}

func (s *DelayScheduler) fire(ctx context.Context, timer *models.DelayTimer) {
	s.logger.Info("Delay timer fired",
		"timer_id", timer.ID, "sender", timer.Sender, "node_id", timer.NodeID)

	msg := &models.WebhookMessage{
		ID:          uuid.NewString(),
		Sender:      timer.Sender,
		BrandID:     timer.BrandID,
		Channel:     models.ChannelDelayComplete,
		MessageType: models.ChannelDelayComplete,
		MessageBody: map[string]any{"user_state_id": timer.UserStateID},
	}
	if err := s.sink.ProcessSynthetic(ctx, msg); err != nil {
		// Release the claim so the next tick retries; the engine drops
		// stale completions, so a retry after an interrupt is a no-op.
		s.logger.Error("Failed to process delay completion, releasing timer",
			"timer_id", timer.ID, "error", err)
		if relErr := s.store.ReleaseTimer(ctx, timer.ID); relErr != nil {
			s.logger.Error("Failed to release delay timer",
				"timer_id", timer.ID, "error", relErr)
		}
		return
	}
	if err := s.store.MarkProcessed(ctx, timer.ID); err != nil {
		s.logger.Error("Failed to mark delay timer processed",
			"timer_id", timer.ID, "error", err)
	}
}
