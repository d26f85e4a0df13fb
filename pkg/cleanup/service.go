// Package cleanup provides data retention for processed webhooks and
// finished delay timers.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatflow-io/chatflow/pkg/database"
)

// Config holds retention settings.
type Config struct {
	// WebhookRetention is how long processed webhooks are kept.
	WebhookRetention time.Duration
	// DelayRetention is how long processed/cancelled delay timers are kept.
	DelayRetention time.Duration
	// Interval is how often the cleanup loop runs.
	Interval time.Duration
}

// DefaultConfig keeps processed documents for a week and runs hourly.
func DefaultConfig() Config {
	return Config{
		WebhookRetention: 7 * 24 * time.Hour,
		DelayRetention:   7 * 24 * time.Hour,
		Interval:         time.Hour,
	}
}

// Service periodically enforces retention policies:
//   - Removes processed webhook documents past their retention window
//   - Removes finished delay timers past their retention window
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	config Config
	store  database.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, store database.Store) *Service {
	return &Service{
		config: cfg,
		store:  store,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"webhook_retention", s.config.WebhookRetention,
		"delay_retention", s.config.DelayRetention,
		"interval", s.config.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeWebhooks(ctx)
	s.purgeDelays(ctx)
}

func (s *Service) purgeWebhooks(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.WebhookRetention)
	count, err := s.store.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: webhook purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged processed webhooks", "count", count)
	}
}

func (s *Service) purgeDelays(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.DelayRetention)
	count, err := s.store.PurgeFinishedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: delay timer purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged finished delay timers", "count", count)
	}
}
