package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatflow-io/chatflow/pkg/events"
)

// PoolHealth summarizes the render pool for the health endpoint.
type PoolHealth struct {
	IsHealthy  bool  `json:"is_healthy"`
	Workers    int   `json:"workers"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	QueueDepth int   `json:"queue_depth"`
}

// WorkerPool drains one bus subscription with a fixed set of workers.
type WorkerPool struct {
	client   RenderClient
	intents  <-chan events.OutboundIntent
	workers  int
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu        sync.Mutex
	started   bool
	delivered int64
	failed    int64
}

// NewWorkerPool creates a pool over the given bus subscription.
func NewWorkerPool(client RenderClient, intents <-chan events.OutboundIntent, workers int) *WorkerPool {
	if client == nil {
		panic("queue: render client is required")
	}
	if workers <= 0 {
		workers = 2
	}
	return &WorkerPool{
		client:  client,
		intents: intents,
		workers: workers,
		stopCh:  make(chan struct{}),
		logger:  slog.Default().With("component", "render-pool"),
	}
}

// Start spawns the worker goroutines. Safe to call once.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.logger.Warn("Render pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, fmt.Sprintf("render-worker-%d", i))
	}
	p.logger.Info("Render pool started", "workers", p.workers)
}

// Stop signals workers to finish and waits for them.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	p.logger.Info("Render pool stopped")
}

func (p *WorkerPool) run(ctx context.Context, id string) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case intent, ok := <-p.intents:
			if !ok {
				return
			}
			p.deliver(ctx, id, intent)
		}
	}
}

func (p *WorkerPool) deliver(ctx context.Context, id string, intent events.OutboundIntent) {
	deliverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := p.client.Render(deliverCtx, intent)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		p.logger.Error("Intent delivery failed",
			"worker", id, "recipient", intent.Recipient, "node_id", intent.NodeID, "error", err)
		return
	}
	p.delivered++
}

// Health reports delivery counters and current backlog.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &PoolHealth{
		IsHealthy:  p.started,
		Workers:    p.workers,
		Delivered:  p.delivered,
		Failed:     p.failed,
		QueueDepth: len(p.intents),
	}
}
