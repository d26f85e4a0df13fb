// Package events carries outbound intents from the engine to delivery
// workers over an in-process bus. The engine decides WHAT to send; the
// render worker owns HOW it leaves the process.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// IntentKind says what the renderer should produce.
type IntentKind string

// Intent kinds.
const (
	IntentMessage  IntentKind = "message"
	IntentQuestion IntentKind = "question"
	IntentFallback IntentKind = "fallback"
)

// Choice is one button or list option of a question intent.
type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// OutboundIntent is the engine's instruction to render one node to one
// user. Delivery itself is outside the engine.
type OutboundIntent struct {
	Channel   string          `json:"channel"`
	Recipient string          `json:"recipient"`
	BrandID   int             `json:"brand_id"`
	FlowID    string          `json:"flow_id"`
	NodeID    string          `json:"node_id"`
	NodeType  models.NodeType `json:"node_type"`
	Kind      IntentKind      `json:"kind"`
	Text      string          `json:"text"`
	MediaURL  string          `json:"media_url,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Choices   []Choice        `json:"choices,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher is the engine-facing side of the bus.
type Publisher interface {
	Publish(intent OutboundIntent)
}

// Bus is a small in-process pub/sub for outbound intents. Publishing never
// blocks; intents to a full subscriber are dropped and logged, since a
// stalled renderer must not stall the engine.
type Bus struct {
	mu        sync.RWMutex
	subs      []chan OutboundIntent
	closed    bool
	logger    *slog.Logger
	published int64
	dropped   int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{logger: slog.Default().With("component", "events-bus")}
}

// Subscribe registers a new subscriber with the given buffer size.
func (b *Bus) Subscribe(buffer int) <-chan OutboundIntent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan OutboundIntent, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the intent to every subscriber without blocking.
func (b *Bus) Publish(intent OutboundIntent) {
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.published++
	for _, ch := range b.subs {
		select {
		case ch <- intent:
		default:
			b.dropped++
			b.logger.Warn("Subscriber full, dropping intent",
				"recipient", intent.Recipient, "node_id", intent.NodeID)
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Stats reports publish/drop counters for health reporting.
func (b *Bus) Stats() (published, dropped int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published, b.dropped
}
