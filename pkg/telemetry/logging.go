package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// LoggingConfig controls the process-wide slog setup.
type LoggingConfig struct {
	// Debug lowers the level to debug.
	Debug bool
	// Env is attached to every record.
	Env string
	// LokiURL, when set, ships every record to a Loki push endpoint in
	// addition to stderr.
	LokiURL string
}

// InitLogging installs the default slog logger: JSON to stderr, optionally
// teed to Loki. Returns a flush function to call on shutdown.
func InitLogging(cfg LoggingConfig) func() {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	flush := func() {}

	if cfg.LokiURL != "" {
		loki := newLokiHandler(cfg.LokiURL, cfg.Env)
		handler = &teeHandler{primary: handler, secondary: loki}
		flush = loki.Flush
	}

	slog.SetDefault(slog.New(handler).With("env", cfg.Env))
	return flush
}

// teeHandler duplicates records to two handlers. The secondary handler's
// errors are swallowed so log shipping can never break the service.
type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level)
}

func (t *teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	_ = t.secondary.Handle(ctx, rec.Clone())
	return t.primary.Handle(ctx, rec)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: t.primary.WithAttrs(attrs), secondary: t.secondary.WithAttrs(attrs)}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: t.primary.WithGroup(name), secondary: t.secondary.WithGroup(name)}
}

// lokiHandler batches records and pushes them to Loki's HTTP API.
type lokiHandler struct {
	url    string
	labels map[string]string
	client *http.Client

	mu      sync.Mutex
	pending []lokiEntry
	timer   *time.Timer
}

type lokiEntry struct {
	ts   time.Time
	line string
}

const lokiBatchWindow = time.Second

func newLokiHandler(url, env string) *lokiHandler {
	return &lokiHandler{
		url:    url,
		labels: map[string]string{"service": "chatflow", "env": env},
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *lokiHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lokiHandler) Handle(_ context.Context, rec slog.Record) error {
	fields := map[string]any{
		"level": rec.Level.String(),
		"msg":   rec.Message,
	}
	rec.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})
	line, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.pending = append(h.pending, lokiEntry{ts: rec.Time, line: string(line)})
	if h.timer == nil {
		h.timer = time.AfterFunc(lokiBatchWindow, h.Flush)
	}
	h.mu.Unlock()
	return nil
}

func (h *lokiHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *lokiHandler) WithGroup(string) slog.Handler      { return h }

// Flush pushes the pending batch. Safe to call concurrently.
func (h *lokiHandler) Flush() {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	values := make([][2]string, 0, len(batch))
	for _, e := range batch {
		values = append(values, [2]string{strconv.FormatInt(e.ts.UnixNano(), 10), e.line})
	}
	payload := map[string]any{
		"streams": []map[string]any{{
			"stream": h.labels,
			"values": values,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	resp, err := h.client.Post(fmt.Sprintf("%s/loki/api/v1/push", h.url), "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}
