// Package queue delivers outbound intents to the channel connector. A
// worker pool drains the events bus and hands each intent to a render
// client; delivery failures are logged and dropped, never retried into
// the engine.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/version"
)

// RenderClient sends one intent to the outside world.
type RenderClient interface {
	Render(ctx context.Context, intent events.OutboundIntent) error
}

// HTTPRenderClient POSTs intents as JSON to the connector URL.
type HTTPRenderClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPRenderClient creates a client for the given connector endpoint.
func NewHTTPRenderClient(url string, timeout time.Duration) *HTTPRenderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRenderClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "render-client"),
	}
}

// Render posts the intent. Non-2xx responses are errors.
func (c *HTTPRenderClient) Render(ctx context.Context, intent events.OutboundIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post intent: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("connector returned %d", resp.StatusCode)
	}
	return nil
}

// NopRenderClient logs intents instead of delivering them. Used when no
// connector URL is configured.
type NopRenderClient struct {
	logger *slog.Logger
}

// NewNopRenderClient creates the logging-only client.
func NewNopRenderClient() *NopRenderClient {
	return &NopRenderClient{logger: slog.Default().With("component", "render-client")}
}

// Render logs the intent and succeeds.
func (c *NopRenderClient) Render(_ context.Context, intent events.OutboundIntent) error {
	c.logger.Info("Outbound intent (no connector configured)",
		"recipient", intent.Recipient, "kind", intent.Kind, "node_id", intent.NodeID)
	return nil
}
