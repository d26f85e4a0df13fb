// Package channels normalizes channel-specific webhook payloads into the
// single message shape the engine consumes. Unknown channels fall back to
// the generic normalizer; malformed bodies normalize to an empty message.
package channels

import "log/slog"

// Message is the channel-agnostic view of an inbound event.
type Message struct {
	Text             string
	Subject          string
	Body             string
	ButtonText       string
	ButtonPayload    string
	InteractiveType  string
	InteractiveValue string
	MediaURL         string
	MediaType        string

	// Synthetic event fields.
	UserStateID string
	FlowID      string

	Raw map[string]any
}

// TextContent returns the reply text the engine should match against.
// Interactive selections win over free text.
func (m *Message) TextContent() string {
	if m.ButtonText != "" {
		return m.ButtonText
	}
	if m.InteractiveValue != "" {
		return m.InteractiveValue
	}
	if m.Text != "" {
		return m.Text
	}
	return m.Body
}

// HasMedia reports whether the message carries a media attachment.
func (m *Message) HasMedia() bool { return m.MediaURL != "" }

// Normalizer converts one channel's payloads.
type Normalizer interface {
	Channel() string
	Normalize(messageType string, body map[string]any) Message
}

// Registry dispatches to the normalizer registered for a channel.
type Registry struct {
	normalizers map[string]Normalizer
	fallback    Normalizer
	logger      *slog.Logger
}

// NewRegistry builds a registry with every built-in normalizer installed.
func NewRegistry() *Registry {
	r := &Registry{
		normalizers: make(map[string]Normalizer),
		fallback:    genericNormalizer{},
		logger:      slog.Default().With("component", "channels"),
	}
	for _, n := range []Normalizer{
		whatsappNormalizer{},
		emailNormalizer{},
		telegramNormalizer{},
		smsNormalizer{},
		socialNormalizer{channel: "instagram"},
		socialNormalizer{channel: "facebook"},
		genericNormalizer{},
		delayCompleteNormalizer{},
		scheduledTriggerNormalizer{},
	} {
		r.normalizers[n.Channel()] = n
	}
	return r
}

// Register installs or replaces a normalizer for a channel.
func (r *Registry) Register(n Normalizer) {
	r.normalizers[n.Channel()] = n
}

// Normalize converts the payload using the channel's normalizer, falling
// back to generic for channels it has never seen.
func (r *Registry) Normalize(channel, messageType string, body map[string]any) Message {
	n, ok := r.normalizers[channel]
	if !ok {
		r.logger.Debug("Unknown channel, using generic normalizer", "channel", channel)
		n = r.fallback
	}
	msg := n.Normalize(messageType, body)
	msg.Raw = body
	return msg
}

// stringField walks the body for the first non-empty string at any of the
// given keys. Keys may be dotted paths.
func stringField(body map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := lookupPath(body, key); v != "" {
			return v
		}
	}
	return ""
}

func lookupPath(body map[string]any, path string) string {
	current := any(body)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			m, ok := current.(map[string]any)
			if !ok {
				return ""
			}
			current, ok = m[path[start:i]]
			if !ok {
				return ""
			}
			start = i + 1
		}
	}
	s, _ := current.(string)
	return s
}
