package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhatsappNormalizer(t *testing.T) {
	r := NewRegistry()

	t.Run("plain text", func(t *testing.T) {
		msg := r.Normalize("whatsapp", "text", map[string]any{
			"text": map[string]any{"body": "hello"},
		})
		assert.Equal(t, "hello", msg.TextContent())
		assert.False(t, msg.HasMedia())
	})

	t.Run("quick reply button", func(t *testing.T) {
		msg := r.Normalize("whatsapp", "button", map[string]any{
			"button": map[string]any{"text": "Yes please", "payload": "answer-1"},
		})
		assert.Equal(t, "Yes please", msg.TextContent())
		assert.Equal(t, "answer-1", msg.ButtonPayload)
	})

	t.Run("interactive button reply", func(t *testing.T) {
		msg := r.Normalize("whatsapp", "interactive", map[string]any{
			"interactive": map[string]any{
				"button_reply": map[string]any{"id": "a1", "title": "Yes"},
			},
		})
		assert.Equal(t, "a1", msg.ButtonPayload)
		assert.Equal(t, "Yes", msg.TextContent())
		assert.Equal(t, "button_reply", msg.InteractiveType)
	})

	t.Run("interactive list reply", func(t *testing.T) {
		msg := r.Normalize("whatsapp", "interactive", map[string]any{
			"interactive": map[string]any{
				"list_reply": map[string]any{"id": "l3", "title": "Large"},
			},
		})
		assert.Equal(t, "l3", msg.ButtonPayload)
		assert.Equal(t, "Large", msg.TextContent())
	})

	t.Run("image media", func(t *testing.T) {
		msg := r.Normalize("whatsapp", "image", map[string]any{
			"image": map[string]any{"link": "https://cdn.example/pic.jpg"},
		})
		assert.True(t, msg.HasMedia())
		assert.Equal(t, "image", msg.MediaType)
		assert.Equal(t, "https://cdn.example/pic.jpg", msg.MediaURL)
	})
}

func TestEmailNormalizer(t *testing.T) {
	r := NewRegistry()
	msg := r.Normalize("email", "text", map[string]any{
		"subject": "Order question",
		"body":    "where is my order",
	})
	assert.Equal(t, "Order question", msg.Subject)
	assert.Equal(t, "where is my order", msg.TextContent())
}

func TestTelegramNormalizer(t *testing.T) {
	r := NewRegistry()

	msg := r.Normalize("telegram", "text", map[string]any{"text": "hi"})
	assert.Equal(t, "hi", msg.TextContent())

	msg = r.Normalize("telegram", "callback", map[string]any{"callback_data": "btn-1"})
	assert.Equal(t, "btn-1", msg.ButtonPayload)
}

func TestSocialNormalizers(t *testing.T) {
	r := NewRegistry()

	for _, channel := range []string{"instagram", "facebook"} {
		t.Run(channel, func(t *testing.T) {
			msg := r.Normalize(channel, "text", map[string]any{
				"message": map[string]any{"text": "hello"},
			})
			assert.Equal(t, "hello", msg.TextContent())

			msg = r.Normalize(channel, "postback", map[string]any{
				"postback": map[string]any{"payload": "p1", "title": "Go"},
			})
			assert.Equal(t, "p1", msg.ButtonPayload)
			assert.Equal(t, "Go", msg.ButtonText)
		})
	}
}

func TestUnknownChannelFallsBackToGeneric(t *testing.T) {
	r := NewRegistry()
	msg := r.Normalize("carrier-pigeon", "text", map[string]any{"message": "coo"})
	assert.Equal(t, "coo", msg.TextContent())
}

func TestSyntheticNormalizers(t *testing.T) {
	r := NewRegistry()

	msg := r.Normalize("delay_complete", "delay_complete", map[string]any{"user_state_id": "u-9"})
	assert.Equal(t, "u-9", msg.UserStateID)

	msg = r.Normalize("scheduled_trigger", "scheduled_trigger", map[string]any{"flow_id": "f-3"})
	assert.Equal(t, "f-3", msg.FlowID)
}

func TestNormalizeMalformedBody(t *testing.T) {
	r := NewRegistry()

	msg := r.Normalize("whatsapp", "text", map[string]any{"text": 42})
	assert.Equal(t, "", msg.TextContent())

	msg = r.Normalize("whatsapp", "text", nil)
	assert.Equal(t, "", msg.TextContent())
}

func TestTextContentPrecedence(t *testing.T) {
	msg := Message{Text: "typed", ButtonText: "tapped", InteractiveValue: "picked", Body: "mailed"}
	assert.Equal(t, "tapped", msg.TextContent())

	msg.ButtonText = ""
	assert.Equal(t, "picked", msg.TextContent())

	msg.InteractiveValue = ""
	assert.Equal(t, "typed", msg.TextContent())

	msg.Text = ""
	assert.Equal(t, "mailed", msg.TextContent())
}

func TestLookupPath(t *testing.T) {
	body := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
		"s": "flat",
	}
	assert.Equal(t, "deep", lookupPath(body, "a.b.c"))
	assert.Equal(t, "flat", lookupPath(body, "s"))
	assert.Equal(t, "", lookupPath(body, "a.missing"))
	assert.Equal(t, "", lookupPath(body, "s.not-a-map"))
}
