package channels

type whatsappNormalizer struct{}

func (whatsappNormalizer) Channel() string { return "whatsapp" }

// Normalize handles WhatsApp Cloud API message shapes: plain text, quick
// reply buttons, interactive button/list replies, and media.
func (whatsappNormalizer) Normalize(messageType string, body map[string]any) Message {
	msg := Message{
		Text:          stringField(body, "text.body", "text"),
		ButtonText:    stringField(body, "button.text"),
		ButtonPayload: stringField(body, "button.payload"),
	}

	if interactive, ok := body["interactive"].(map[string]any); ok {
		if reply, ok := interactive["button_reply"].(map[string]any); ok {
			msg.InteractiveType = "button_reply"
			msg.ButtonPayload = str(reply["id"])
			msg.InteractiveValue = str(reply["title"])
		}
		if reply, ok := interactive["list_reply"].(map[string]any); ok {
			msg.InteractiveType = "list_reply"
			msg.ButtonPayload = str(reply["id"])
			msg.InteractiveValue = str(reply["title"])
		}
	}

	switch messageType {
	case "image", "video", "audio", "document", "sticker":
		msg.MediaType = messageType
		msg.MediaURL = stringField(body, messageType+".link", messageType+".url", messageType+".id")
	}
	return msg
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
