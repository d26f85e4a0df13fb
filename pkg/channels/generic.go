package channels

type genericNormalizer struct{}

func (genericNormalizer) Channel() string { return "generic" }

// Normalize accepts the loosest shape: any of text, body, or message.
func (genericNormalizer) Normalize(messageType string, body map[string]any) Message {
	msg := Message{
		Text: stringField(body, "text", "message", "text.body"),
		Body: stringField(body, "body"),
	}
	if messageType != "" && messageType != "text" {
		msg.MediaType = messageType
		msg.MediaURL = stringField(body, "media_url", "url", "link")
	}
	return msg
}

type emailNormalizer struct{}

func (emailNormalizer) Channel() string { return "email" }

// Normalize maps email subject/body; the body is what replies match on.
func (emailNormalizer) Normalize(_ string, body map[string]any) Message {
	return Message{
		Subject: stringField(body, "subject"),
		Body:    stringField(body, "body", "text"),
	}
}

type telegramNormalizer struct{}

func (telegramNormalizer) Channel() string { return "telegram" }

func (telegramNormalizer) Normalize(messageType string, body map[string]any) Message {
	msg := Message{
		Text:          stringField(body, "text", "message.text"),
		ButtonPayload: stringField(body, "callback_data", "callback_query.data"),
	}
	switch messageType {
	case "photo", "video", "document", "voice":
		msg.MediaType = messageType
		msg.MediaURL = stringField(body, "file_url", "file_id")
	}
	return msg
}

type smsNormalizer struct{}

func (smsNormalizer) Channel() string { return "sms" }

func (smsNormalizer) Normalize(_ string, body map[string]any) Message {
	return Message{Text: stringField(body, "text", "body", "message")}
}

// socialNormalizer covers the Meta messaging channels, which share a
// payload shape.
type socialNormalizer struct {
	channel string
}

func (n socialNormalizer) Channel() string { return n.channel }

func (socialNormalizer) Normalize(messageType string, body map[string]any) Message {
	msg := Message{
		Text:          stringField(body, "message.text", "text"),
		ButtonPayload: stringField(body, "postback.payload", "quick_reply.payload"),
		ButtonText:    stringField(body, "postback.title"),
	}
	if messageType != "" && messageType != "text" {
		msg.MediaType = messageType
		msg.MediaURL = stringField(body, "attachment.url", "media_url")
	}
	return msg
}

// delayCompleteNormalizer handles the synthetic event the delay scheduler
// injects when a timer fires.
type delayCompleteNormalizer struct{}

func (delayCompleteNormalizer) Channel() string { return "delay_complete" }

func (delayCompleteNormalizer) Normalize(_ string, body map[string]any) Message {
	return Message{UserStateID: stringField(body, "user_state_id")}
}

// scheduledTriggerNormalizer handles the synthetic event the time-trigger
// scheduler injects for scheduled flow starts.
type scheduledTriggerNormalizer struct{}

func (scheduledTriggerNormalizer) Channel() string { return "scheduled_trigger" }

func (scheduledTriggerNormalizer) Normalize(_ string, body map[string]any) Message {
	return Message{FlowID: stringField(body, "flow_id")}
}
