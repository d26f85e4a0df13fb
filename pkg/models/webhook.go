package models

import "time"

// WebhookStatus tracks the processing lifecycle of an inbound event.
type WebhookStatus string

// Webhook processing states.
const (
	WebhookPending   WebhookStatus = "pending"
	WebhookProcessed WebhookStatus = "processed"
	WebhookError     WebhookStatus = "error"
)

// Synthetic channels injected by the schedulers rather than a connector.
const (
	ChannelDelayComplete    = "delay_complete"
	ChannelScheduledTrigger = "scheduled_trigger"
)

// WebhookMessage is a persisted inbound event: a channel message, a timer
// completion, or a scheduled trigger. MessageBody is the raw
// channel-specific payload; normalization happens in pkg/channels.
type WebhookMessage struct {
	ID                   string         `bson:"_id" json:"id"`
	Sender               string         `bson:"sender" json:"sender"`
	BrandID              int            `bson:"brand_id" json:"brand_id"`
	UserID               string         `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Channel              string         `bson:"channel" json:"channel"`
	ChannelIdentifier    string         `bson:"channel_identifier,omitempty" json:"channel_identifier,omitempty"`
	ChannelPhoneNumberID string         `bson:"channel_phone_number_id,omitempty" json:"channel_phone_number_id,omitempty"`
	MessageType          string         `bson:"message_type" json:"message_type"`
	MessageBody          map[string]any `bson:"message_body" json:"message_body"`
	Status               WebhookStatus  `bson:"status" json:"status"`
	CreatedAt            time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `bson:"updated_at" json:"updated_at"`
}

// Transaction is the audit record written for every node a user enters,
// including the trigger node at flow start.
type Transaction struct {
	ID             string    `bson:"_id" json:"id"`
	UserIdentifier string    `bson:"user_identifier" json:"user_identifier"`
	BrandID        int       `bson:"brand_id" json:"brand_id"`
	FlowID         string    `bson:"flow_id" json:"flow_id"`
	NodeID         string    `bson:"node_id" json:"node_id"`
	NodeType       NodeType  `bson:"node_type" json:"node_type"`
	NodeData       *Node     `bson:"node_data,omitempty" json:"node_data,omitempty"`
	UserReply      string    `bson:"user_reply,omitempty" json:"user_reply,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// DelayTimerStatus tracks a scheduled wakeup.
type DelayTimerStatus string

// Delay timer states. Claimed is the in-flight state between a scheduler
// picking the timer up and its completion event running; a claim that
// fails to complete is released back to pending.
const (
	DelayPending   DelayTimerStatus = "pending"
	DelayClaimed   DelayTimerStatus = "claimed"
	DelayProcessed DelayTimerStatus = "processed"
	DelayCancelled DelayTimerStatus = "cancelled"
)

// DelayTimer is a pending wakeup armed by a delay node. The scheduler
// claims due pending timers and synthesizes delay_complete events.
type DelayTimer struct {
	ID          string           `bson:"_id" json:"id"`
	UserStateID string           `bson:"user_state_id" json:"user_state_id"`
	Sender      string           `bson:"sender" json:"sender"`
	BrandID     int              `bson:"brand_id" json:"brand_id"`
	FlowID      string           `bson:"flow_id" json:"flow_id"`
	NodeID      string           `bson:"node_id" json:"node_id"`
	WaitSeconds int64            `bson:"wait_seconds" json:"wait_seconds"`
	CompletesAt time.Time        `bson:"completes_at" json:"completes_at"`
	Status      DelayTimerStatus `bson:"status" json:"status"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at" json:"updated_at"`
}

// ScheduledTrigger starts a flow for target users on a time schedule.
// Recurrence is either a named pattern (daily, weekly, monthly) or a raw
// cron expression.
type ScheduledTrigger struct {
	ID          string    `bson:"_id" json:"id"`
	FlowID      string    `bson:"flow_id" json:"flow_id"`
	BrandID     int       `bson:"brand_id" json:"brand_id"`
	NodeID      string    `bson:"node_id" json:"node_id"`
	Recurrence  string    `bson:"recurrence" json:"recurrence"`
	TargetUsers []string  `bson:"target_users" json:"target_users"`
	NextRunAt   time.Time `bson:"next_run_at" json:"next_run_at"`
	Enabled     bool      `bson:"enabled" json:"enabled"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// NodeDetail is a catalog entry describing one node type to flow authors.
// UserInputRequired marks the types that hold the conversation for a
// reply.
type NodeDetail struct {
	ID                string    `bson:"_id" json:"id"`
	Type              NodeType  `bson:"type" json:"type"`
	Category          string    `bson:"category" json:"category"`
	Title             string    `bson:"title" json:"title"`
	Description       string    `bson:"description,omitempty" json:"description,omitempty"`
	UserInputRequired bool      `bson:"user_input_required" json:"user_input_required"`
	Fields            []string  `bson:"fields,omitempty" json:"fields,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}
