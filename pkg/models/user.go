package models

import "time"

// AutomationStatus says whether a user is currently inside a flow.
type AutomationStatus string

// Automation states.
const (
	AutomationActive   AutomationStatus = "active"
	AutomationInactive AutomationStatus = "inactive"
)

// DelayNodeData is stored on the user while a delay node holds the flow.
// CurrentNodeID stays on the pre-delay node; the timer carries the wakeup.
type DelayNodeData struct {
	NodeID         string    `bson:"node_id" json:"node_id"`
	WaitSeconds    int64     `bson:"wait_seconds" json:"wait_seconds"`
	DelayInterrupt bool      `bson:"delay_interrupt" json:"delay_interrupt"`
	ArmedAt        time.Time `bson:"armed_at" json:"armed_at"`
}

// User is the per-channel-identity automation state, keyed by
// (PhoneNumber, BrandID).
type User struct {
	ID               string           `bson:"_id" json:"id"`
	PhoneNumber      string           `bson:"user_phone_number" json:"user_phone_number"`
	BrandID          int              `bson:"brand_id" json:"brand_id"`
	Channel          string           `bson:"channel,omitempty" json:"channel,omitempty"`
	AutomationStatus AutomationStatus `bson:"automation_status" json:"automation_status"`
	FlowID           string           `bson:"flow_id,omitempty" json:"flow_id,omitempty"`
	CurrentNodeID    string           `bson:"current_node_id,omitempty" json:"current_node_id,omitempty"`
	DelayNodeData    *DelayNodeData   `bson:"delay_node_data,omitempty" json:"delay_node_data,omitempty"`

	ValidationFailed        bool   `bson:"validation_failed" json:"validation_failed"`
	ValidationFailureCount  int    `bson:"validation_failure_count" json:"validation_failure_count"`
	ValidationFailureReason string `bson:"validation_failure_message,omitempty" json:"validation_failure_message,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// InAutomation reports whether the user is actively traversing a flow.
func (u *User) InAutomation() bool {
	return u.AutomationStatus == AutomationActive && u.FlowID != ""
}

// VariableContext is one captured variable for a user within a flow,
// upserted on (UserIdentifier, BrandID, FlowID, Name).
type VariableContext struct {
	ID             string    `bson:"_id" json:"id"`
	UserIdentifier string    `bson:"user_identifier" json:"user_identifier"`
	BrandID        int       `bson:"brand_id" json:"brand_id"`
	FlowID         string    `bson:"flow_id" json:"flow_id"`
	Name           string    `bson:"variable_name" json:"variable_name"`
	Value          string    `bson:"variable_value" json:"variable_value"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}
