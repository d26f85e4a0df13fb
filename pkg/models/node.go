package models

// NodeType identifies what a node does when the engine reaches it.
type NodeType string

// Node types. Trigger nodes start flows, internal nodes (condition, delay)
// are processed without user-visible output, the rest render to the user.
const (
	NodeTypeTriggerKeyword  NodeType = "trigger_keyword"
	NodeTypeTriggerTemplate NodeType = "trigger_template"
	NodeTypeMessage         NodeType = "message"
	NodeTypeQuestion        NodeType = "question"
	NodeTypeButtonQuestion  NodeType = "button_question"
	NodeTypeListQuestion    NodeType = "list_question"
	NodeTypeCondition       NodeType = "condition"
	NodeTypeDelay           NodeType = "delay"
)

// IsTrigger reports whether the type starts a flow.
func (t NodeType) IsTrigger() bool {
	return t == NodeTypeTriggerKeyword || t == NodeTypeTriggerTemplate
}

// IsInternal reports whether the type is processed by the engine without
// rendering anything to the user.
func (t NodeType) IsInternal() bool {
	return t == NodeTypeCondition || t == NodeTypeDelay
}

// IsQuestion reports whether the type waits for a user reply.
func (t NodeType) IsQuestion() bool {
	return t == NodeTypeQuestion || t == NodeTypeButtonQuestion || t == NodeTypeListQuestion
}

// ValidationType constrains free-text question replies.
type ValidationType string

// Free-text validation types.
const (
	ValidationNumber ValidationType = "Number"
	ValidationText   ValidationType = "Text"
	ValidationEmail  ValidationType = "Email"
	ValidationPhone  ValidationType = "Phone"
	ValidationRegex  ValidationType = "Regex"
)

// DefaultFailsCount is the retry budget applied when a question node does
// not set one.
const DefaultFailsCount = 3

// DefaultFallbackMessage is sent on mismatched replies when the node does
// not define its own.
const DefaultFallbackMessage = "This is not the valid response. Please try again below"

// AnswerValidation configures validation of free-text question replies.
type AnswerValidation struct {
	Type     ValidationType `bson:"type,omitempty" json:"type,omitempty"`
	Regex    string         `bson:"regex,omitempty" json:"regex,omitempty"`
	MinValue *float64       `bson:"min_value,omitempty" json:"minValue,omitempty"`
	MaxValue *float64       `bson:"max_value,omitempty" json:"maxValue,omitempty"`
}

// ExpectedAnswer is one choice of a button or list question. NodeResultID
// points directly at the node the flow continues with when this answer is
// picked. Title carries the authoring tool's expectedInput, the text shown
// on the choice and matched against replies; IsDefault is authoring
// metadata passed through unchanged.
type ExpectedAnswer struct {
	ID           string `bson:"id" json:"id"`
	Title        string `bson:"expected_input" json:"expectedInput"`
	IsDefault    bool   `bson:"is_default,omitempty" json:"isDefault,omitempty"`
	NodeResultID string `bson:"node_result_id,omitempty" json:"nodeResultId,omitempty"`
}

// NodeCondition is one comparison of a condition node.
type NodeCondition struct {
	Variable string `bson:"variable" json:"variable"`
	Type     string `bson:"flow_condition_type" json:"flowConditionType"`
	Value    string `bson:"value" json:"value"`
}

// ResultEntry is a branch of an internal node. Condition nodes carry
// entries whose ids end in "__true" / "__false"; delay nodes carry
// "__interrupted" / "__not_interrupted". The entry id doubles as an edge
// source in older graphs; NodeResultID is the direct branch target.
type ResultEntry struct {
	ID           string `bson:"id" json:"id"`
	NodeResultID string `bson:"node_result_id,omitempty" json:"nodeResultId,omitempty"`
}

// Node is a single step of a flow graph. The per-type payload fields are a
// union; only the fields matching Type are meaningful.
type Node struct {
	ID          string   `bson:"id" json:"id"`
	Type        NodeType `bson:"type" json:"type"`
	IsStartNode bool     `bson:"is_start_node" json:"isStartNode"`

	// trigger_keyword / trigger_template
	TriggerKeywords []string `bson:"trigger_keywords,omitempty" json:"triggerKeywords,omitempty"`
	TemplateName    string   `bson:"template_name,omitempty" json:"templateName,omitempty"`

	// message
	MessageText string `bson:"message_text,omitempty" json:"messageText,omitempty"`
	MediaURL    string `bson:"media_url,omitempty" json:"mediaUrl,omitempty"`
	MediaType   string `bson:"media_type,omitempty" json:"mediaType,omitempty"`

	// question variants
	QuestionText        string            `bson:"question_text,omitempty" json:"questionText,omitempty"`
	AnswerValidation    *AnswerValidation `bson:"answer_validation,omitempty" json:"answerValidation,omitempty"`
	ExpectedAnswers     []ExpectedAnswer  `bson:"expected_answers,omitempty" json:"expectedAnswers,omitempty"`
	DefaultNodeResultID string            `bson:"default_node_result_id,omitempty" json:"default_node_result_id,omitempty"`
	UserInputVariable   string            `bson:"user_input_variable,omitempty" json:"userInputVariable,omitempty"`
	FailsCount          int               `bson:"fails_count,omitempty" json:"failsCount,omitempty"`
	FallbackMessage     string            `bson:"fallback_message,omitempty" json:"fallbackMessage,omitempty"`
	UseDefaultEdge      bool              `bson:"use_default_edge,omitempty" json:"useDefaultEdge,omitempty"`

	// condition
	Conditions        []NodeCondition `bson:"flow_node_conditions,omitempty" json:"flowNodeConditions,omitempty"`
	ConditionOperator string          `bson:"condition_operator,omitempty" json:"conditionOperator,omitempty"`
	ConditionResult   []ResultEntry   `bson:"condition_result,omitempty" json:"conditionResult,omitempty"`

	// delay
	DelayDuration  int           `bson:"delay_duration,omitempty" json:"delayDuration,omitempty"`
	DelayUnit      string        `bson:"delay_unit,omitempty" json:"delayUnit,omitempty"`
	WaitForReply   bool          `bson:"wait_for_reply,omitempty" json:"waitForReply,omitempty"`
	DelayInterrupt bool          `bson:"delay_interrupt,omitempty" json:"delayInterrupt,omitempty"`
	DelayResult    []ResultEntry `bson:"delay_result,omitempty" json:"delayResult,omitempty"`

	// transactionCount is populated on flow detail reads for published and
	// stopped flows; never stored.
	TransactionCount *int64 `bson:"-" json:"transactionCount,omitempty"`
}

// EffectiveFailsCount returns the node's retry budget, applying the default
// when unset. Zero or negative means retry forever.
func (n *Node) EffectiveFailsCount() int {
	if n.FailsCount == 0 {
		return DefaultFailsCount
	}
	return n.FailsCount
}

// EffectiveFallbackMessage returns the node's mismatch message, applying
// the default when unset.
func (n *Node) EffectiveFallbackMessage() string {
	if n.FallbackMessage == "" {
		return DefaultFallbackMessage
	}
	return n.FallbackMessage
}

// DelayWaitSeconds converts the node's duration and unit into seconds.
// Unknown units are treated as seconds.
func (n *Node) DelayWaitSeconds() int64 {
	d := int64(n.DelayDuration)
	switch n.DelayUnit {
	case "minutes":
		return d * 60
	case "hours":
		return d * 3600
	case "days":
		return d * 86400
	default:
		return d
	}
}

// ResultEntryBySuffix returns the entry of the given result set whose id
// ends with the suffix ("__true", "__interrupted", ...), or nil.
func ResultEntryBySuffix(entries []ResultEntry, suffix string) *ResultEntry {
	for i := range entries {
		if len(entries[i].ID) >= len(suffix) && entries[i].ID[len(entries[i].ID)-len(suffix):] == suffix {
			return &entries[i]
		}
	}
	return nil
}
