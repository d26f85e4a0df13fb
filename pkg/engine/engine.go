// Package engine implements the per-user conversational state machine:
// trigger matching, node traversal, internal-node processing, and reply
// validation. All user-visible output leaves as outbound intents on the
// events bus; the engine never talks to connectors directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatflow-io/chatflow/pkg/channels"
	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// maxTraversalDepth bounds auto-chaining so a cyclic graph cannot hang a
// request.
const maxTraversalDepth = 25

// Engine drives flows for users. Events for the same (sender, brand) key
// are serialized; different keys run concurrently.
type Engine struct {
	store     database.Store
	publisher events.Publisher
	channels  *channels.Registry
	locks     *keyedMutex
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates the engine. All dependencies are required.
func New(store database.Store, publisher events.Publisher, registry *channels.Registry) *Engine {
	if store == nil {
		panic("engine: store is required")
	}
	if publisher == nil {
		panic("engine: publisher is required")
	}
	if registry == nil {
		panic("engine: channel registry is required")
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		channels:  registry,
		locks:     newKeyedMutex(),
		logger:    slog.Default().With("component", "engine"),
		tracer:    otel.Tracer("chatflow"),
	}
}

func lockKey(sender string, brandID int) string {
	return sender + "|" + strconv.Itoa(brandID)
}

// ProcessEvent runs one persisted inbound event through the state machine.
func (e *Engine) ProcessEvent(ctx context.Context, msg *models.WebhookMessage) error {
	ctx, span := e.tracer.Start(ctx, "engine.process_event", trace.WithAttributes(
		attribute.String("channel", msg.Channel),
		attribute.Int("brand_id", msg.BrandID),
	))
	defer span.End()

	unlock := e.locks.Lock(lockKey(msg.Sender, msg.BrandID))
	defer unlock()

	normalized := e.channels.Normalize(msg.Channel, msg.MessageType, msg.MessageBody)

	user, err := e.store.GetUser(ctx, msg.Sender, msg.BrandID)
	if errors.Is(err, database.ErrNotFound) {
		user = &models.User{
			ID:               uuid.NewString(),
			PhoneNumber:      msg.Sender,
			BrandID:          msg.BrandID,
			Channel:          msg.Channel,
			AutomationStatus: models.AutomationInactive,
		}
		if err := e.store.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		e.logger.Info("Created user", "sender", msg.Sender, "brand_id", msg.BrandID)
	} else if err != nil {
		return err
	}

	switch {
	case msg.Channel == models.ChannelDelayComplete:
		return e.handleDelayComplete(ctx, user, &normalized)
	case msg.Channel == models.ChannelScheduledTrigger:
		return e.handleScheduledTrigger(ctx, user, &normalized)
	case user.InAutomation() && user.DelayNodeData != nil:
		return e.handleDelayedReply(ctx, user, &normalized)
	case user.InAutomation():
		return e.handleReply(ctx, user, &normalized)
	default:
		return e.matchTriggers(ctx, user, msg, &normalized)
	}
}

// matchTriggers finds a published flow whose trigger matches the event and
// starts it. Keyword triggers only consider text events; ties between
// matching flows break on the most recently updated one.
func (e *Engine) matchTriggers(ctx context.Context, user *models.User, msg *models.WebhookMessage, normalized *channels.Message) error {
	triggers, err := e.store.ListTriggersByBrand(ctx, msg.BrandID)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}

	text := strings.ToLower(strings.TrimSpace(normalized.TextContent()))
	templateName := ""
	if normalized.Raw != nil {
		if v, ok := normalized.Raw["template_name"].(string); ok {
			templateName = v
		}
	}

	var (
		bestFlow *models.Flow
		bestNode *models.Node
	)
	for _, trigger := range triggers {
		if !triggerMatches(&trigger, msg.MessageType, text, templateName) {
			continue
		}
		flow, err := e.store.GetFlow(ctx, trigger.FlowID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if flow.Status != models.FlowStatusPublished {
			continue
		}
		node := flow.NodeByID(trigger.NodeID)
		if node == nil {
			continue
		}
		if bestFlow == nil || flow.UpdatedAt.After(bestFlow.UpdatedAt) {
			bestFlow, bestNode = flow, node
		}
	}

	if bestFlow == nil {
		e.logger.Debug("No trigger matched", "sender", msg.Sender, "brand_id", msg.BrandID)
		return nil
	}
	return e.startFlow(ctx, user, bestFlow, bestNode, normalized)
}

func triggerMatches(trigger *models.Trigger, messageType, text, templateName string) bool {
	switch trigger.TriggerType {
	case models.NodeTypeTriggerKeyword:
		if messageType != "text" || text == "" {
			return false
		}
		for _, kw := range trigger.TriggerValues {
			if strings.ToLower(strings.TrimSpace(kw)) == text {
				return true
			}
		}
	case models.NodeTypeTriggerTemplate:
		if messageType != "template" || templateName == "" {
			return false
		}
		for _, name := range trigger.TriggerValues {
			if name == templateName {
				return true
			}
		}
	}
	return false
}

// handleScheduledTrigger starts the scheduled flow unless the user is
// already mid-automation.
func (e *Engine) handleScheduledTrigger(ctx context.Context, user *models.User, normalized *channels.Message) error {
	if user.InAutomation() {
		e.logger.Info("Scheduled trigger skipped, user mid-automation",
			"sender", user.PhoneNumber, "flow_id", normalized.FlowID)
		return nil
	}
	flow, err := e.store.GetFlow(ctx, normalized.FlowID)
	if errors.Is(err, database.ErrNotFound) {
		e.logger.Warn("Scheduled trigger for missing flow", "flow_id", normalized.FlowID)
		return nil
	}
	if err != nil {
		return err
	}
	if flow.Status != models.FlowStatusPublished {
		e.logger.Info("Scheduled trigger for unpublished flow", "flow_id", flow.ID, "status", flow.Status)
		return nil
	}
	start := flow.StartNode()
	if start == nil {
		e.logger.Warn("Scheduled trigger flow has no start node", "flow_id", flow.ID)
		return nil
	}
	return e.startFlow(ctx, user, flow, start, normalized)
}

// startFlow activates the flow for the user and begins traversal from its
// trigger node.
func (e *Engine) startFlow(ctx context.Context, user *models.User, flow *models.Flow, triggerNode *models.Node, normalized *channels.Message) error {
	if err := e.store.CancelForUser(ctx, user.ID); err != nil {
		return err
	}
	user.AutomationStatus = models.AutomationActive
	user.FlowID = flow.ID
	user.CurrentNodeID = triggerNode.ID
	user.DelayNodeData = nil
	user.ValidationFailed = false
	user.ValidationFailureCount = 0
	user.ValidationFailureReason = ""
	if err := e.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}

	e.logger.Info("Flow triggered",
		"flow_id", flow.ID, "sender", user.PhoneNumber, "trigger_node", triggerNode.ID)
	e.recordTransaction(ctx, user, flow, triggerNode, normalized)

	return e.identifyAndProcess(ctx, user, flow, triggerNode.ID, "", normalized, 0)
}

// handleReply validates the reply against the node the user is waiting on
// and advances the flow per the outcome.
func (e *Engine) handleReply(ctx context.Context, user *models.User, normalized *channels.Message) error {
	flow, err := e.store.GetFlow(ctx, user.FlowID)
	if errors.Is(err, database.ErrNotFound) {
		e.logger.Warn("Active user references missing flow, exiting automation",
			"sender", user.PhoneNumber, "flow_id", user.FlowID)
		return e.exitAutomation(ctx, user)
	}
	if err != nil {
		return err
	}

	current := flow.NodeByID(user.CurrentNodeID)
	if current == nil {
		e.logger.Warn("Active user references missing node, exiting automation",
			"sender", user.PhoneNumber, "node_id", user.CurrentNodeID)
		return e.exitAutomation(ctx, user)
	}

	result := validateReply(flow, current, normalized, user.ValidationFailureCount)
	e.logger.Info("Reply validated",
		"sender", user.PhoneNumber, "node_id", current.ID, "status", result.Status)

	switch result.Status {
	case StatusError:
		e.logger.Warn("Reply arrived at a node that takes no input",
			"node_id", current.ID, "node_type", current.Type)
		return nil

	case StatusMismatchRetry:
		fallback := current.EffectiveFallbackMessage()
		if _, err := e.store.IncrementValidationFailure(ctx, user.ID, fallback); err != nil {
			return err
		}
		e.publishFallback(user, flow, current, fallback)
		e.publishNodeIntent(user, flow, current)
		return nil

	case StatusValidationExit:
		e.publishFallback(user, flow, current, current.EffectiveFallbackMessage())
		return e.exitAutomation(ctx, user)
	}

	// Matched outcomes: clear failure state, capture the reply, advance. A
	// cross-node match captures nothing; the matched node is about to be
	// asked.
	if result.Status != StatusMatchedOtherNode && result.MatchedNode != nil && result.MatchedNode.UserInputVariable != "" {
		if err := e.persistVariable(ctx, user, flow, result.MatchedNode.UserInputVariable, result.Reply); err != nil {
			return err
		}
	}
	if err := e.store.ResetValidation(ctx, user.ID); err != nil {
		return err
	}
	user.ValidationFailed = false
	user.ValidationFailureCount = 0
	user.ValidationFailureReason = ""

	switch result.Status {
	case StatusUseDefaultEdge:
		return e.identifyAndProcess(ctx, user, flow, current.ID, "", normalized, 0)
	case StatusMatchedOtherNode:
		// The reply answered a different interactive node; render that node
		// and move the conversation there.
		return e.identifyAndProcess(ctx, user, flow, "", result.BranchRef, normalized, 0)
	}
	return e.identifyAndProcess(ctx, user, flow, result.BranchRef, "", normalized, 0)
}

// handleDelayedReply is invoked when a real reply arrives while a delay
// timer is pending. Interruptible delays take their __interrupted branch;
// otherwise the reply is dropped and the delay holds.
func (e *Engine) handleDelayedReply(ctx context.Context, user *models.User, normalized *channels.Message) error {
	flow, err := e.store.GetFlow(ctx, user.FlowID)
	if errors.Is(err, database.ErrNotFound) {
		return e.exitAutomation(ctx, user)
	}
	if err != nil {
		return err
	}
	node := flow.NodeByID(user.DelayNodeData.NodeID)
	if node == nil {
		return e.exitAutomation(ctx, user)
	}

	if !node.DelayInterrupt {
		e.logger.Debug("Reply ignored, delay in progress",
			"sender", user.PhoneNumber, "node_id", node.ID)
		return nil
	}

	if err := e.store.CancelForUser(ctx, user.ID); err != nil {
		return err
	}
	user.DelayNodeData = nil
	if err := e.store.SaveUser(ctx, user); err != nil {
		return err
	}

	entry := models.ResultEntryBySuffix(node.DelayResult, "__interrupted")
	if entry == nil {
		e.logger.Warn("Interruptible delay has no interrupted branch", "node_id", node.ID)
		return e.exitAutomation(ctx, user)
	}
	return e.followBranch(ctx, user, flow, entry, normalized, 0)
}

// handleDelayComplete resumes the flow after the scheduler fires a timer.
func (e *Engine) handleDelayComplete(ctx context.Context, user *models.User, normalized *channels.Message) error {
	if user.DelayNodeData == nil || !user.InAutomation() {
		e.logger.Warn("Stale delay completion, ignoring",
			"sender", user.PhoneNumber, "user_state_id", normalized.UserStateID)
		return nil
	}
	if normalized.UserStateID != "" && normalized.UserStateID != user.ID {
		e.logger.Warn("Delay completion for a different user state, ignoring",
			"sender", user.PhoneNumber, "user_state_id", normalized.UserStateID)
		return nil
	}

	flow, err := e.store.GetFlow(ctx, user.FlowID)
	if errors.Is(err, database.ErrNotFound) {
		return e.exitAutomation(ctx, user)
	}
	if err != nil {
		return err
	}
	node := flow.NodeByID(user.DelayNodeData.NodeID)
	if node == nil {
		return e.exitAutomation(ctx, user)
	}

	user.DelayNodeData = nil
	if err := e.store.SaveUser(ctx, user); err != nil {
		return err
	}

	if entry := models.ResultEntryBySuffix(node.DelayResult, "__not_interrupted"); entry != nil {
		return e.followBranch(ctx, user, flow, entry, normalized, 0)
	}
	// Older graphs wire the delay's continuation as a plain edge.
	return e.identifyAndProcess(ctx, user, flow, node.ID, "", normalized, 0)
}

// followBranch continues traversal from an internal-node result entry.
// The entry's nodeResultId points directly at the next node; entry ids
// used as edge sources are the fallback.
func (e *Engine) followBranch(ctx context.Context, user *models.User, flow *models.Flow, entry *models.ResultEntry, normalized *channels.Message, depth int) error {
	if entry.NodeResultID != "" {
		return e.identifyAndProcess(ctx, user, flow, "", entry.NodeResultID, normalized, depth)
	}
	return e.identifyAndProcess(ctx, user, flow, entry.ID, "", normalized, depth)
}

// identifyAndProcess resolves the next node and processes it: internal
// nodes are evaluated in place, actionable nodes render and update the
// user's position, message nodes chain onward automatically. Failing to
// resolve a next node ends the automation.
func (e *Engine) identifyAndProcess(ctx context.Context, user *models.User, flow *models.Flow, currentNodeID, nodeIDToProcess string, normalized *channels.Message, depth int) error {
	if depth > maxTraversalDepth {
		e.logger.Error("Traversal depth exceeded, exiting automation",
			"flow_id", flow.ID, "sender", user.PhoneNumber)
		return e.exitAutomation(ctx, user)
	}

	var target *models.Node
	switch {
	case nodeIDToProcess != "":
		target = flow.NodeByID(nodeIDToProcess)
	case flow.NodeByID(currentNodeID) != nil:
		edge := flow.EdgeFrom(currentNodeID)
		if edge == nil {
			// Terminal node: the flow is complete.
			e.logger.Info("Flow complete", "flow_id", flow.ID, "sender", user.PhoneNumber)
			return e.exitAutomation(ctx, user)
		}
		target = flow.NodeByID(edge.TargetNodeID)
	default:
		if targetID, ok := flow.BranchTarget(currentNodeID); ok {
			target = flow.NodeByID(targetID)
		}
	}
	if target == nil {
		e.logger.Warn("Next node did not resolve, exiting automation",
			"flow_id", flow.ID, "current", currentNodeID, "to_process", nodeIDToProcess)
		return e.exitAutomation(ctx, user)
	}

	switch {
	case target.Type.IsTrigger():
		// Triggers render nothing; pass through to their edge.
		return e.identifyAndProcess(ctx, user, flow, target.ID, "", normalized, depth+1)
	case target.Type == models.NodeTypeCondition:
		return e.processCondition(ctx, user, flow, target, normalized, depth)
	case target.Type == models.NodeTypeDelay:
		return e.armDelay(ctx, user, flow, target, normalized)
	}

	e.recordTransaction(ctx, user, flow, target, normalized)
	e.publishNodeIntent(user, flow, target)
	user.CurrentNodeID = target.ID
	if err := e.store.SaveUser(ctx, user); err != nil {
		return err
	}

	if target.Type == models.NodeTypeMessage {
		return e.identifyAndProcess(ctx, user, flow, target.ID, "", normalized, depth+1)
	}
	// Question nodes wait for the user's reply.
	return nil
}

func (e *Engine) processCondition(ctx context.Context, user *models.User, flow *models.Flow, node *models.Node, normalized *channels.Message, depth int) error {
	vars, err := e.store.ListVariables(ctx, user.PhoneNumber, user.BrandID, flow.ID)
	if err != nil {
		return fmt.Errorf("load variables: %w", err)
	}
	entry, outcome := evaluateCondition(node, newVariableSet(vars), e.logger)
	if entry == nil {
		return e.exitAutomation(ctx, user)
	}
	e.logger.Info("Condition evaluated",
		"node_id", node.ID, "outcome", outcome, "sender", user.PhoneNumber)
	e.recordTransaction(ctx, user, flow, node, normalized)
	return e.followBranch(ctx, user, flow, entry, normalized, depth+1)
}

// armDelay stores the wakeup timer and parks the user. CurrentNodeID stays
// on the pre-delay position; the timer carries the continuation.
func (e *Engine) armDelay(ctx context.Context, user *models.User, flow *models.Flow, node *models.Node, normalized *channels.Message) error {
	waitSeconds := node.DelayWaitSeconds()
	now := time.Now().UTC()
	timer := &models.DelayTimer{
		ID:          uuid.NewString(),
		UserStateID: user.ID,
		Sender:      user.PhoneNumber,
		BrandID:     user.BrandID,
		FlowID:      flow.ID,
		NodeID:      node.ID,
		WaitSeconds: waitSeconds,
		CompletesAt: now.Add(time.Duration(waitSeconds) * time.Second),
		Status:      models.DelayPending,
	}
	if err := e.store.ArmTimer(ctx, timer); err != nil {
		return fmt.Errorf("arm delay timer: %w", err)
	}

	user.DelayNodeData = &models.DelayNodeData{
		NodeID:         node.ID,
		WaitSeconds:    waitSeconds,
		DelayInterrupt: node.DelayInterrupt,
		ArmedAt:        now,
	}
	if err := e.store.SaveUser(ctx, user); err != nil {
		return err
	}
	e.recordTransaction(ctx, user, flow, node, normalized)
	e.logger.Info("Delay armed",
		"node_id", node.ID, "wait_seconds", waitSeconds, "sender", user.PhoneNumber)
	return nil
}

// exitAutomation deactivates the user and clears flow position, delay
// state, and validation counters. Pending timers are cancelled.
func (e *Engine) exitAutomation(ctx context.Context, user *models.User) error {
	if err := e.store.CancelForUser(ctx, user.ID); err != nil {
		return err
	}
	user.AutomationStatus = models.AutomationInactive
	user.FlowID = ""
	user.CurrentNodeID = ""
	user.DelayNodeData = nil
	user.ValidationFailed = false
	user.ValidationFailureCount = 0
	user.ValidationFailureReason = ""
	if err := e.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	e.logger.Info("Automation exited", "sender", user.PhoneNumber, "brand_id", user.BrandID)
	return nil
}

func (e *Engine) persistVariable(ctx context.Context, user *models.User, flow *models.Flow, name, value string) error {
	return e.store.UpsertVariable(ctx, &models.VariableContext{
		ID:             uuid.NewString(),
		UserIdentifier: user.PhoneNumber,
		BrandID:        user.BrandID,
		FlowID:         flow.ID,
		Name:           name,
		Value:          value,
	})
}

// recordTransaction writes the audit record for a node the user entered.
// Failures are logged, not propagated; the audit trail must not stop a
// conversation.
func (e *Engine) recordTransaction(ctx context.Context, user *models.User, flow *models.Flow, node *models.Node, normalized *channels.Message) {
	snapshot := *node
	txn := &models.Transaction{
		ID:             uuid.NewString(),
		UserIdentifier: user.PhoneNumber,
		BrandID:        user.BrandID,
		FlowID:         flow.ID,
		NodeID:         node.ID,
		NodeType:       node.Type,
		NodeData:       &snapshot,
	}
	if normalized != nil {
		txn.UserReply = strings.TrimSpace(normalized.TextContent())
	}
	if err := e.store.Record(ctx, txn); err != nil {
		e.logger.Error("Failed to record transaction",
			"node_id", node.ID, "error", err)
	}
}

func (e *Engine) publishNodeIntent(user *models.User, flow *models.Flow, node *models.Node) {
	intent := events.OutboundIntent{
		Channel:   user.Channel,
		Recipient: user.PhoneNumber,
		BrandID:   user.BrandID,
		FlowID:    flow.ID,
		NodeID:    node.ID,
		NodeType:  node.Type,
	}
	switch node.Type {
	case models.NodeTypeMessage:
		intent.Kind = events.IntentMessage
		intent.Text = node.MessageText
		intent.MediaURL = node.MediaURL
		intent.MediaType = node.MediaType
	case models.NodeTypeQuestion:
		intent.Kind = events.IntentQuestion
		intent.Text = node.QuestionText
	case models.NodeTypeButtonQuestion, models.NodeTypeListQuestion:
		intent.Kind = events.IntentQuestion
		intent.Text = node.QuestionText
		for _, a := range node.ExpectedAnswers {
			intent.Choices = append(intent.Choices, events.Choice{ID: a.ID, Title: a.Title})
		}
	default:
		return
	}
	e.publisher.Publish(intent)
}

func (e *Engine) publishFallback(user *models.User, flow *models.Flow, node *models.Node, text string) {
	e.publisher.Publish(events.OutboundIntent{
		Channel:   user.Channel,
		Recipient: user.PhoneNumber,
		BrandID:   user.BrandID,
		FlowID:    flow.ID,
		NodeID:    node.ID,
		NodeType:  node.Type,
		Kind:      events.IntentFallback,
		Text:      text,
	})
}
