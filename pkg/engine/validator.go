package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/chatflow-io/chatflow/pkg/channels"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// ValidationStatus classifies a reply against the node waiting for it.
type ValidationStatus string

// Validation outcomes.
const (
	// StatusMatched: reply matched an expected answer of the current node.
	StatusMatched ValidationStatus = "matched"
	// StatusMatchedOtherNode: reply matched an answer of another
	// button/list node in the flow; that node is rendered and becomes the
	// user's new position.
	StatusMatchedOtherNode ValidationStatus = "matched_other_node"
	// StatusMismatchRetry: no match, retry budget left.
	StatusMismatchRetry ValidationStatus = "mismatch_retry"
	// StatusValidationExit: no match and the retry budget is exhausted.
	StatusValidationExit ValidationStatus = "validation_exit"
	// StatusUseDefaultEdge: free-text reply passed validation; traversal
	// follows the node's default outgoing edge.
	StatusUseDefaultEdge ValidationStatus = "use_default_edge"
	// StatusError: the current node cannot accept a reply.
	StatusError ValidationStatus = "error"
)

// validationResult carries the outcome plus what traversal needs next.
type validationResult struct {
	Status ValidationStatus
	// BranchRef is the matched answer id on StatusMatched, used as the
	// branch reference for traversal. On StatusMatchedOtherNode it is the
	// matched node's id, processed directly.
	BranchRef string
	// MatchedNode is the node whose answer matched (the current node or
	// another question node). Its UserInputVariable captures the reply.
	MatchedNode *models.Node
	Reply       string
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{5,19}$`)
)

// validateReply classifies the user's reply against the current node.
// failureCount is the user's running mismatch counter; the caller owns
// incrementing it on StatusMismatchRetry.
func validateReply(flow *models.Flow, current *models.Node, msg *channels.Message, failureCount int) validationResult {
	reply := strings.TrimSpace(msg.TextContent())

	switch current.Type {
	case models.NodeTypeQuestion:
		if validateText(current.AnswerValidation, reply) {
			return validationResult{Status: StatusUseDefaultEdge, MatchedNode: current, Reply: reply}
		}
	case models.NodeTypeButtonQuestion, models.NodeTypeListQuestion:
		if answer := matchAnswer(current, msg, reply); answer != nil {
			return validationResult{Status: StatusMatched, BranchRef: answer.ID, MatchedNode: current, Reply: reply}
		}
		// The user may be answering an earlier interactive question, e.g.
		// tapping a stale button.
		if node, answer := matchOtherNode(flow, current, msg, reply); answer != nil {
			return validationResult{Status: StatusMatchedOtherNode, BranchRef: node.ID, MatchedNode: node, Reply: reply}
		}
	default:
		return validationResult{Status: StatusError, Reply: reply}
	}

	fails := current.EffectiveFailsCount()
	if fails > 0 && failureCount+1 >= fails {
		return validationResult{Status: StatusValidationExit, Reply: reply}
	}
	return validationResult{Status: StatusMismatchRetry, Reply: reply}
}

// matchAnswer tests the reply against a node's expected answers: button
// payload against the answer id, otherwise text against the title.
func matchAnswer(node *models.Node, msg *channels.Message, reply string) *models.ExpectedAnswer {
	for i := range node.ExpectedAnswers {
		a := &node.ExpectedAnswers[i]
		if msg.ButtonPayload != "" && msg.ButtonPayload == a.ID {
			return a
		}
		if reply != "" && strings.EqualFold(reply, strings.TrimSpace(a.Title)) {
			return a
		}
	}
	return nil
}

// matchOtherNode scans the flow's other interactive nodes for an answer
// match. Free-text questions never participate in cross-node matching.
func matchOtherNode(flow *models.Flow, current *models.Node, msg *channels.Message, reply string) (*models.Node, *models.ExpectedAnswer) {
	for i := range flow.Nodes {
		n := &flow.Nodes[i]
		if n.ID == current.ID {
			continue
		}
		if n.Type != models.NodeTypeButtonQuestion && n.Type != models.NodeTypeListQuestion {
			continue
		}
		if answer := matchAnswer(n, msg, reply); answer != nil {
			return n, answer
		}
	}
	return nil, nil
}

// validateText checks a free-text reply against the node's validation
// config. A node without config accepts any non-empty reply.
func validateText(v *models.AnswerValidation, reply string) bool {
	if reply == "" {
		return false
	}
	if v == nil {
		return true
	}
	switch v.Type {
	case models.ValidationNumber:
		n, err := strconv.ParseFloat(reply, 64)
		if err != nil {
			return false
		}
		if v.MinValue != nil && n < *v.MinValue {
			return false
		}
		if v.MaxValue != nil && n > *v.MaxValue {
			return false
		}
		return true
	case models.ValidationEmail:
		return emailPattern.MatchString(reply)
	case models.ValidationPhone:
		return phonePattern.MatchString(reply)
	case models.ValidationRegex:
		if v.Regex == "" {
			return true
		}
		re, err := regexp.Compile(v.Regex)
		if err != nil {
			return false
		}
		return re.MatchString(reply)
	default:
		// ValidationText and unconfigured nodes accept any non-empty reply.
		return true
	}
}
