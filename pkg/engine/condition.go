package engine

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// Condition comparison types.
const (
	condEqual       = "Equal"
	condNotEqual    = "NotEqual"
	condContains    = "Contains"
	condNotContains = "NotContains"
	condGreaterThan = "GreaterThan"
	condLessThan    = "LessThan"
)

// variableSet resolves condition variables against captured flow context.
// Names are matched with and without a leading "@"; missing variables
// resolve to the empty string.
type variableSet map[string]string

func newVariableSet(vars []models.VariableContext) variableSet {
	set := make(variableSet, len(vars))
	for _, v := range vars {
		set[v.Name] = v.Value
	}
	return set
}

func (s variableSet) lookup(name string) string {
	if v, ok := s["@"+strings.TrimPrefix(name, "@")]; ok {
		return v
	}
	return s[strings.TrimPrefix(name, "@")]
}

// evaluateCondition runs a condition node against the variable set and
// returns the matching __true / __false result entry.
func evaluateCondition(node *models.Node, vars variableSet, logger *slog.Logger) (*models.ResultEntry, bool) {
	if len(node.Conditions) == 0 {
		return nil, false
	}

	results := make([]bool, 0, len(node.Conditions))
	for _, c := range node.Conditions {
		results = append(results, evaluateComparison(c, vars.lookup(c.Variable), logger))
	}

	var outcome bool
	switch node.ConditionOperator {
	case "AND":
		outcome = allOf(results)
	case "OR":
		outcome = anyOf(results)
	default:
		// Operator "None": only the first condition counts.
		if len(results) > 1 {
			logger.Warn("Condition node has extra conditions without an operator, ignoring them",
				"node_id", node.ID, "conditions", len(results))
		}
		outcome = results[0]
	}

	suffix := "__false"
	if outcome {
		suffix = "__true"
	}
	entry := models.ResultEntryBySuffix(node.ConditionResult, suffix)
	if entry == nil {
		logger.Error("Condition node has no result entry for outcome",
			"node_id", node.ID, "outcome", outcome)
		return nil, false
	}
	return entry, outcome
}

func evaluateComparison(c models.NodeCondition, actual string, logger *slog.Logger) bool {
	expected := c.Value
	switch c.Type {
	case condEqual:
		return strings.TrimSpace(actual) == strings.TrimSpace(expected)
	case condNotEqual:
		return strings.TrimSpace(actual) != strings.TrimSpace(expected)
	case condContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case condNotContains:
		return !strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case condGreaterThan, condLessThan:
		a, errA := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		e, errE := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		if errA != nil || errE != nil {
			logger.Warn("Numeric comparison on non-numeric values",
				"type", c.Type, "actual", actual, "expected", expected)
			return false
		}
		if c.Type == condGreaterThan {
			return a > e
		}
		return a < e
	default:
		logger.Warn("Unknown condition type", "type", c.Type)
		return false
	}
}

func allOf(results []bool) bool {
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

func anyOf(results []bool) bool {
	for _, r := range results {
		if r {
			return true
		}
	}
	return false
}
