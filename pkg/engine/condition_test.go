package engine

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/models"
)

func TestVariableSetLookup(t *testing.T) {
	set := newVariableSet([]models.VariableContext{
		{Name: "city", Value: "Lisbon"},
		{Name: "@tagged", Value: "yes"},
	})

	assert.Equal(t, "Lisbon", set.lookup("city"))
	assert.Equal(t, "Lisbon", set.lookup("@city"))
	assert.Equal(t, "yes", set.lookup("tagged"))
	assert.Equal(t, "yes", set.lookup("@tagged"))
	assert.Equal(t, "", set.lookup("missing"))
}

func TestEvaluateComparison(t *testing.T) {
	logger := slog.Default()

	tests := []struct {
		name     string
		condType string
		actual   string
		expected string
		want     bool
	}{
		{"equal exact", "Equal", "gold", "gold", true},
		{"equal trims whitespace", "Equal", "  gold  ", "gold", true},
		{"equal is case sensitive", "Equal", "Gold", "gold", false},
		{"not equal", "NotEqual", "silver", "gold", true},
		{"contains case insensitive", "Contains", "Team Gold Plan", "gold", true},
		{"contains miss", "Contains", "silver plan", "gold", false},
		{"not contains", "NotContains", "silver plan", "gold", true},
		{"greater than", "GreaterThan", "10.5", "10", true},
		{"greater than equal values", "GreaterThan", "10", "10", false},
		{"less than", "LessThan", "3", "10", true},
		{"numeric comparison on text is false", "GreaterThan", "abc", "10", false},
		{"numeric comparison on bad expected is false", "LessThan", "3", "ten", false},
		{"unknown type is false", "Matches", "x", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateComparison(models.NodeCondition{
				Variable: "v", Type: tt.condType, Value: tt.expected,
			}, tt.actual, logger)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	logger := slog.Default()
	entries := []models.ResultEntry{
		{ID: "n__true", NodeResultID: "t"},
		{ID: "n__false", NodeResultID: "f"},
	}
	vars := newVariableSet([]models.VariableContext{
		{Name: "tier", Value: "gold"},
		{Name: "points", Value: "150"},
	})

	t.Run("AND requires all", func(t *testing.T) {
		node := &models.Node{
			ID: "n", Type: models.NodeTypeCondition,
			ConditionOperator: "AND",
			Conditions: []models.NodeCondition{
				{Variable: "tier", Type: "Equal", Value: "gold"},
				{Variable: "points", Type: "GreaterThan", Value: "100"},
			},
			ConditionResult: entries,
		}
		entry, outcome := evaluateCondition(node, vars, logger)
		require.NotNil(t, entry)
		assert.True(t, outcome)
		assert.Equal(t, "t", entry.NodeResultID)

		node.Conditions[1].Value = "200"
		entry, outcome = evaluateCondition(node, vars, logger)
		require.NotNil(t, entry)
		assert.False(t, outcome)
		assert.Equal(t, "f", entry.NodeResultID)
	})

	t.Run("OR requires any", func(t *testing.T) {
		node := &models.Node{
			ID: "n", Type: models.NodeTypeCondition,
			ConditionOperator: "OR",
			Conditions: []models.NodeCondition{
				{Variable: "tier", Type: "Equal", Value: "silver"},
				{Variable: "points", Type: "GreaterThan", Value: "100"},
			},
			ConditionResult: entries,
		}
		entry, outcome := evaluateCondition(node, vars, logger)
		require.NotNil(t, entry)
		assert.True(t, outcome)
	})

	t.Run("no operator uses only the first condition", func(t *testing.T) {
		node := &models.Node{
			ID: "n", Type: models.NodeTypeCondition,
			Conditions: []models.NodeCondition{
				{Variable: "tier", Type: "Equal", Value: "gold"},
				{Variable: "tier", Type: "Equal", Value: "silver"},
			},
			ConditionResult: entries,
		}
		entry, outcome := evaluateCondition(node, vars, logger)
		require.NotNil(t, entry)
		assert.True(t, outcome)
	})

	t.Run("no conditions yields no entry", func(t *testing.T) {
		node := &models.Node{ID: "n", Type: models.NodeTypeCondition, ConditionResult: entries}
		entry, _ := evaluateCondition(node, vars, logger)
		assert.Nil(t, entry)
	})

	t.Run("missing result entry yields nil", func(t *testing.T) {
		node := &models.Node{
			ID: "n", Type: models.NodeTypeCondition,
			Conditions:      []models.NodeCondition{{Variable: "tier", Type: "Equal", Value: "gold"}},
			ConditionResult: []models.ResultEntry{{ID: "n__false", NodeResultID: "f"}},
		}
		entry, _ := evaluateCondition(node, vars, logger)
		assert.Nil(t, entry)
	})
}
