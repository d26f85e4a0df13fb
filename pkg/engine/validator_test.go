package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/channels"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestValidateText(t *testing.T) {
	tests := []struct {
		name  string
		v     *models.AnswerValidation
		reply string
		want  bool
	}{
		{"empty reply always fails", nil, "", false},
		{"no config accepts anything", nil, "whatever", true},
		{"text type accepts anything", &models.AnswerValidation{Type: models.ValidationText}, "hi", true},
		{"number ok", &models.AnswerValidation{Type: models.ValidationNumber}, "12.5", true},
		{"number rejects text", &models.AnswerValidation{Type: models.ValidationNumber}, "twelve", false},
		{"number below min", &models.AnswerValidation{Type: models.ValidationNumber, MinValue: floatPtr(5)}, "4", false},
		{"number above max", &models.AnswerValidation{Type: models.ValidationNumber, MaxValue: floatPtr(10)}, "11", false},
		{"number in range", &models.AnswerValidation{Type: models.ValidationNumber, MinValue: floatPtr(5), MaxValue: floatPtr(10)}, "7", true},
		{"email ok", &models.AnswerValidation{Type: models.ValidationEmail}, "a@b.co", true},
		{"email missing domain", &models.AnswerValidation{Type: models.ValidationEmail}, "a@b", false},
		{"phone ok", &models.AnswerValidation{Type: models.ValidationPhone}, "+351 912 345 678", true},
		{"phone too short", &models.AnswerValidation{Type: models.ValidationPhone}, "+12", false},
		{"regex ok", &models.AnswerValidation{Type: models.ValidationRegex, Regex: `^[A-Z]{3}-\d+$`}, "ABC-42", true},
		{"regex miss", &models.AnswerValidation{Type: models.ValidationRegex, Regex: `^[A-Z]{3}-\d+$`}, "abc-42", false},
		{"invalid regex fails closed", &models.AnswerValidation{Type: models.ValidationRegex, Regex: `([`}, "anything", false},
		{"empty regex accepts", &models.AnswerValidation{Type: models.ValidationRegex}, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateText(tt.v, tt.reply))
		})
	}
}

func TestValidateReply(t *testing.T) {
	flow := &models.Flow{
		ID: "f",
		Nodes: []models.Node{
			{
				ID: "q-buttons", Type: models.NodeTypeButtonQuestion,
				FailsCount: 2,
				ExpectedAnswers: []models.ExpectedAnswer{
					{ID: "a1", Title: "Yes", NodeResultID: "n1"},
					{ID: "a2", Title: "No", NodeResultID: "n2"},
				},
			},
			{
				ID: "q-list", Type: models.NodeTypeListQuestion,
				ExpectedAnswers: []models.ExpectedAnswer{
					{ID: "l1", Title: "Large", NodeResultID: "n3"},
				},
			},
			{ID: "q-free", Type: models.NodeTypeQuestion},
			{ID: "msg", Type: models.NodeTypeMessage},
		},
	}
	node := func(id string) *models.Node { return flow.NodeByID(id) }

	t.Run("button payload match", func(t *testing.T) {
		res := validateReply(flow, node("q-buttons"), &channels.Message{ButtonPayload: "a1", InteractiveValue: "Yes"}, 0)
		assert.Equal(t, StatusMatched, res.Status)
		assert.Equal(t, "a1", res.BranchRef)
		require.NotNil(t, res.MatchedNode)
		assert.Equal(t, "q-buttons", res.MatchedNode.ID)
	})

	t.Run("title match ignores case and padding", func(t *testing.T) {
		res := validateReply(flow, node("q-buttons"), &channels.Message{Text: "  yes "}, 0)
		assert.Equal(t, StatusMatched, res.Status)
		assert.Equal(t, "a1", res.BranchRef)
	})

	t.Run("list answer from another node", func(t *testing.T) {
		res := validateReply(flow, node("q-buttons"), &channels.Message{Text: "Large"}, 0)
		assert.Equal(t, StatusMatchedOtherNode, res.Status)
		// The matched node, not the matched answer, is the branch reference.
		assert.Equal(t, "q-list", res.BranchRef)
		require.NotNil(t, res.MatchedNode)
		assert.Equal(t, "q-list", res.MatchedNode.ID)
	})

	t.Run("mismatch under budget retries", func(t *testing.T) {
		res := validateReply(flow, node("q-buttons"), &channels.Message{Text: "maybe"}, 0)
		assert.Equal(t, StatusMismatchRetry, res.Status)
	})

	t.Run("mismatch at budget exits", func(t *testing.T) {
		res := validateReply(flow, node("q-buttons"), &channels.Message{Text: "maybe"}, 1)
		assert.Equal(t, StatusValidationExit, res.Status)
	})

	t.Run("free text uses default edge", func(t *testing.T) {
		res := validateReply(flow, node("q-free"), &channels.Message{Text: "anything"}, 0)
		assert.Equal(t, StatusUseDefaultEdge, res.Status)
		assert.Equal(t, "anything", res.Reply)
	})

	t.Run("free text never cross-matches other nodes", func(t *testing.T) {
		res := validateReply(flow, node("q-free"), &channels.Message{Text: ""}, 0)
		assert.Equal(t, StatusMismatchRetry, res.Status)
	})

	t.Run("non-question node is an error", func(t *testing.T) {
		res := validateReply(flow, node("msg"), &channels.Message{Text: "hello"}, 0)
		assert.Equal(t, StatusError, res.Status)
	})
}
