package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func validInput() SaveFlowInput {
	return SaveFlowInput{
		BrandID: 7,
		Name:    "Welcome flow",
		Nodes: []models.Node{
			{ID: "trig", Type: models.NodeTypeTriggerKeyword, IsStartNode: true, TriggerKeywords: []string{"hi"}},
			{ID: "msg", Type: models.NodeTypeMessage, MessageText: "Hello"},
		},
		Edges: []models.Edge{{ID: "e1", SourceNodeID: "trig", TargetNodeID: "msg"}},
	}
}

func TestCreateFlowValidation(t *testing.T) {
	svc := NewFlowService(database.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*SaveFlowInput)
	}{
		{"missing name", func(in *SaveFlowInput) { in.Name = "" }},
		{"missing brand", func(in *SaveFlowInput) { in.BrandID = 0 }},
		{"no nodes", func(in *SaveFlowInput) { in.Nodes = nil }},
		{"node without id", func(in *SaveFlowInput) { in.Nodes[0].ID = "" }},
		{"no start node", func(in *SaveFlowInput) { in.Nodes[0].IsStartNode = false }},
		{"two start nodes", func(in *SaveFlowInput) { in.Nodes[1].IsStartNode = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.CreateFlow(ctx, "author-1", input)
			assert.True(t, IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateFlowStartsAsDraft(t *testing.T) {
	svc := NewFlowService(database.NewMemory())

	flow, err := svc.CreateFlow(context.Background(), "author-1", validInput())
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusDraft, flow.Status)
	assert.Equal(t, "author-1", flow.UserID)
	assert.NotEmpty(t, flow.ID)
}

func TestUpdateFlowPreservesStatusAndChecksOwnership(t *testing.T) {
	store := database.NewMemory()
	svc := NewFlowService(store)
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, "author-1", validInput())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "author-1", flow.ID, models.FlowStatusPublished)
	require.NoError(t, err)

	input := validInput()
	input.Name = "Renamed"
	updated, err := svc.UpdateFlow(ctx, "author-1", flow.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, models.FlowStatusPublished, updated.Status)

	_, err = svc.UpdateFlow(ctx, "intruder", flow.ID, input)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateFlow(ctx, "author-1", "missing", input)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc := NewFlowService(database.NewMemory())
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, "author-1", validInput())
	require.NoError(t, err)

	// draft -> stop is not allowed.
	_, err = svc.UpdateStatus(ctx, "author-1", flow.ID, models.FlowStatusStop)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// draft -> published -> stop -> published is the legal cycle.
	for _, status := range []models.FlowStatus{
		models.FlowStatusPublished, models.FlowStatusStop, models.FlowStatusPublished,
	} {
		updated, err := svc.UpdateStatus(ctx, "author-1", flow.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	// published -> draft is never allowed.
	_, err = svc.UpdateStatus(ctx, "author-1", flow.ID, models.FlowStatusDraft)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, "author-1", flow.ID, "archived")
	assert.True(t, IsValidationError(err))
}

func TestGetFlowDetailCounts(t *testing.T) {
	store := database.NewMemory()
	svc := NewFlowService(store)
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, "author-1", validInput())
	require.NoError(t, err)

	t.Run("draft flows carry no counts", func(t *testing.T) {
		detail, err := svc.GetFlowDetail(ctx, "author-1", flow.ID)
		require.NoError(t, err)
		for _, n := range detail.Nodes {
			assert.Nil(t, n.TransactionCount)
		}
	})

	t.Run("published flows carry per-node counts", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "author-1", flow.ID, models.FlowStatusPublished)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Record(ctx, &models.Transaction{
				ID: "txn-" + string(rune('a'+i)), UserIdentifier: "+1555", BrandID: 7,
				FlowID: flow.ID, NodeID: "msg", NodeType: models.NodeTypeMessage,
			}))
		}

		detail, err := svc.GetFlowDetail(ctx, "author-1", flow.ID)
		require.NoError(t, err)
		counts := map[string]int64{}
		for _, n := range detail.Nodes {
			require.NotNil(t, n.TransactionCount)
			counts[n.ID] = *n.TransactionCount
		}
		assert.Equal(t, int64(3), counts["msg"])
		assert.Equal(t, int64(0), counts["trig"])
	})

	t.Run("ownership enforced", func(t *testing.T) {
		_, err := svc.GetFlowDetail(ctx, "intruder", flow.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestDeleteFlow(t *testing.T) {
	svc := NewFlowService(database.NewMemory())
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, "author-1", validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteFlow(ctx, "intruder", flow.ID), ErrForbidden)
	require.NoError(t, svc.DeleteFlow(ctx, "author-1", flow.ID))
	assert.ErrorIs(t, svc.DeleteFlow(ctx, "author-1", flow.ID), ErrNotFound)
}

func TestListFlows(t *testing.T) {
	svc := NewFlowService(database.NewMemory())
	ctx := context.Background()

	_, err := svc.CreateFlow(ctx, "author-1", validInput())
	require.NoError(t, err)
	_, err = svc.CreateFlow(ctx, "author-2", validInput())
	require.NoError(t, err)

	flows, err := svc.ListFlows(ctx, "author-1")
	require.NoError(t, err)
	assert.Len(t, flows, 1)
}
