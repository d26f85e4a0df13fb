package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// FlowService owns flow authoring: create/update, listing, detail with
// usage counts, lifecycle transitions, and deletion. Every operation is
// scoped to the calling author.
type FlowService struct {
	store  database.Store
	logger *slog.Logger
}

// NewFlowService creates the service.
func NewFlowService(store database.Store) *FlowService {
	if store == nil {
		panic("services: store is required")
	}
	return &FlowService{
		store:  store,
		logger: slog.Default().With("component", "flow-service"),
	}
}

// SaveFlowInput is the payload for creating or updating a flow.
type SaveFlowInput struct {
	BrandID     int
	Name        string
	Description string
	Nodes       []models.Node
	Edges       []models.Edge
}

func (in *SaveFlowInput) validate() error {
	if in.Name == "" {
		return NewValidationError("name", "is required")
	}
	if in.BrandID == 0 {
		return NewValidationError("brand_id", "is required")
	}
	if len(in.Nodes) == 0 {
		return NewValidationError("flowNodes", "at least one node is required")
	}
	starts := 0
	for _, n := range in.Nodes {
		if n.ID == "" {
			return NewValidationError("flowNodes", "every node needs an id")
		}
		if n.IsStartNode {
			starts++
		}
	}
	if starts != 1 {
		return NewValidationError("flowNodes", "exactly one start node is required")
	}
	return nil
}

// CreateFlow stores a new draft flow for the author.
func (s *FlowService) CreateFlow(ctx context.Context, userID string, input SaveFlowInput) (*models.Flow, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	flow := &models.Flow{
		ID:          uuid.NewString(),
		BrandID:     input.BrandID,
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Status:      models.FlowStatusDraft,
		Nodes:       input.Nodes,
		Edges:       input.Edges,
	}
	if err := s.store.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("Flow created", "flow_id", flow.ID, "user_id", userID, "name", flow.Name)
	return flow, nil
}

// UpdateFlow replaces the graph of an existing flow. Ownership is
// enforced; status is preserved.
func (s *FlowService) UpdateFlow(ctx context.Context, userID, flowID string, input SaveFlowInput) (*models.Flow, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	flow, err := s.getOwned(ctx, userID, flowID)
	if err != nil {
		return nil, err
	}
	flow.BrandID = input.BrandID
	flow.Name = input.Name
	flow.Description = input.Description
	flow.Nodes = input.Nodes
	flow.Edges = input.Edges
	if err := s.store.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("Flow updated", "flow_id", flow.ID, "user_id", userID)
	return flow, nil
}

// ListFlows returns the author's flows.
func (s *FlowService) ListFlows(ctx context.Context, userID string) ([]models.Flow, error) {
	return s.store.ListFlowsByOwner(ctx, userID)
}

// GetFlowDetail returns the flow with per-node usage counts when the flow
// has run (published or stopped).
func (s *FlowService) GetFlowDetail(ctx context.Context, userID, flowID string) (*models.Flow, error) {
	flow, err := s.getOwned(ctx, userID, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Status == models.FlowStatusPublished || flow.Status == models.FlowStatusStop {
		counts, err := s.store.CountByNode(ctx, flow.ID)
		if err != nil {
			return nil, err
		}
		for i := range flow.Nodes {
			count := counts[flow.Nodes[i].ID]
			flow.Nodes[i].TransactionCount = &count
		}
	}
	return flow, nil
}

// UpdateStatus applies a lifecycle transition: draft→published,
// published→stop, stop→published. Anything else is rejected.
func (s *FlowService) UpdateStatus(ctx context.Context, userID, flowID string, status models.FlowStatus) (*models.Flow, error) {
	switch status {
	case models.FlowStatusDraft, models.FlowStatusPublished, models.FlowStatusStop:
	default:
		return nil, NewValidationError("status", "unknown status")
	}

	flow, err := s.getOwned(ctx, userID, flowID)
	if err != nil {
		return nil, err
	}
	if !flow.Status.ValidTransition(status) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.UpdateFlowStatus(ctx, flowID, status); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("Flow status changed",
		"flow_id", flowID, "from", flow.Status, "to", status)
	flow.Status = status
	return flow, nil
}

// DeleteFlow removes the author's flow and its derived documents.
func (s *FlowService) DeleteFlow(ctx context.Context, userID, flowID string) error {
	if _, err := s.getOwned(ctx, userID, flowID); err != nil {
		return err
	}
	if err := s.store.DeleteFlow(ctx, flowID); err != nil {
		return mapStoreError(err)
	}
	s.logger.Info("Flow deleted", "flow_id", flowID, "user_id", userID)
	return nil
}

func (s *FlowService) getOwned(ctx context.Context, userID, flowID string) (*models.Flow, error) {
	flow, err := s.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if flow.UserID != userID {
		return nil, ErrForbidden
	}
	return flow, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
