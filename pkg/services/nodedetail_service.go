package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// NodeDetailService serves the node-type catalog.
type NodeDetailService struct {
	store database.NodeDetailStore
}

// NewNodeDetailService creates the service.
func NewNodeDetailService(store database.NodeDetailStore) *NodeDetailService {
	if store == nil {
		panic("services: node detail store is required")
	}
	return &NodeDetailService{store: store}
}

// List returns the full catalog.
func (s *NodeDetailService) List(ctx context.Context) ([]models.NodeDetail, error) {
	return s.store.ListNodeDetails(ctx)
}

// ListByCategory filters the catalog by category (trigger, action,
// internal).
func (s *NodeDetailService) ListByCategory(ctx context.Context, category string) ([]models.NodeDetail, error) {
	if category == "" {
		return nil, NewValidationError("category", "is required")
	}
	return s.store.ListNodeDetailsByCategory(ctx, category)
}

// CreateNodeDetailInput is the payload for adding a catalog entry.
type CreateNodeDetailInput struct {
	Type              models.NodeType
	Category          string
	Title             string
	Description       string
	UserInputRequired bool
	Fields            []string
}

// Create adds a catalog entry.
func (s *NodeDetailService) Create(ctx context.Context, input CreateNodeDetailInput) (*models.NodeDetail, error) {
	if input.Type == "" {
		return nil, NewValidationError("type", "is required")
	}
	if input.Title == "" {
		return nil, NewValidationError("title", "is required")
	}
	detail := &models.NodeDetail{
		ID:                uuid.NewString(),
		Type:              input.Type,
		Category:          input.Category,
		Title:             input.Title,
		Description:       input.Description,
		UserInputRequired: input.UserInputRequired,
		Fields:            input.Fields,
	}
	if err := s.store.CreateNodeDetail(ctx, detail); err != nil {
		return nil, err
	}
	return detail, nil
}
