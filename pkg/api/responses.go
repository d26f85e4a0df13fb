package api

import (
	"time"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// WebhookAcceptedResponse acknowledges an inbound event.
type WebhookAcceptedResponse struct {
	Status    string `json:"status"`
	WebhookID string `json:"webhook_id"`
}

// FlowSummary is the list view of a flow.
type FlowSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	BrandID     int               `json:"brand_id"`
	Status      models.FlowStatus `json:"status"`
	NodeCount   int               `json:"node_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toFlowSummary(f *models.Flow) FlowSummary {
	return FlowSummary{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		BrandID:     f.BrandID,
		Status:      f.Status,
		NodeCount:   len(f.Nodes),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// HealthCheck is one component's health.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}
