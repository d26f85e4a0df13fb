package api

import "github.com/chatflow-io/chatflow/pkg/models"

// WebhookMessageRequest is the inbound event payload from connectors.
type WebhookMessageRequest struct {
	Sender               string         `json:"sender" binding:"required"`
	BrandID              int            `json:"brand_id" binding:"required"`
	UserID               string         `json:"user_id"`
	Channel              string         `json:"channel" binding:"required"`
	ChannelIdentifier    string         `json:"channel_identifier"`
	ChannelPhoneNumberID string         `json:"channel_phone_number_id"`
	MessageType          string         `json:"message_type"`
	MessageBody          map[string]any `json:"message_body"`
}

// SaveFlowRequest creates or updates a flow.
type SaveFlowRequest struct {
	BrandID     int           `json:"brand_id" binding:"required"`
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	Nodes       []models.Node `json:"flowNodes" binding:"required"`
	Edges       []models.Edge `json:"flowEdges"`
}

// FlowStatusRequest changes a flow's lifecycle status.
type FlowStatusRequest struct {
	Status models.FlowStatus `json:"status" binding:"required"`
}

// CreateNodeDetailRequest adds a node-type catalog entry.
type CreateNodeDetailRequest struct {
	Type              models.NodeType `json:"type" binding:"required"`
	Category          string          `json:"category"`
	Title             string          `json:"title" binding:"required"`
	Description       string          `json:"description"`
	UserInputRequired bool            `json:"user_input_required"`
	Fields            []string        `json:"fields"`
}
