// Package services contains the domain services between the HTTP API and
// the store/engine layers.
package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// EventProcessor runs one inbound event through the flow state machine.
// The engine implements it.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, msg *models.WebhookMessage) error
}

// WebhookService persists inbound events and drives them through the
// engine, tracking pending → processed/error status on each.
type WebhookService struct {
	store     database.Store
	processor EventProcessor
	logger    *slog.Logger
}

// NewWebhookService creates the service. Both dependencies are required.
func NewWebhookService(store database.Store, processor EventProcessor) *WebhookService {
	if store == nil {
		panic("services: store is required")
	}
	if processor == nil {
		panic("services: event processor is required")
	}
	return &WebhookService{
		store:     store,
		processor: processor,
		logger:    slog.Default().With("component", "webhook-service"),
	}
}

// SubmitWebhookInput is an inbound event from a channel connector.
type SubmitWebhookInput struct {
	Sender               string
	BrandID              int
	UserID               string
	Channel              string
	ChannelIdentifier    string
	ChannelPhoneNumberID string
	MessageType          string
	MessageBody          map[string]any
}

// Process validates, persists, and runs an inbound event. The returned id
// identifies the stored webhook regardless of processing outcome.
func (s *WebhookService) Process(ctx context.Context, input SubmitWebhookInput) (string, error) {
	if input.Sender == "" {
		return "", NewValidationError("sender", "is required")
	}
	if input.Channel == "" {
		return "", NewValidationError("channel", "is required")
	}
	if input.BrandID == 0 {
		return "", NewValidationError("brand_id", "is required")
	}

	msg := &models.WebhookMessage{
		ID:                   uuid.NewString(),
		Sender:               input.Sender,
		BrandID:              input.BrandID,
		UserID:               input.UserID,
		Channel:              input.Channel,
		ChannelIdentifier:    input.ChannelIdentifier,
		ChannelPhoneNumberID: input.ChannelPhoneNumberID,
		MessageType:          input.MessageType,
		MessageBody:          input.MessageBody,
		Status:               models.WebhookPending,
	}
	return msg.ID, s.run(ctx, msg)
}

// ProcessSynthetic runs a scheduler-produced event through the same
// persist-and-process path as connector traffic.
func (s *WebhookService) ProcessSynthetic(ctx context.Context, msg *models.WebhookMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = models.WebhookPending
	return s.run(ctx, msg)
}

func (s *WebhookService) run(ctx context.Context, msg *models.WebhookMessage) error {
	if err := s.store.SaveWebhook(ctx, msg); err != nil {
		return err
	}
	s.logger.Info("Webhook received",
		"webhook_id", msg.ID, "channel", msg.Channel, "sender", msg.Sender, "brand_id", msg.BrandID)

	if err := s.processor.ProcessEvent(ctx, msg); err != nil {
		s.logger.Error("Webhook processing failed", "webhook_id", msg.ID, "error", err)
		if updateErr := s.store.UpdateWebhookStatus(ctx, msg.ID, models.WebhookError); updateErr != nil {
			s.logger.Error("Failed to mark webhook as errored",
				"webhook_id", msg.ID, "error", updateErr)
		}
		return err
	}

	if err := s.store.UpdateWebhookStatus(ctx, msg.ID, models.WebhookProcessed); err != nil {
		s.logger.Error("Failed to mark webhook as processed",
			"webhook_id", msg.ID, "error", err)
	}
	return nil
}
