package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatflow-io/chatflow/pkg/services"
)

// webhookMessageHandler handles POST /webhook/message. The event runs
// through the engine synchronously under the per-user lock; 202 means the
// event was stored and processed.
func (s *Server) webhookMessageHandler(c *gin.Context) {
	var req WebhookMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhookID, err := s.webhooks.Process(c.Request.Context(), services.SubmitWebhookInput{
		Sender:               req.Sender,
		BrandID:              req.BrandID,
		UserID:               req.UserID,
		Channel:              req.Channel,
		ChannelIdentifier:    req.ChannelIdentifier,
		ChannelPhoneNumberID: req.ChannelPhoneNumberID,
		MessageType:          req.MessageType,
		MessageBody:          req.MessageBody,
	})
	if err != nil {
		if services.IsValidationError(err) {
			mapServiceError(c, err)
			return
		}
		// The webhook is stored with an error status; the connector gets
		// the id so the event can be traced.
		s.logger.Error("Webhook processing failed", "webhook_id", webhookID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "processing failed",
			"webhook_id": webhookID,
		})
		return
	}

	c.JSON(http.StatusAccepted, WebhookAcceptedResponse{
		Status:    "accepted",
		WebhookID: webhookID,
	})
}
