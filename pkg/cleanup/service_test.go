package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func TestRunAllPurgesExpiredDocuments(t *testing.T) {
	store := database.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveWebhook(ctx, &models.WebhookMessage{
		ID: "w1", Sender: "+1555", BrandID: 7, Channel: "whatsapp",
	}))
	require.NoError(t, store.UpdateWebhookStatus(ctx, "w1", models.WebhookProcessed))

	require.NoError(t, store.ArmTimer(ctx, &models.DelayTimer{
		ID: "t1", UserStateID: "u1", Sender: "+1555", BrandID: 7,
		FlowID: "f1", NodeID: "d1", Status: models.DelayPending,
		CompletesAt: time.Now().UTC().Add(-time.Minute),
	}))
	_, err := store.ClaimDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, "t1"))

	// Zero retention makes everything already expired.
	svc := NewService(Config{Interval: time.Hour}, store)
	svc.runAll(ctx)

	assert.ErrorIs(t, store.UpdateWebhookStatus(ctx, "w1", models.WebhookProcessed), database.ErrNotFound)
	_, err = store.GetTimer(ctx, "t1")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRetentionKeepsRecentDocuments(t *testing.T) {
	store := database.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveWebhook(ctx, &models.WebhookMessage{
		ID: "w1", Sender: "+1555", BrandID: 7, Channel: "whatsapp",
	}))
	require.NoError(t, store.UpdateWebhookStatus(ctx, "w1", models.WebhookProcessed))

	svc := NewService(DefaultConfig(), store)
	svc.runAll(ctx)

	// A week of retention keeps a document processed moments ago.
	assert.NoError(t, store.UpdateWebhookStatus(ctx, "w1", models.WebhookProcessed))
}

func TestStartStop(t *testing.T) {
	svc := NewService(DefaultConfig(), database.NewMemory())
	svc.Start(context.Background())
	// Starting twice is a no-op.
	svc.Start(context.Background())
	svc.Stop()
	// Stopping twice is safe.
	assert.NotPanics(t, func() { svc.Stop() })
}
