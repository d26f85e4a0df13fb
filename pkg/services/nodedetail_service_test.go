package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func TestNodeDetailCreateAndList(t *testing.T) {
	store := database.NewMemory()
	svc := NewNodeDetailService(store)
	ctx := context.Background()

	require.NoError(t, database.SeedCatalog(ctx, store))

	detail, err := svc.Create(ctx, CreateNodeDetailInput{
		Type:     "webhook_action",
		Category: "action",
		Title:    "Webhook Action",
		Fields:   []string{"url"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, detail.ID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	actions, err := svc.ListByCategory(ctx, "action")
	require.NoError(t, err)
	assert.Len(t, actions, 5)
}

func TestNodeDetailCreateValidation(t *testing.T) {
	svc := NewNodeDetailService(database.NewMemory())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateNodeDetailInput{Title: "No type"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Create(ctx, CreateNodeDetailInput{Type: models.NodeTypeMessage})
	assert.True(t, IsValidationError(err))

	_, err = svc.ListByCategory(ctx, "")
	assert.True(t, IsValidationError(err))
}
