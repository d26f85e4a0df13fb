package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// GetUser looks up automation state by the (phone number, brand) key.
func (m *Mongo) GetUser(ctx context.Context, phoneNumber string, brandID int) (*models.User, error) {
	var user models.User
	err := m.db.Collection(collUsers).FindOne(ctx,
		bson.M{"user_phone_number": phoneNumber, "brand_id": brandID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetUserByID loads a user by document id. The delay scheduler resolves
// timer owners this way.
func (m *Mongo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := m.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &user, nil
}

// SaveUser upserts the full user document.
func (m *Mongo) SaveUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}
	_, err := m.db.Collection(collUsers).ReplaceOne(ctx,
		bson.M{"_id": user.ID},
		user,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// IncrementValidationFailure atomically bumps the failure counter, marks
// the user as failing validation, and returns the new count.
func (m *Mongo) IncrementValidationFailure(ctx context.Context, id, message string) (int, error) {
	var user models.User
	err := m.db.Collection(collUsers).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"validation_failure_count": 1},
			"$set": bson.M{
				"validation_failed":          true,
				"validation_failure_message": message,
				"updated_at":                 time.Now().UTC(),
			},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment validation failure: %w", err)
	}
	return user.ValidationFailureCount, nil
}

// ResetValidation clears the user's validation failure state.
func (m *Mongo) ResetValidation(ctx context.Context, id string) error {
	_, err := m.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"validation_failed":          false,
			"validation_failure_count":   0,
			"validation_failure_message": "",
			"updated_at":                 time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("reset validation: %w", err)
	}
	return nil
}
