package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// SeedNodeDetail inserts a catalog entry unless one already exists for the
// node type. Used for the embedded catalog at startup.
func (m *Mongo) SeedNodeDetail(ctx context.Context, detail *models.NodeDetail) error {
	detail.CreatedAt = time.Now().UTC()
	_, err := m.db.Collection(collNodeDetails).UpdateOne(ctx,
		bson.M{"type": detail.Type},
		bson.M{"$setOnInsert": detail},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("seed node detail: %w", err)
	}
	return nil
}

// CreateNodeDetail inserts a new catalog entry.
func (m *Mongo) CreateNodeDetail(ctx context.Context, detail *models.NodeDetail) error {
	detail.CreatedAt = time.Now().UTC()
	if _, err := m.db.Collection(collNodeDetails).InsertOne(ctx, detail); err != nil {
		return fmt.Errorf("create node detail: %w", err)
	}
	return nil
}

// ListNodeDetails returns the full node-type catalog.
func (m *Mongo) ListNodeDetails(ctx context.Context) ([]models.NodeDetail, error) {
	return m.findNodeDetails(ctx, bson.M{})
}

// ListNodeDetailsByCategory filters the catalog by category.
func (m *Mongo) ListNodeDetailsByCategory(ctx context.Context, category string) ([]models.NodeDetail, error) {
	return m.findNodeDetails(ctx, bson.M{"category": category})
}

func (m *Mongo) findNodeDetails(ctx context.Context, filter bson.M) ([]models.NodeDetail, error) {
	cursor, err := m.db.Collection(collNodeDetails).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "type", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find node details: %w", err)
	}
	defer cursor.Close(ctx)

	var details []models.NodeDetail
	if err := cursor.All(ctx, &details); err != nil {
		return nil, fmt.Errorf("decode node details: %w", err)
	}
	return details, nil
}

// SaveSchedule upserts a time-based trigger.
func (m *Mongo) SaveSchedule(ctx context.Context, s *models.ScheduledTrigger) error {
	s.UpdatedAt = time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	_, err := m.db.Collection(collSchedules).ReplaceOne(ctx,
		bson.M{"_id": s.ID},
		s,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// ClaimDueSchedules advances each due schedule to its next run time with a
// compare-and-set on next_run_at so only one replica fires a given run.
func (m *Mongo) ClaimDueSchedules(ctx context.Context, now time.Time, nextRun func(*models.ScheduledTrigger) time.Time) ([]models.ScheduledTrigger, error) {
	cursor, err := m.db.Collection(collSchedules).Find(ctx, bson.M{
		"enabled":     true,
		"next_run_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("find due schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var due []models.ScheduledTrigger
	if err := cursor.All(ctx, &due); err != nil {
		return nil, fmt.Errorf("decode due schedules: %w", err)
	}

	var claimed []models.ScheduledTrigger
	for i := range due {
		s := due[i]
		res, err := m.db.Collection(collSchedules).UpdateOne(ctx,
			bson.M{"_id": s.ID, "next_run_at": s.NextRunAt},
			bson.M{"$set": bson.M{"next_run_at": nextRun(&s), "updated_at": time.Now().UTC()}})
		if err != nil {
			return claimed, fmt.Errorf("claim schedule: %w", err)
		}
		if res.ModifiedCount == 1 {
			claimed = append(claimed, s)
		}
	}
	return claimed, nil
}
