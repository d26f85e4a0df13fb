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

// UpsertVariable writes a flow variable, replacing any previous value for
// the same (user, brand, flow, name) key.
func (m *Mongo) UpsertVariable(ctx context.Context, vc *models.VariableContext) error {
	vc.UpdatedAt = time.Now().UTC()
	_, err := m.db.Collection(collContexts).UpdateOne(ctx,
		bson.M{
			"user_identifier": vc.UserIdentifier,
			"brand_id":        vc.BrandID,
			"flow_id":         vc.FlowID,
			"variable_name":   vc.Name,
		},
		bson.M{
			"$set":         bson.M{"variable_value": vc.Value, "updated_at": vc.UpdatedAt},
			"$setOnInsert": bson.M{"_id": vc.ID},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert variable: %w", err)
	}
	return nil
}

// ListVariables returns every variable captured for the user in the flow.
func (m *Mongo) ListVariables(ctx context.Context, userIdentifier string, brandID int, flowID string) ([]models.VariableContext, error) {
	cursor, err := m.db.Collection(collContexts).Find(ctx, bson.M{
		"user_identifier": userIdentifier,
		"brand_id":        brandID,
		"flow_id":         flowID,
	})
	if err != nil {
		return nil, fmt.Errorf("find variables: %w", err)
	}
	defer cursor.Close(ctx)

	var vars []models.VariableContext
	if err := cursor.All(ctx, &vars); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return vars, nil
}

// ArmTimer cancels any pending timer for the user state and inserts the
// new one, so a re-armed delay never fires twice.
func (m *Mongo) ArmTimer(ctx context.Context, timer *models.DelayTimer) error {
	if err := m.CancelForUser(ctx, timer.UserStateID); err != nil {
		return err
	}
	timer.CreatedAt = time.Now().UTC()
	timer.UpdatedAt = timer.CreatedAt
	if _, err := m.db.Collection(collDelays).InsertOne(ctx, timer); err != nil {
		return fmt.Errorf("insert delay timer: %w", err)
	}
	return nil
}

// GetTimer loads a delay timer by id.
func (m *Mongo) GetTimer(ctx context.Context, id string) (*models.DelayTimer, error) {
	var timer models.DelayTimer
	err := m.db.Collection(collDelays).FindOne(ctx, bson.M{"_id": id}).Decode(&timer)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delay timer: %w", err)
	}
	return &timer, nil
}

// ClaimDue flips due pending timers to claimed one at a time so that
// concurrent scheduler replicas never fire the same timer twice. The
// caller settles each claim with MarkProcessed or ReleaseTimer.
func (m *Mongo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DelayTimer, error) {
	var claimed []models.DelayTimer
	for len(claimed) < limit {
		var timer models.DelayTimer
		err := m.db.Collection(collDelays).FindOneAndUpdate(ctx,
			bson.M{"status": models.DelayPending, "completes_at": bson.M{"$lte": now}},
			bson.M{"$set": bson.M{"status": models.DelayClaimed, "updated_at": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&timer)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, fmt.Errorf("claim delay timer: %w", err)
		}
		claimed = append(claimed, timer)
	}
	return claimed, nil
}

// MarkProcessed finishes a claimed timer after its completion event ran.
func (m *Mongo) MarkProcessed(ctx context.Context, id string) error {
	return m.settleTimer(ctx, id, models.DelayProcessed)
}

// ReleaseTimer returns a claimed timer to pending so the next tick can
// retry it.
func (m *Mongo) ReleaseTimer(ctx context.Context, id string) error {
	return m.settleTimer(ctx, id, models.DelayPending)
}

func (m *Mongo) settleTimer(ctx context.Context, id string, status models.DelayTimerStatus) error {
	res, err := m.db.Collection(collDelays).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.DelayClaimed},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("settle delay timer: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelForUser cancels the user's pending timers (delay interrupt, flow
// exit, or re-arm).
func (m *Mongo) CancelForUser(ctx context.Context, userStateID string) error {
	_, err := m.db.Collection(collDelays).UpdateMany(ctx,
		bson.M{"user_state_id": userStateID, "status": models.DelayPending},
		bson.M{"$set": bson.M{"status": models.DelayCancelled, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("cancel delay timers: %w", err)
	}
	return nil
}

// PurgeFinishedBefore removes processed and cancelled timers older than
// the cutoff.
func (m *Mongo) PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.db.Collection(collDelays).DeleteMany(ctx, bson.M{
		"status":     bson.M{"$in": []models.DelayTimerStatus{models.DelayProcessed, models.DelayCancelled}},
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("purge delay timers: %w", err)
	}
	return res.DeletedCount, nil
}

// Record inserts a node audit record.
func (m *Mongo) Record(ctx context.Context, txn *models.Transaction) error {
	txn.CreatedAt = time.Now().UTC()
	if _, err := m.db.Collection(collTransactions).InsertOne(ctx, txn); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// CountByNode aggregates transaction counts per node for a flow.
func (m *Mongo) CountByNode(ctx context.Context, flowID string) (map[string]int64, error) {
	cursor, err := m.db.Collection(collTransactions).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"flow_id": flowID}}},
		{{Key: "$group", Value: bson.M{"_id": "$node_id", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			NodeID string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode transaction count: %w", err)
		}
		counts[row.NodeID] = row.Count
	}
	return counts, cursor.Err()
}

// ListByUser returns the user's audit trail, newest first.
func (m *Mongo) ListByUser(ctx context.Context, userIdentifier string, brandID int) ([]models.Transaction, error) {
	cursor, err := m.db.Collection(collTransactions).Find(ctx,
		bson.M{"user_identifier": userIdentifier, "brand_id": brandID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txns, nil
}

// SaveWebhook inserts an inbound event document.
func (m *Mongo) SaveWebhook(ctx context.Context, msg *models.WebhookMessage) error {
	msg.CreatedAt = time.Now().UTC()
	msg.UpdatedAt = msg.CreatedAt
	if _, err := m.db.Collection(collWebhooks).InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("save webhook: %w", err)
	}
	return nil
}

// UpdateWebhookStatus moves a webhook through its processing lifecycle.
func (m *Mongo) UpdateWebhookStatus(ctx context.Context, id string, status models.WebhookStatus) error {
	res, err := m.db.Collection(collWebhooks).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update webhook status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeProcessedBefore removes processed webhooks older than the cutoff.
func (m *Mongo) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.db.Collection(collWebhooks).DeleteMany(ctx, bson.M{
		"status":     models.WebhookProcessed,
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("purge webhooks: %w", err)
	}
	return res.DeletedCount, nil
}
