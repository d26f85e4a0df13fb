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

// SaveFlow upserts the flow document and rebuilds the denormalized
// flow_nodes, flow_edges, and flow_triggers documents derived from the
// embedded graph.
func (m *Mongo) SaveFlow(ctx context.Context, flow *models.Flow) error {
	flow.UpdatedAt = time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = flow.UpdatedAt
	}

	_, err := m.db.Collection(collFlows).ReplaceOne(ctx,
		bson.M{"_id": flow.ID},
		flow,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}

	if err := m.rebuildGraphDocs(ctx, flow); err != nil {
		return err
	}
	return m.rebuildTriggers(ctx, flow)
}

func (m *Mongo) rebuildGraphDocs(ctx context.Context, flow *models.Flow) error {
	for _, coll := range []string{collNodes, collEdges} {
		if _, err := m.db.Collection(coll).DeleteMany(ctx, bson.M{"flow_id": flow.ID}); err != nil {
			return fmt.Errorf("clear %s: %w", coll, err)
		}
	}

	if len(flow.Nodes) > 0 {
		docs := make([]any, 0, len(flow.Nodes))
		for _, n := range flow.Nodes {
			docs = append(docs, bson.M{"flow_id": flow.ID, "node_id": n.ID, "node": n})
		}
		if _, err := m.db.Collection(collNodes).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert flow nodes: %w", err)
		}
	}
	if len(flow.Edges) > 0 {
		docs := make([]any, 0, len(flow.Edges))
		for _, e := range flow.Edges {
			docs = append(docs, bson.M{"flow_id": flow.ID, "edge": e})
		}
		if _, err := m.db.Collection(collEdges).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert flow edges: %w", err)
		}
	}
	return nil
}

func (m *Mongo) rebuildTriggers(ctx context.Context, flow *models.Flow) error {
	if _, err := m.db.Collection(collTriggers).DeleteMany(ctx, bson.M{"flow_id": flow.ID}); err != nil {
		return fmt.Errorf("clear flow triggers: %w", err)
	}

	start := flow.StartNode()
	if start == nil || !start.Type.IsTrigger() {
		return nil
	}

	values := start.TriggerKeywords
	if start.Type == models.NodeTypeTriggerTemplate {
		values = []string{start.TemplateName}
	}
	trigger := models.Trigger{
		ID:            flow.ID + ":" + start.ID,
		FlowID:        flow.ID,
		BrandID:       flow.BrandID,
		NodeID:        start.ID,
		TriggerType:   start.Type,
		TriggerValues: values,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := m.db.Collection(collTriggers).InsertOne(ctx, trigger); err != nil {
		return fmt.Errorf("insert flow trigger: %w", err)
	}
	return nil
}

// GetFlow loads a flow by id.
func (m *Mongo) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	err := m.db.Collection(collFlows).FindOne(ctx, bson.M{"_id": id}).Decode(&flow)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}
	return &flow, nil
}

// ListFlowsByOwner returns every flow created by the given author, newest
// first.
func (m *Mongo) ListFlowsByOwner(ctx context.Context, userID string) ([]models.Flow, error) {
	return m.findFlows(ctx, bson.M{"user_id": userID})
}

// ListPublishedByBrand returns the brand's published flows, most recently
// updated first. Trigger matching ties break on this ordering.
func (m *Mongo) ListPublishedByBrand(ctx context.Context, brandID int) ([]models.Flow, error) {
	return m.findFlows(ctx, bson.M{"brand_id": brandID, "status": models.FlowStatusPublished})
}

func (m *Mongo) findFlows(ctx context.Context, filter bson.M) ([]models.Flow, error) {
	cursor, err := m.db.Collection(collFlows).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find flows: %w", err)
	}
	defer cursor.Close(ctx)

	var flows []models.Flow
	if err := cursor.All(ctx, &flows); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	return flows, nil
}

// UpdateFlowStatus sets the flow's lifecycle status.
func (m *Mongo) UpdateFlowStatus(ctx context.Context, id string, status models.FlowStatus) error {
	res, err := m.db.Collection(collFlows).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update flow status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFlow removes the flow and its derived documents.
func (m *Mongo) DeleteFlow(ctx context.Context, id string) error {
	res, err := m.db.Collection(collFlows).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	for _, coll := range []string{collNodes, collEdges, collTriggers} {
		if _, err := m.db.Collection(coll).DeleteMany(ctx, bson.M{"flow_id": id}); err != nil {
			return fmt.Errorf("delete derived %s: %w", coll, err)
		}
	}
	return nil
}

// ListTriggersByBrand returns the brand's denormalized flow triggers.
func (m *Mongo) ListTriggersByBrand(ctx context.Context, brandID int) ([]models.Trigger, error) {
	cursor, err := m.db.Collection(collTriggers).Find(ctx, bson.M{"brand_id": brandID})
	if err != nil {
		return nil, fmt.Errorf("find triggers: %w", err)
	}
	defer cursor.Close(ctx)

	var triggers []models.Trigger
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, fmt.Errorf("decode triggers: %w", err)
	}
	return triggers, nil
}
