package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Collection names.
const (
	collFlows        = "flows"
	collNodes        = "flow_nodes"
	collEdges        = "flow_edges"
	collTriggers     = "flow_triggers"
	collUsers        = "users"
	collContexts     = "flow_user_context"
	collNodeDetails  = "node_details"
	collTransactions = "user_transactions"
	collDelays       = "delays"
	collWebhooks     = "flow_webhook_messages"
	collSchedules    = "flow_schedules"
)

// Mongo is the MongoDB-backed Store implementation.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*Mongo)(nil)

// NewMongo connects to MongoDB, verifies the connection, and ensures the
// indexes the engine relies on.
func NewMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI()).
		SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	m := &Mongo{
		client: client,
		db:     client.Database(cfg.Database),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return m, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks connectivity to the primary.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	type indexSpec struct {
		coll  string
		model mongo.IndexModel
	}
	unique := func(keys any) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys any) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	specs := []indexSpec{
		{collUsers, unique(map[string]int{"user_phone_number": 1, "brand_id": 1})},
		{collContexts, unique(map[string]int{"user_identifier": 1, "brand_id": 1, "flow_id": 1, "variable_name": 1})},
		{collDelays, plain(map[string]int{"status": 1, "completes_at": 1})},
		{collDelays, plain(map[string]int{"user_state_id": 1})},
		{collTriggers, plain(map[string]int{"brand_id": 1})},
		{collTransactions, plain(map[string]int{"flow_id": 1, "node_id": 1})},
		{collWebhooks, plain(map[string]int{"status": 1, "updated_at": 1})},
		{collSchedules, plain(map[string]int{"enabled": 1, "next_run_at": 1})},
	}
	for _, s := range specs {
		if _, err := m.db.Collection(s.coll).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("create index on %s: %w", s.coll, err)
		}
	}
	return nil
}

// HealthStatus reports store connectivity for the health endpoint.
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// Health pings the store and reports latency.
func Health(ctx context.Context, store Store) (*HealthStatus, error) {
	start := time.Now()
	if err := store.Ping(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}
	return &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
	}, nil
}
