// Package database provides the document store behind the flow engine:
// a MongoDB implementation for production and an in-memory implementation
// for tests.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// FlowStore persists flows and their denormalized triggers.
type FlowStore interface {
	// SaveFlow upserts the flow and rebuilds its derived trigger documents
	// from the start node.
	SaveFlow(ctx context.Context, flow *models.Flow) error
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	ListFlowsByOwner(ctx context.Context, userID string) ([]models.Flow, error)
	ListPublishedByBrand(ctx context.Context, brandID int) ([]models.Flow, error)
	UpdateFlowStatus(ctx context.Context, id string, status models.FlowStatus) error
	DeleteFlow(ctx context.Context, id string) error
	ListTriggersByBrand(ctx context.Context, brandID int) ([]models.Trigger, error)
}

// UserStore persists per-channel-identity automation state.
type UserStore interface {
	// GetUser looks up by the (phone number, brand) natural key.
	GetUser(ctx context.Context, phoneNumber string, brandID int) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	// IncrementValidationFailure atomically bumps the failure counter and
	// returns the new count.
	IncrementValidationFailure(ctx context.Context, id, message string) (int, error)
	ResetValidation(ctx context.Context, id string) error
}

// ContextStore persists captured flow variables.
type ContextStore interface {
	UpsertVariable(ctx context.Context, vc *models.VariableContext) error
	ListVariables(ctx context.Context, userIdentifier string, brandID int, flowID string) ([]models.VariableContext, error)
}

// DelayStore persists delay-node wakeup timers.
type DelayStore interface {
	// ArmTimer replaces any pending timer for the same user state.
	ArmTimer(ctx context.Context, timer *models.DelayTimer) error
	GetTimer(ctx context.Context, id string) (*models.DelayTimer, error)
	// ClaimDue atomically flips due pending timers to claimed and returns
	// them; each timer is returned to exactly one caller, which settles
	// the claim with MarkProcessed or ReleaseTimer.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DelayTimer, error)
	// MarkProcessed finishes a claimed timer after its completion event ran.
	MarkProcessed(ctx context.Context, id string) error
	// ReleaseTimer returns a claimed timer to pending so the next tick can
	// retry it.
	ReleaseTimer(ctx context.Context, id string) error
	CancelForUser(ctx context.Context, userStateID string) error
	PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TransactionStore records the node-level audit trail.
type TransactionStore interface {
	Record(ctx context.Context, txn *models.Transaction) error
	CountByNode(ctx context.Context, flowID string) (map[string]int64, error)
	ListByUser(ctx context.Context, userIdentifier string, brandID int) ([]models.Transaction, error)
}

// WebhookStore persists inbound events and their processing status.
type WebhookStore interface {
	SaveWebhook(ctx context.Context, msg *models.WebhookMessage) error
	UpdateWebhookStatus(ctx context.Context, id string, status models.WebhookStatus) error
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NodeDetailStore persists the node-type catalog.
type NodeDetailStore interface {
	// SeedNodeDetail inserts the entry unless one for the type exists.
	SeedNodeDetail(ctx context.Context, detail *models.NodeDetail) error
	CreateNodeDetail(ctx context.Context, detail *models.NodeDetail) error
	ListNodeDetails(ctx context.Context) ([]models.NodeDetail, error)
	ListNodeDetailsByCategory(ctx context.Context, category string) ([]models.NodeDetail, error)
}

// ScheduleStore persists time-based flow triggers.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s *models.ScheduledTrigger) error
	// ClaimDueSchedules returns enabled schedules whose next run is due,
	// advancing each to nextRun(now) so one caller fires a given run.
	ClaimDueSchedules(ctx context.Context, now time.Time, nextRun func(*models.ScheduledTrigger) time.Time) ([]models.ScheduledTrigger, error)
}

// Store aggregates every collection the service uses.
type Store interface {
	FlowStore
	UserStore
	ContextStore
	DelayStore
	TransactionStore
	WebhookStore
	NodeDetailStore
	ScheduleStore

	Ping(ctx context.Context) error
}
