package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// Memory is an in-memory Store implementation. It backs unit tests and
// gives local development a zero-dependency mode.
type Memory struct {
	mu           sync.RWMutex
	flows        map[string]models.Flow
	triggers     map[string]models.Trigger
	users        map[string]models.User
	variables    map[string]models.VariableContext
	delays       map[string]models.DelayTimer
	transactions []models.Transaction
	webhooks     map[string]models.WebhookMessage
	nodeDetails  map[string]models.NodeDetail
	schedules    map[string]models.ScheduledTrigger
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		flows:       make(map[string]models.Flow),
		triggers:    make(map[string]models.Trigger),
		users:       make(map[string]models.User),
		variables:   make(map[string]models.VariableContext),
		delays:      make(map[string]models.DelayTimer),
		webhooks:    make(map[string]models.WebhookMessage),
		nodeDetails: make(map[string]models.NodeDetail),
		schedules:   make(map[string]models.ScheduledTrigger),
	}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) SaveFlow(_ context.Context, flow *models.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flow.UpdatedAt = time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = flow.UpdatedAt
	}
	m.flows[flow.ID] = *flow

	for id, t := range m.triggers {
		if t.FlowID == flow.ID {
			delete(m.triggers, id)
		}
	}
	if start := flow.StartNode(); start != nil && start.Type.IsTrigger() {
		values := start.TriggerKeywords
		if start.Type == models.NodeTypeTriggerTemplate {
			values = []string{start.TemplateName}
		}
		id := flow.ID + ":" + start.ID
		m.triggers[id] = models.Trigger{
			ID:            id,
			FlowID:        flow.ID,
			BrandID:       flow.BrandID,
			NodeID:        start.ID,
			TriggerType:   start.Type,
			TriggerValues: values,
			CreatedAt:     time.Now().UTC(),
		}
	}
	return nil
}

func (m *Memory) GetFlow(_ context.Context, id string) (*models.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	flow, ok := m.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &flow, nil
}

func (m *Memory) ListFlowsByOwner(_ context.Context, userID string) ([]models.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var flows []models.Flow
	for _, f := range m.flows {
		if f.UserID == userID {
			flows = append(flows, f)
		}
	}
	sortFlowsByUpdated(flows)
	return flows, nil
}

func (m *Memory) ListPublishedByBrand(_ context.Context, brandID int) ([]models.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var flows []models.Flow
	for _, f := range m.flows {
		if f.BrandID == brandID && f.Status == models.FlowStatusPublished {
			flows = append(flows, f)
		}
	}
	sortFlowsByUpdated(flows)
	return flows, nil
}

func sortFlowsByUpdated(flows []models.Flow) {
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].UpdatedAt.After(flows[j].UpdatedAt)
	})
}

func (m *Memory) UpdateFlowStatus(_ context.Context, id string, status models.FlowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	flow, ok := m.flows[id]
	if !ok {
		return ErrNotFound
	}
	flow.Status = status
	flow.UpdatedAt = time.Now().UTC()
	m.flows[id] = flow
	return nil
}

func (m *Memory) DeleteFlow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return ErrNotFound
	}
	delete(m.flows, id)
	for tid, t := range m.triggers {
		if t.FlowID == id {
			delete(m.triggers, tid)
		}
	}
	return nil
}

func (m *Memory) ListTriggersByBrand(_ context.Context, brandID int) ([]models.Trigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var triggers []models.Trigger
	for _, t := range m.triggers {
		if t.BrandID == brandID {
			triggers = append(triggers, t)
		}
	}
	return triggers, nil
}

func (m *Memory) GetUser(_ context.Context, phoneNumber string, brandID int) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.PhoneNumber == phoneNumber && u.BrandID == brandID {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.UpdatedAt = time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) IncrementValidationFailure(_ context.Context, id, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	user.ValidationFailureCount++
	user.ValidationFailed = true
	user.ValidationFailureReason = message
	user.UpdatedAt = time.Now().UTC()
	m.users[id] = user
	return user.ValidationFailureCount, nil
}

func (m *Memory) ResetValidation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil
	}
	user.ValidationFailed = false
	user.ValidationFailureCount = 0
	user.ValidationFailureReason = ""
	user.UpdatedAt = time.Now().UTC()
	m.users[id] = user
	return nil
}

func variableKey(vc *models.VariableContext) string {
	return strings.Join([]string{vc.UserIdentifier, vc.FlowID, vc.Name}, "|")
}

func (m *Memory) UpsertVariable(_ context.Context, vc *models.VariableContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vc.UpdatedAt = time.Now().UTC()
	m.variables[variableKey(vc)] = *vc
	return nil
}

func (m *Memory) ListVariables(_ context.Context, userIdentifier string, brandID int, flowID string) ([]models.VariableContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var vars []models.VariableContext
	for _, v := range m.variables {
		if v.UserIdentifier == userIdentifier && v.BrandID == brandID && v.FlowID == flowID {
			vars = append(vars, v)
		}
	}
	return vars, nil
}

func (m *Memory) ArmTimer(_ context.Context, timer *models.DelayTimer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.delays {
		if t.UserStateID == timer.UserStateID && t.Status == models.DelayPending {
			t.Status = models.DelayCancelled
			t.UpdatedAt = time.Now().UTC()
			m.delays[id] = t
		}
	}
	timer.CreatedAt = time.Now().UTC()
	timer.UpdatedAt = timer.CreatedAt
	m.delays[timer.ID] = *timer
	return nil
}

func (m *Memory) GetTimer(_ context.Context, id string) (*models.DelayTimer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	timer, ok := m.delays[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &timer, nil
}

func (m *Memory) ClaimDue(_ context.Context, now time.Time, limit int) ([]models.DelayTimer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []models.DelayTimer
	for id, t := range m.delays {
		if len(claimed) >= limit {
			break
		}
		if t.Status == models.DelayPending && !t.CompletesAt.After(now) {
			t.Status = models.DelayClaimed
			t.UpdatedAt = time.Now().UTC()
			m.delays[id] = t
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

func (m *Memory) MarkProcessed(_ context.Context, id string) error {
	return m.settleTimer(id, models.DelayProcessed)
}

func (m *Memory) ReleaseTimer(_ context.Context, id string) error {
	return m.settleTimer(id, models.DelayPending)
}

func (m *Memory) settleTimer(id string, status models.DelayTimerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.delays[id]
	if !ok || t.Status != models.DelayClaimed {
		return ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	m.delays[id] = t
	return nil
}

func (m *Memory) CancelForUser(_ context.Context, userStateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.delays {
		if t.UserStateID == userStateID && t.Status == models.DelayPending {
			t.Status = models.DelayCancelled
			t.UpdatedAt = time.Now().UTC()
			m.delays[id] = t
		}
	}
	return nil
}

func (m *Memory) PurgeFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, t := range m.delays {
		finished := t.Status == models.DelayProcessed || t.Status == models.DelayCancelled
		if finished && t.UpdatedAt.Before(cutoff) {
			delete(m.delays, id)
			purged++
		}
	}
	return purged, nil
}

func (m *Memory) Record(_ context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn.CreatedAt = time.Now().UTC()
	m.transactions = append(m.transactions, *txn)
	return nil
}

func (m *Memory) CountByNode(_ context.Context, flowID string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, t := range m.transactions {
		if t.FlowID == flowID {
			counts[t.NodeID]++
		}
	}
	return counts, nil
}

func (m *Memory) ListByUser(_ context.Context, userIdentifier string, brandID int) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []models.Transaction
	for _, t := range m.transactions {
		if t.UserIdentifier == userIdentifier && t.BrandID == brandID {
			txns = append(txns, t)
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	return txns, nil
}

func (m *Memory) SaveWebhook(_ context.Context, msg *models.WebhookMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.CreatedAt = time.Now().UTC()
	msg.UpdatedAt = msg.CreatedAt
	m.webhooks[msg.ID] = *msg
	return nil
}

func (m *Memory) UpdateWebhookStatus(_ context.Context, id string, status models.WebhookStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.webhooks[id]
	if !ok {
		return ErrNotFound
	}
	msg.Status = status
	msg.UpdatedAt = time.Now().UTC()
	m.webhooks[id] = msg
	return nil
}

func (m *Memory) PurgeProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, w := range m.webhooks {
		if w.Status == models.WebhookProcessed && w.UpdatedAt.Before(cutoff) {
			delete(m.webhooks, id)
			purged++
		}
	}
	return purged, nil
}

func (m *Memory) SeedNodeDetail(_ context.Context, detail *models.NodeDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.nodeDetails {
		if d.Type == detail.Type {
			return nil
		}
	}
	detail.CreatedAt = time.Now().UTC()
	m.nodeDetails[detail.ID] = *detail
	return nil
}

func (m *Memory) CreateNodeDetail(_ context.Context, detail *models.NodeDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	detail.CreatedAt = time.Now().UTC()
	m.nodeDetails[detail.ID] = *detail
	return nil
}

func (m *Memory) ListNodeDetails(_ context.Context) ([]models.NodeDetail, error) {
	return m.listNodeDetails(func(models.NodeDetail) bool { return true })
}

func (m *Memory) ListNodeDetailsByCategory(_ context.Context, category string) ([]models.NodeDetail, error) {
	return m.listNodeDetails(func(d models.NodeDetail) bool { return d.Category == category })
}

func (m *Memory) listNodeDetails(keep func(models.NodeDetail) bool) ([]models.NodeDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var details []models.NodeDetail
	for _, d := range m.nodeDetails {
		if keep(d) {
			details = append(details, d)
		}
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Type < details[j].Type })
	return details, nil
}

func (m *Memory) SaveSchedule(_ context.Context, s *models.ScheduledTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	m.schedules[s.ID] = *s
	return nil
}

func (m *Memory) ClaimDueSchedules(_ context.Context, now time.Time, nextRun func(*models.ScheduledTrigger) time.Time) ([]models.ScheduledTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []models.ScheduledTrigger
	for id, s := range m.schedules {
		if s.Enabled && !s.NextRunAt.After(now) {
			fired := s
			s.NextRunAt = nextRun(&fired)
			s.UpdatedAt = time.Now().UTC()
			m.schedules[id] = s
			claimed = append(claimed, fired)
		}
	}
	return claimed, nil
}
