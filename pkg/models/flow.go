// Package models defines the domain types shared across the store, engine,
// services, and API layers.
package models

import "time"

// FlowStatus is the lifecycle state of a flow.
type FlowStatus string

// Flow lifecycle states.
const (
	FlowStatusDraft     FlowStatus = "draft"
	FlowStatusPublished FlowStatus = "published"
	FlowStatusStop      FlowStatus = "stop"
)

// ValidTransition reports whether a flow may move from its current status
// to the requested one. Returning to draft is never allowed.
func (s FlowStatus) ValidTransition(to FlowStatus) bool {
	switch {
	case s == FlowStatusDraft && to == FlowStatusPublished:
		return true
	case s == FlowStatusPublished && to == FlowStatusStop:
		return true
	case s == FlowStatusStop && to == FlowStatusPublished:
		return true
	}
	return false
}

// Flow is a conversational automation: a directed graph of nodes and edges
// owned by a brand. The embedded graph is the source of truth; nodes, edges
// and triggers are additionally denormalized into their own collections on
// save so the engine can query them without loading every flow.
type Flow struct {
	ID          string     `bson:"_id" json:"id"`
	BrandID     int        `bson:"brand_id" json:"brand_id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Status      FlowStatus `bson:"status" json:"status"`
	Nodes       []Node     `bson:"flow_nodes" json:"flowNodes"`
	Edges       []Edge     `bson:"flow_edges" json:"flowEdges"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the node marked as the flow entry point, or nil.
func (f *Flow) StartNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].IsStartNode {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EdgeFrom returns the first edge whose source is the given id, or nil.
// Sources may be node ids, answer ids, or condition/delay result-entry ids.
func (f *Flow) EdgeFrom(sourceID string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].SourceNodeID == sourceID {
			return &f.Edges[i]
		}
	}
	return nil
}

// BranchTarget resolves a branch reference (a button/list answer id or a
// condition/delay result-entry id) to its target node id. The entry's
// nodeResultId wins; an edge keyed by the reference id is the fallback.
func (f *Flow) BranchTarget(refID string) (string, bool) {
	for i := range f.Nodes {
		n := &f.Nodes[i]
		for _, a := range n.ExpectedAnswers {
			if a.ID == refID && a.NodeResultID != "" {
				return a.NodeResultID, true
			}
		}
		for _, r := range n.ConditionResult {
			if r.ID == refID && r.NodeResultID != "" {
				return r.NodeResultID, true
			}
		}
		for _, r := range n.DelayResult {
			if r.ID == refID && r.NodeResultID != "" {
				return r.NodeResultID, true
			}
		}
	}
	if e := f.EdgeFrom(refID); e != nil {
		return e.TargetNodeID, true
	}
	return "", false
}

// Edge connects a source (node id, answer id, or result-entry id) to a
// target node.
type Edge struct {
	ID           string `bson:"id" json:"id"`
	SourceNodeID string `bson:"source_node_id" json:"source_node_id"`
	TargetNodeID string `bson:"target_node_id" json:"target_node_id"`
}

// Trigger is the denormalized start condition of a published flow, derived
// from its start node on save.
type Trigger struct {
	ID            string    `bson:"_id" json:"id"`
	FlowID        string    `bson:"flow_id" json:"flow_id"`
	BrandID       int       `bson:"brand_id" json:"brand_id"`
	NodeID        string    `bson:"node_id" json:"node_id"`
	TriggerType   NodeType  `bson:"trigger_type" json:"trigger_type"`
	TriggerValues []string  `bson:"trigger_values" json:"trigger_values"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
