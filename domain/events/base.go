package events

import (
	"time"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields. The aggregate is the canvas,
// identified by its chat id
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string { return e.AggregateID }
func (e BaseEvent) GetEventType() string { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int { return e.Version }

func newBase(chatID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: chatID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Node Events

// NodeCreated is raised when a node is added to a canvas
type NodeCreated struct {
	BaseEvent
	NodeID valueobjects.ShapeID `json:"node_id"`
	Kind   entities.NodeKind    `json:"kind"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(chatID string, nodeID valueobjects.ShapeID, kind entities.NodeKind, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: newBase(chatID, "node.created", timestamp),
		NodeID:    nodeID,
		Kind:      kind,
	}
}

// NodeUpdated is raised when node fields change
type NodeUpdated struct {
	BaseEvent
	NodeID valueobjects.ShapeID `json:"node_id"`
	Fields []string             `json:"fields"`
}

// NewNodeUpdated creates a NodeUpdated event
func NewNodeUpdated(chatID string, nodeID valueobjects.ShapeID, fields []string, timestamp time.Time) NodeUpdated {
	return NodeUpdated{
		BaseEvent: newBase(chatID, "node.updated", timestamp),
		NodeID:    nodeID,
		Fields:    fields,
	}
}

// NodeDeleted is raised when a node and its connections are removed
type NodeDeleted struct {
	BaseEvent
	NodeID valueobjects.ShapeID `json:"node_id"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(chatID string, nodeID valueobjects.ShapeID, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: newBase(chatID, "node.deleted", timestamp),
		NodeID:    nodeID,
	}
}

// Connection Events

// NodesConnected is raised when a connection line joins two nodes
type NodesConnected struct {
	BaseEvent
	ConnectionID valueobjects.ShapeID `json:"connection_id"`
	SourceID     valueobjects.ShapeID `json:"source_id"`
	TargetID     valueobjects.ShapeID `json:"target_id"`
}

// NewNodesConnected creates a NodesConnected event
func NewNodesConnected(chatID string, connectionID, sourceID, targetID valueobjects.ShapeID, timestamp time.Time) NodesConnected {
	return NodesConnected{
		BaseEvent:    newBase(chatID, "nodes.connected", timestamp),
		ConnectionID: connectionID,
		SourceID:     sourceID,
		TargetID:     targetID,
	}
}

// Layout and generation Events

// TreeLaidOut is raised after a layout pass moved nodes
type TreeLaidOut struct {
	BaseEvent
	RootID valueobjects.ShapeID `json:"root_id"`
	Moves  []entities.Move      `json:"moves"`
}

// NewTreeLaidOut creates a TreeLaidOut event
func NewTreeLaidOut(chatID string, rootID valueobjects.ShapeID, moves []entities.Move, timestamp time.Time) TreeLaidOut {
	return TreeLaidOut{
		BaseEvent: newBase(chatID, "tree.laid_out", timestamp),
		RootID:    rootID,
		Moves:     moves,
	}
}

// FanOutExpanded is raised when a node was expanded into generated children
type FanOutExpanded struct {
	BaseEvent
	ParentID   valueobjects.ShapeID   `json:"parent_id"`
	BranchIDs  []valueobjects.ShapeID `json:"branch_ids"`
	SectionIDs []valueobjects.ShapeID `json:"section_ids"`
}

// NewFanOutExpanded creates a FanOutExpanded event
func NewFanOutExpanded(chatID string, parentID valueobjects.ShapeID, branchIDs, sectionIDs []valueobjects.ShapeID, timestamp time.Time) FanOutExpanded {
	return FanOutExpanded{
		BaseEvent:  newBase(chatID, "node.fanned_out", timestamp),
		ParentID:   parentID,
		BranchIDs:  branchIDs,
		SectionIDs: sectionIDs,
	}
}

// GenerationFailed is raised when a node's generation fell back to its
// previous content
type GenerationFailed struct {
	BaseEvent
	NodeID    valueobjects.ShapeID `json:"node_id"`
	Operation string               `json:"operation"`
	Retryable bool                 `json:"retryable"`
	Reason    string               `json:"reason"`
}

// NewGenerationFailed creates a GenerationFailed event
func NewGenerationFailed(chatID string, nodeID valueobjects.ShapeID, operation string, retryable bool, reason string, timestamp time.Time) GenerationFailed {
	return GenerationFailed{
		BaseEvent: newBase(chatID, "generation.failed", timestamp),
		NodeID:    nodeID,
		Operation: operation,
		Retryable: retryable,
		Reason:    reason,
	}
}
