package queries

import (
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/pkg/utils"
)

// GetCanvasQuery asks for the persisted document of a canvas
type GetCanvasQuery struct {
	ChatID string `json:"chat_id" validate:"required"`
}

// Validate validates the query
func (q GetCanvasQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetNodeQuery asks for one node with its rendered size
type GetNodeQuery struct {
	ChatID string               `json:"chat_id" validate:"required"`
	NodeID valueobjects.ShapeID `json:"node_id" validate:"required"`
}

// Validate validates the query
func (q GetNodeQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// NodeView is a node as clients see it
type NodeView struct {
	ID   valueobjects.ShapeID `json:"id"`
	X    float64              `json:"x"`
	Y    float64              `json:"y"`
	W    float64              `json:"w"`
	H    float64              `json:"h"`
	Node map[string]any       `json:"node"`
}

// TraverseGraphQuery lists the nodes reachable from StartID. Direction
// "end" follows incoming connections, "start" outgoing ones, empty both
type TraverseGraphQuery struct {
	ChatID    string               `json:"chat_id" validate:"required"`
	StartID   valueobjects.ShapeID `json:"start_id" validate:"required"`
	Direction string               `json:"direction" validate:"omitempty,oneof=start end"`
}

// Validate validates the query
func (q TraverseGraphQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetPromptContextQuery asks for the ancestor and sibling text of a node
type GetPromptContextQuery struct {
	ChatID string               `json:"chat_id" validate:"required"`
	NodeID valueobjects.ShapeID `json:"node_id" validate:"required"`
}

// Validate validates the query
func (q GetPromptContextQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetNodeConnectionsQuery asks for the ports and connections of a node
type GetNodeConnectionsQuery struct {
	ChatID string               `json:"chat_id" validate:"required"`
	NodeID valueobjects.ShapeID `json:"node_id" validate:"required"`
}

// Validate validates the query
func (q GetNodeConnectionsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// NodeConnections is the answer to GetNodeConnectionsQuery
type NodeConnections struct {
	NodeID      valueobjects.ShapeID `json:"nodeId"`
	Ports       []nodetypes.Port     `json:"ports"`
	Connections []graph.Connection   `json:"connections"`
}

// ExportPackQuery compiles the canvas into markdown files
type ExportPackQuery struct {
	ChatID string `json:"chat_id" validate:"required"`
}

// Validate validates the query
func (q ExportPackQuery) Validate() error {
	return utils.ValidateStruct(q)
}
