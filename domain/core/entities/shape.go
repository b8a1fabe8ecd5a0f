package entities

import (
	"ideacanvas/domain/core/valueobjects"
)

// NodeShape places a node on the canvas.
// Version increments on every write to the record and keys derived caches
type NodeShape struct {
	ID       valueobjects.ShapeID
	Position valueobjects.Point
	Node     Node
	Version  uint64
}

// ConnectionShape is the line entity both bindings of a connection point at
type ConnectionShape struct {
	ID    valueobjects.ShapeID `json:"id"`
	Start valueobjects.Point   `json:"start"`
	End   valueobjects.Point   `json:"end"`
}

// Binding ties one end of a connection line to a node port.
// Bindings are owned by the shape store and reference nodes weakly by id
type Binding struct {
	ID           valueobjects.ShapeID  `json:"id"`
	ConnectionID valueobjects.ShapeID  `json:"connectionId"`
	NodeID       valueobjects.ShapeID  `json:"nodeId"`
	Terminal     valueobjects.Terminal `json:"terminal"`
	PortID       valueobjects.PortID   `json:"portId"`
}

// Move is a target position for one node
type Move struct {
	ID valueobjects.ShapeID `json:"id"`
	X  float64              `json:"x"`
	Y  float64              `json:"y"`
}
