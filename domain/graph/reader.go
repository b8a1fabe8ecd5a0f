// Package graph derives the logical node graph from shapes and bindings:
// ports, connections, traversal and prompt context.
//
// Every function takes the store it reads from as an argument.
package graph

import (
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

// Reader is the read capability of a shape store
type Reader interface {
	// Shape returns the node shape with id, false if absent or not a node
	Shape(id valueobjects.ShapeID) (entities.NodeShape, bool)
	// BindingsTo lists the bindings that attach connection lines to a node,
	// oldest first
	BindingsTo(nodeID valueobjects.ShapeID) []entities.Binding
	// BindingsOf lists the bindings that belong to one connection line
	BindingsOf(connectionID valueobjects.ShapeID) []entities.Binding
}

// BoundsReader exposes rendered geometry
type BoundsReader interface {
	Reader
	// RenderedBounds is absent until the node is mounted
	RenderedBounds(id valueobjects.ShapeID) (valueobjects.Bounds, bool)
}
