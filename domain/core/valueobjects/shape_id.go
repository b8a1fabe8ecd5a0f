package valueobjects

import (
	"github.com/google/uuid"
)

const shapeIDPrefix = "shape:"

// ShapeID identifies a shape on the canvas (node or connection line)
// Loaded documents may carry ids minted by other clients, so any non-empty
// string is accepted; new ids are prefixed UUIDs
type ShapeID string

// NewShapeID creates a new random ShapeID
func NewShapeID() ShapeID {
	return ShapeID(shapeIDPrefix + uuid.New().String())
}

// String returns the string representation of the ShapeID
func (id ShapeID) String() string {
	return string(id)
}

// IsZero checks if the ShapeID is the zero value
func (id ShapeID) IsZero() bool {
	return id == ""
}
