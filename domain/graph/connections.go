package graph

import (
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

// Connection is one logical edge seen from one of its nodes.
// Terminal is this node's side: start means this node is the source
type Connection struct {
	ConnectedNodeID valueobjects.ShapeID  `json:"connectedNodeId"`
	ConnectionID    valueobjects.ShapeID  `json:"connectionId"`
	Terminal        valueobjects.Terminal `json:"terminal"`
	OwnPortID       valueobjects.PortID   `json:"ownPortId"`
	ConnectedPortID valueobjects.PortID   `json:"connectedPortId"`
}

// Connections lists the logical connections of nodeID in the order the
// store returns bindings (creation order). A binding whose connection line has no opposite binding is dangling and
// skipped
func Connections(r Reader, nodeID valueobjects.ShapeID) []Connection {
	bindings := r.BindingsTo(nodeID)

	result := make([]Connection, 0, len(bindings))
	for _, own := range bindings {
		other, ok := opposite(r, own)
		if !ok {
			continue
		}
		if _, exists := r.Shape(other.NodeID); !exists {
			continue
		}
		result = append(result, Connection{
			ConnectedNodeID: other.NodeID,
			ConnectionID:    own.ConnectionID,
			Terminal:        own.Terminal,
			OwnPortID:       own.PortID,
			ConnectedPortID: other.PortID,
		})
	}
	return result
}

func opposite(r Reader, own entities.Binding) (entities.Binding, bool) {
	want := own.Terminal.Opposite()
	for _, b := range r.BindingsOf(own.ConnectionID) {
		if b.ID != own.ID && b.Terminal == want {
			return b, true
		}
	}
	return entities.Binding{}, false
}

// Parent returns the source node of the first incoming connection
func Parent(r Reader, nodeID valueobjects.ShapeID) (valueobjects.ShapeID, bool) {
	for _, c := range Connections(r, nodeID) {
		if c.Terminal == valueobjects.TerminalEnd {
			return c.ConnectedNodeID, true
		}
	}
	return "", false
}

// Children returns the targets of outgoing connections in connection order
func Children(r Reader, nodeID valueobjects.ShapeID) []valueobjects.ShapeID {
	return neighbours(r, nodeID, valueobjects.TerminalStart)
}

// Siblings returns the other children of nodeID's parent
func Siblings(r Reader, nodeID valueobjects.ShapeID) []valueobjects.ShapeID {
	parent, ok := Parent(r, nodeID)
	if !ok {
		return nil
	}
	var siblings []valueobjects.ShapeID
	for _, id := range Children(r, parent) {
		if id != nodeID {
			siblings = append(siblings, id)
		}
	}
	return siblings
}

func neighbours(r Reader, nodeID valueobjects.ShapeID, terminal valueobjects.Terminal) []valueobjects.ShapeID {
	seen := make(map[valueobjects.ShapeID]bool)
	var ids []valueobjects.ShapeID
	for _, c := range Connections(r, nodeID) {
		if c.Terminal != terminal || seen[c.ConnectedNodeID] {
			continue
		}
		seen[c.ConnectedNodeID] = true
		ids = append(ids, c.ConnectedNodeID)
	}
	return ids
}
