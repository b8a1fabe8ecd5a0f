package graph

import (
	"ideacanvas/domain/core/valueobjects"
)

// Traverse walks the graph breadth-first from start and returns every
// reachable node in visit order, start included. With a direction only
// connections whose own terminal matches are followed: end collects
// ancestors, start collects descendants. Cycles terminate on the visited set
func Traverse(r Reader, start valueobjects.ShapeID, direction *valueobjects.Terminal) []valueobjects.ShapeID {
	visited := map[valueobjects.ShapeID]bool{start: true}
	order := []valueobjects.ShapeID{start}
	queue := []valueobjects.ShapeID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, c := range Connections(r, current) {
			if direction != nil && c.Terminal != *direction {
				continue
			}
			if visited[c.ConnectedNodeID] {
				continue
			}
			visited[c.ConnectedNodeID] = true
			order = append(order, c.ConnectedNodeID)
			queue = append(queue, c.ConnectedNodeID)
		}
	}
	return order
}

// Ancestors returns the nodes that flow into id, excluding id
func Ancestors(r Reader, id valueobjects.ShapeID) []valueobjects.ShapeID {
	dir := valueobjects.TerminalEnd
	return Traverse(r, id, &dir)[1:]
}
