package layout

import (
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
)

// TreeNode is the per-call tree the layout works on
type TreeNode struct {
	ID       valueobjects.ShapeID
	Depth    int
	Children []*TreeNode
}

// BuildTree follows outgoing connections depth-first from root. A node
// reachable along several paths is placed under the first parent that
// reaches it, in connection creation order; cycles stop at the visited set
func BuildTree(r graph.Reader, root valueobjects.ShapeID) *TreeNode {
	visited := make(map[valueobjects.ShapeID]bool)
	return buildTree(r, root, 0, visited)
}

func buildTree(r graph.Reader, id valueobjects.ShapeID, depth int, visited map[valueobjects.ShapeID]bool) *TreeNode {
	visited[id] = true
	node := &TreeNode{ID: id, Depth: depth}
	for _, c := range graph.Connections(r, id) {
		if c.Terminal != valueobjects.TerminalStart || visited[c.ConnectedNodeID] {
			continue
		}
		node.Children = append(node.Children, buildTree(r, c.ConnectedNodeID, depth+1, visited))
	}
	return node
}

// Walk visits the tree in pre-order
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Height is the depth of the deepest descendant below n
func (n *TreeNode) Height() int {
	h := 0
	for _, c := range n.Children {
		if ch := c.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}
