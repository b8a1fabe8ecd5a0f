// Package layout arranges a node and its descendants as a tidy tree using
// the rendered size of every node.
package layout

import (
	"math"
	"time"

	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
)

// Mover is the store capability the engine needs to apply a plan
type Mover interface {
	graph.BoundsReader
	AnimateMove(moves []entities.Move, duration time.Duration) error
}

// Plan is the result of one layout pass
type Plan struct {
	Root     valueobjects.ShapeID
	Moves    []entities.Move
	Duration time.Duration
}

// Empty reports whether the plan moves nothing
func (p Plan) Empty() bool {
	return len(p.Moves) == 0
}

// Engine computes tree layouts
type Engine struct {
	cfg *config.CanvasConfig
}

// NewEngine creates a layout engine with the given geometry
func NewEngine(cfg *config.CanvasConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Apply computes the layout rooted at root and hands the moves to the store
// as one animated transition. A root without bounds is not an error: the
// plan is empty and nothing moves
func (e *Engine) Apply(store Mover, root valueobjects.ShapeID) (Plan, error) {
	plan, ok := e.Compute(store, root)
	if !ok || plan.Empty() {
		return plan, nil
	}
	if err := store.AnimateMove(plan.Moves, plan.Duration); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Compute returns target positions for root and every descendant reachable
// through outgoing connections. It reports false when root has no bounds
func (e *Engine) Compute(r graph.BoundsReader, root valueobjects.ShapeID) (Plan, bool) {
	rootBounds, ok := r.RenderedBounds(root)
	if !ok {
		return Plan{Root: root}, false
	}

	tree := BuildTree(r, root)

	sizes := make(map[valueobjects.ShapeID]valueobjects.Bounds)
	var totalH float64
	maxW := e.cfg.NodeWidth
	tree.Walk(func(n *TreeNode) {
		b, ok := r.RenderedBounds(n.ID)
		if !ok {
			return
		}
		sizes[n.ID] = b
		totalH += b.H
		maxW = math.Max(maxW, b.W)
	})
	avgH := e.cfg.LayoutDefaultHeight
	if len(sizes) > 0 {
		avgH = totalH / float64(len(sizes))
	}

	widthOf := func(id valueobjects.ShapeID) float64 {
		if b, ok := sizes[id]; ok {
			return b.W
		}
		return e.cfg.NodeWidth
	}
	heightOf := func(id valueobjects.ShapeID) float64 {
		if b, ok := sizes[id]; ok {
			return b.H
		}
		return avgH
	}

	marginX := e.cfg.LayoutMarginX
	dx := maxW + marginX
	xs := tidy(tree, func(a, b *TreeNode) float64 {
		return ((widthOf(a.ID)+widthOf(b.ID))/2 + marginX) / dx
	})

	// rows are as tall as their tallest node
	rowHeight := make(map[int]float64)
	tree.Walk(func(n *TreeNode) {
		if h := heightOf(n.ID); h > rowHeight[n.Depth] {
			rowHeight[n.Depth] = h
		}
	})
	gap := e.cfg.LayoutRowGap + e.cfg.LayoutMarginY
	rowY := make([]float64, tree.Height()+1)
	acc := 0.0
	for d := range rowY {
		rowY[d] = acc
		if h, ok := rowHeight[d]; ok {
			acc += h + gap
		} else {
			acc += avgH + gap
		}
	}

	positions := make(map[*TreeNode]valueobjects.Point)
	byDepth := make(map[int][]*TreeNode)
	tree.Walk(func(n *TreeNode) {
		positions[n] = valueobjects.Point{X: xs[n] * dx, Y: rowY[n.Depth]}
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
	})

	// cancel horizontal drift per row
	for _, row := range byDepth {
		if len(row) <= 1 {
			continue
		}
		minX, maxX := math.Inf(1), math.Inf(-1)
		for _, n := range row {
			minX = math.Min(minX, positions[n].X)
			maxX = math.Max(maxX, positions[n].X)
		}
		center := (minX + maxX) / 2
		for _, n := range row {
			p := positions[n]
			p.X -= center
			positions[n] = p
		}
	}

	// the tree origin is the root's horizontal center and its top edge
	originX := rootBounds.MidX()
	originY := rootBounds.Y

	plan := Plan{Root: root, Duration: e.cfg.LayoutAnimation}
	tree.Walk(func(n *TreeNode) {
		p := positions[n]
		plan.Moves = append(plan.Moves, entities.Move{
			ID: n.ID,
			X:  originX + p.X - widthOf(n.ID)/2,
			Y:  originY + p.Y,
		})
	})
	return plan, true
}
