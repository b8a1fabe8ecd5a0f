package layout

// Buchheim, Jünger and Leipert's linear-time variant of the Reingold-Tilford
// tidy tree, following the d3-hierarchy formulation. Positions come out in
// separation units; the root sits at 0.

type tidyNode struct {
	src      *TreeNode
	parent   *tidyNode
	children []*tidyNode

	ancestor        *tidyNode // a
	thread          *tidyNode // t
	defaultAncestor *tidyNode // A

	prelim float64 // z
	mod    float64 // m
	change float64 // c
	shift  float64 // s
	index  int     // i
	x      float64
}

// Separation returns the gap between two neighbouring nodes in units
type Separation func(a, b *TreeNode) float64

func newTidyTree(root *TreeNode) *tidyNode {
	var build func(n *TreeNode, index int) *tidyNode
	build = func(n *TreeNode, index int) *tidyNode {
		t := &tidyNode{src: n, index: index}
		t.ancestor = t
		for i, c := range n.Children {
			child := build(c, i)
			child.parent = t
			t.children = append(t.children, child)
		}
		return t
	}
	t := build(root, 0)
	sentinel := &tidyNode{children: []*tidyNode{t}}
	sentinel.ancestor = sentinel
	t.parent = sentinel
	return t
}

// tidy returns the x of every tree node in separation units
func tidy(root *TreeNode, sep Separation) map[*TreeNode]float64 {
	t := newTidyTree(root)
	l := &tidyLayout{sep: sep}

	eachAfter(t, l.firstWalk)
	t.parent.mod = -t.prelim
	eachBefore(t, l.secondWalk)

	out := make(map[*TreeNode]float64)
	eachBefore(t, func(v *tidyNode) { out[v.src] = v.x })
	return out
}

type tidyLayout struct {
	sep Separation
}

func (l *tidyLayout) firstWalk(v *tidyNode) {
	siblings := v.parent.children
	var w *tidyNode
	if v.index > 0 {
		w = siblings[v.index-1]
	}

	if len(v.children) > 0 {
		executeShifts(v)
		midpoint := (v.children[0].prelim + v.children[len(v.children)-1].prelim) / 2
		if w != nil {
			v.prelim = w.prelim + l.sep(v.src, w.src)
			v.mod = v.prelim - midpoint
		} else {
			v.prelim = midpoint
		}
	} else if w != nil {
		v.prelim = w.prelim + l.sep(v.src, w.src)
	}

	ancestor := v.parent.defaultAncestor
	if ancestor == nil {
		ancestor = siblings[0]
	}
	v.parent.defaultAncestor = l.apportion(v, w, ancestor)
}

func (l *tidyLayout) secondWalk(v *tidyNode) {
	v.x = v.prelim + v.parent.mod
	v.mod += v.parent.mod
}

// apportion pushes the subtree at v right until it clears every subtree to
// its left, contour by contour
func (l *tidyLayout) apportion(v, w, ancestor *tidyNode) *tidyNode {
	if w == nil {
		return ancestor
	}

	vip, vop := v, v
	vim := w
	vom := vip.parent.children[0]
	sip, sop := vip.mod, vop.mod
	sim, som := vim.mod, vom.mod

	for {
		vim = nextRight(vim)
		vip = nextLeft(vip)
		if vim == nil || vip == nil {
			break
		}
		vom = nextLeft(vom)
		vop = nextRight(vop)
		vop.ancestor = v

		shift := vim.prelim + sim - vip.prelim - sip + l.sep(vim.src, vip.src)
		if shift > 0 {
			moveSubtree(nextAncestor(vim, v, ancestor), v, shift)
			sip += shift
			sop += shift
		}
		sim += vim.mod
		sip += vip.mod
		som += vom.mod
		sop += vop.mod
	}

	if vim != nil && nextRight(vop) == nil {
		vop.thread = vim
		vop.mod += sim - sop
	}
	if vip != nil && nextLeft(vom) == nil {
		vom.thread = vip
		vom.mod += sip - som
		ancestor = v
	}
	return ancestor
}

func nextLeft(v *tidyNode) *tidyNode {
	if len(v.children) > 0 {
		return v.children[0]
	}
	return v.thread
}

func nextRight(v *tidyNode) *tidyNode {
	if len(v.children) > 0 {
		return v.children[len(v.children)-1]
	}
	return v.thread
}

func moveSubtree(wm, wp *tidyNode, shift float64) {
	change := shift / float64(wp.index-wm.index)
	wp.change -= change
	wp.shift += shift
	wm.change += change
	wp.prelim += shift
	wp.mod += shift
}

func executeShifts(v *tidyNode) {
	shift, change := 0.0, 0.0
	for i := len(v.children) - 1; i >= 0; i-- {
		w := v.children[i]
		w.prelim += shift
		w.mod += shift
		change += w.change
		shift += w.shift + change
	}
}

func nextAncestor(vim, v, ancestor *tidyNode) *tidyNode {
	if vim.ancestor.parent == v.parent {
		return vim.ancestor
	}
	return ancestor
}

func eachAfter(v *tidyNode, fn func(*tidyNode)) {
	for _, c := range v.children {
		eachAfter(c, fn)
	}
	fn(v)
}

func eachBefore(v *tidyNode, fn func(*tidyNode)) {
	fn(v)
	for _, c := range v.children {
		eachBefore(c, fn)
	}
}
