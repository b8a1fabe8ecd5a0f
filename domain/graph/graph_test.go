package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
)

type fixture struct {
	t     *testing.T
	store *canvas.Store
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: canvas.NewStore(nodetypes.NewDefaultRegistry())}
}

func (f *fixture) node(id, title, assistant string) valueobjects.ShapeID {
	sid := valueobjects.ShapeID(id)
	node := entities.MessageNode{Title: title, AssistantMessage: assistant, IsExpanded: true}
	require.NoError(f.t, f.store.CreateNode(sid, valueobjects.Point{}, node))
	return sid
}

func (f *fixture) connect(from, to valueobjects.ShapeID) valueobjects.ShapeID {
	line, err := f.store.Connect(from, valueobjects.PortOutput, to, valueobjects.PortInput)
	require.NoError(f.t, err)
	return line
}

func dir(t valueobjects.Terminal) *valueobjects.Terminal { return &t }

func TestConnectionsAreSymmetric(t *testing.T) {
	f := newFixture(t)
	a := f.node("a", "A", "")
	b := f.node("b", "B", "")
	line := f.connect(a, b)

	fromA := graph.Connections(f.store, a)
	fromB := graph.Connections(f.store, b)

	require.Len(t, fromA, 1)
	require.Len(t, fromB, 1)
	assert.Equal(t, graph.Connection{
		ConnectedNodeID: b,
		ConnectionID:    line,
		Terminal:        valueobjects.TerminalStart,
		OwnPortID:       valueobjects.PortOutput,
		ConnectedPortID: valueobjects.PortInput,
	}, fromA[0])
	assert.Equal(t, a, fromB[0].ConnectedNodeID)
	assert.Equal(t, line, fromB[0].ConnectionID)
	assert.Equal(t, valueobjects.TerminalEnd, fromB[0].Terminal)
}

func TestDanglingBindingIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.store.Restore(canvas.Document{
		Nodes: []canvas.NodeRecord{
			{ID: "a", Node: map[string]any{"type": "message"}},
			{ID: "b", Node: map[string]any{"type": "message"}},
		},
		Bindings: []entities.Binding{
			{ID: "b1", ConnectionID: "line", NodeID: "a", Terminal: valueobjects.TerminalStart, PortID: valueobjects.PortOutput},
			{ID: "b2", ConnectionID: "orphan", NodeID: "b", Terminal: valueobjects.TerminalEnd, PortID: valueobjects.PortInput},
		},
	})

	assert.Empty(t, graph.Connections(f.store, "a"))
	assert.Empty(t, graph.Connections(f.store, "b"))
	assert.Equal(t, []valueobjects.ShapeID{"a"}, graph.Traverse(f.store, "a", nil))
}

func TestTraverse(t *testing.T) {
	t.Run("single node", func(t *testing.T) {
		f := newFixture(t)
		idea := f.node("idea", "Idea", "")
		assert.Equal(t, []valueobjects.ShapeID{idea}, graph.Traverse(f.store, idea, nil))
	})

	t.Run("directions", func(t *testing.T) {
		f := newFixture(t)
		a := f.node("a", "A", "")
		b := f.node("b", "B", "")
		c := f.node("c", "C", "")
		f.connect(a, b)
		f.connect(b, c)

		assert.Equal(t, []valueobjects.ShapeID{a, b, c}, graph.Traverse(f.store, a, dir(valueobjects.TerminalStart)))
		assert.Equal(t, []valueobjects.ShapeID{c, b, a}, graph.Traverse(f.store, c, dir(valueobjects.TerminalEnd)))
		assert.Equal(t, []valueobjects.ShapeID{b, c}, graph.Traverse(f.store, b, dir(valueobjects.TerminalStart)))
		assert.ElementsMatch(t, []valueobjects.ShapeID{a, b, c}, graph.Traverse(f.store, b, nil))
		assert.Equal(t, []valueobjects.ShapeID{b, a}, graph.Traverse(f.store, b, dir(valueobjects.TerminalEnd)))
	})

	t.Run("cycle terminates", func(t *testing.T) {
		f := newFixture(t)
		a := f.node("a", "A", "")
		b := f.node("b", "B", "")
		c := f.node("c", "C", "")
		f.connect(a, b)
		f.connect(b, c)
		f.connect(c, a)

		got := graph.Traverse(f.store, a, dir(valueobjects.TerminalStart))
		assert.Equal(t, []valueobjects.ShapeID{a, b, c}, got)
	})

	t.Run("closed under outgoing hops", func(t *testing.T) {
		f := newFixture(t)
		r := f.node("r", "R", "")
		x := f.node("x", "X", "")
		y := f.node("y", "Y", "")
		z := f.node("z", "Z", "")
		other := f.node("other", "O", "")
		f.connect(r, x)
		f.connect(r, y)
		f.connect(y, z)
		f.connect(x, z)
		f.connect(other, r)

		got := graph.Traverse(f.store, r, dir(valueobjects.TerminalStart))
		set := map[valueobjects.ShapeID]bool{}
		for _, id := range got {
			set[id] = true
		}
		assert.True(t, set[r])
		assert.False(t, set[other])
		for id := range set {
			for _, child := range graph.Children(f.store, id) {
				assert.True(t, set[child], "%s reachable from %s", child, id)
			}
		}
	})
}

func TestSiblingsAndParent(t *testing.T) {
	f := newFixture(t)
	p := f.node("p", "P", "")
	a := f.node("a", "A", "")
	b := f.node("b", "B", "")
	c := f.node("c", "C", "")
	f.connect(p, a)
	f.connect(p, b)
	f.connect(p, c)

	parent, ok := graph.Parent(f.store, b)
	require.True(t, ok)
	assert.Equal(t, p, parent)
	assert.ElementsMatch(t, []valueobjects.ShapeID{a, c}, graph.Siblings(f.store, b))

	_, ok = graph.Parent(f.store, p)
	assert.False(t, ok)
	assert.Empty(t, graph.Siblings(f.store, p))
}

func TestBuildPromptContext(t *testing.T) {
	f := newFixture(t)
	root := valueobjects.ShapeID("root")
	require.NoError(t, f.store.CreateNode(root, valueobjects.Point{}, entities.RootIntakeNode{Title: "", Idea: "a recipe app"}))
	mid := f.node("mid", "Brief", strings.Repeat("x", 600))
	target := f.node("target", "Target", "own text")
	sib := f.node("sib", "Sibling", "sibling text")
	empty := f.node("empty", "Empty", "  ")
	f.connect(root, mid)
	f.connect(mid, target)
	f.connect(mid, sib)
	f.connect(mid, empty)

	got := graph.BuildPromptContext(f.store, target, graph.DefaultContextLimits())

	want := "## Parent Nodes (Context)\n" +
		"### Brief\n" + strings.Repeat("x", 500) + "...\n\n" +
		"### Untitled\na recipe app" +
		"\n\n## Sibling Nodes\n" +
		"- **Sibling**: sibling text"
	assert.Equal(t, want, got)

	t.Run("isolated node has no context", func(t *testing.T) {
		lone := f.node("lone", "Lone", "text")
		assert.Equal(t, "", graph.BuildPromptContext(f.store, lone, graph.DefaultContextLimits()))
	})
}

func TestPortCache(t *testing.T) {
	f := newFixture(t)
	registry := f.store.Registry()
	cache := graph.NewPortCache(registry)
	a := f.node("a", "A", "")

	first, ok := cache.Ports(f.store, a)
	require.True(t, ok)
	second, _ := cache.Ports(f.store, a)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.Len())

	_, err := f.store.UpdateNode(a, func(n entities.Node) entities.Node {
		m := n.(entities.MessageNode)
		m.Height = entities.Float(500)
		return m
	})
	require.NoError(t, err)

	out, ok := cache.Port(f.store, a, valueobjects.PortOutput)
	require.True(t, ok)
	assert.Equal(t, 500.0, out.Y, "version bump recomputes ports")

	in, ok := cache.PortFor(f.store, a, valueobjects.TerminalEnd)
	require.True(t, ok)
	assert.Equal(t, valueobjects.PortInput, in.ID)

	require.NoError(t, f.store.DeleteNode(a))
	_, ok = cache.Ports(f.store, a)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestDeleteCascadesConnections(t *testing.T) {
	f := newFixture(t)
	a := f.node("a", "A", "")
	b := f.node("b", "B", "")
	c := f.node("c", "C", "")
	f.connect(a, b)
	f.connect(b, c)

	require.NoError(t, f.store.DeleteNode(b))

	nodes, lines, bindings := f.store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 0, lines)
	assert.Equal(t, 0, bindings)
	assert.Empty(t, graph.Connections(f.store, a))
	assert.Empty(t, graph.Connections(f.store, c))
}
