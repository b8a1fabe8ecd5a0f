package canvas

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/nodetypes"
)

func newTestStore() *Store {
	return NewStore(nodetypes.NewDefaultRegistry())
}

func TestBatchRollsBackOnError(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateNode("parent", valueobjects.Point{}, entities.MessageNode{Title: "P"}))

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	boom := errors.New("boom")
	err := s.Batch(func() error {
		require.NoError(t, s.CreateNode("child", valueobjects.Point{X: 10}, entities.MessageNode{Title: "C"}))
		if _, err := s.Connect("parent", valueobjects.PortOutput, "child", valueobjects.PortInput); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	nodes, lines, bindings := s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, lines)
	assert.Equal(t, 0, bindings)
	assert.Empty(t, changes, "rolled back batches are not announced")
}

func TestBatchIsOneUndoStep(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateNode("parent", valueobjects.Point{}, entities.MessageNode{Title: "P"}))

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	err := s.Batch(func() error {
		for _, id := range []valueobjects.ShapeID{"a", "b"} {
			if err := s.CreateNode(id, valueobjects.Point{}, entities.MessageNode{}); err != nil {
				return err
			}
			if _, err := s.Connect("parent", valueobjects.PortOutput, id, valueobjects.PortInput); err != nil {
				return err
			}
		}
		return s.AnimateMove([]entities.Move{{ID: "a", X: 5, Y: 6}}, 160*time.Millisecond)
	})
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeNodes, changes[0].Kind)
	assert.Equal(t, ChangeAnimation, changes[1].Kind)
	assert.Equal(t, 160*time.Millisecond, changes[1].Duration)

	shape, ok := s.Shape("a")
	require.True(t, ok)
	assert.Equal(t, valueobjects.Point{X: 5, Y: 6}, shape.Position)

	require.True(t, s.Undo())
	nodes, lines, _ := s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, lines)
}

func TestUpdateMissingNodeIsNoop(t *testing.T) {
	s := newTestStore()

	found, err := s.UpdateNode("gone", func(n entities.Node) entities.Node { return n })

	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateBumpsVersion(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateNode("a", valueobjects.Point{}, entities.MessageNode{}))
	before, _ := s.Shape("a")

	found, err := s.UpdateNode("a", func(n entities.Node) entities.Node {
		m := n.(entities.MessageNode)
		m.AssistantMessage = "hi"
		return m
	})
	require.NoError(t, err)
	require.True(t, found)

	after, _ := s.Shape("a")
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, "hi", after.Node.(entities.MessageNode).AssistantMessage)
}

func TestRenderedBounds(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateNode("a", valueobjects.Point{X: 10, Y: 20}, entities.MessageNode{}))

	b, ok := s.RenderedBounds("a")
	require.True(t, ok)
	assert.Equal(t, valueobjects.Bounds{X: 10, Y: 20, W: 320, H: 60}, b)

	_, ok = s.RenderedBounds("missing")
	assert.False(t, ok)
}

func TestDocumentRoundTripMigratesNodes(t *testing.T) {
	legacy := []byte(`{
		"schema": 1,
		"nodes": [
			{"id": "root", "x": 0, "y": 0, "node": {"type": "rootchat", "idea": "notes app"}},
			{"id": "m", "x": 10, "y": 300, "node": {"type": "message", "assistantMessage": "hi", "width": 400}}
		],
		"connections": [{"id": "line", "start": {"x": 0, "y": 0}, "end": {"x": 0, "y": 0}}],
		"bindings": [
			{"id": "b1", "connectionId": "line", "nodeId": "root", "terminal": "start", "portId": "output"},
			{"id": "b2", "connectionId": "line", "nodeId": "m", "terminal": "end", "portId": "input"},
			{"id": "bad", "connectionId": "line", "nodeId": "m", "terminal": "sideways", "portId": "input"}
		]
	}`)

	s := newTestStore()
	require.NoError(t, s.UnmarshalDocument(legacy))

	root, ok := s.Shape("root")
	require.True(t, ok)
	assert.Equal(t, entities.RootIntakeNode{Title: "Root Chat", Idea: "notes app"}, root.Node)

	m, ok := s.Shape("m")
	require.True(t, ok)
	assert.Equal(t, entities.MessageNode{Title: "New Message", AssistantMessage: "hi", Width: entities.Float(400)}, m.Node)

	_, _, bindings := s.Counts()
	assert.Equal(t, 2, bindings)

	data, err := s.MarshalDocument()
	require.NoError(t, err)

	reloaded := newTestStore()
	require.NoError(t, reloaded.UnmarshalDocument(data))
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestStore_ImportsStoreSnapshot(t *testing.T) {
	snapshot := []byte(`{
		"schema": {"schemaVersion": 2},
		"store": {
			"shape:root": {"id": "shape:root", "typeName": "shape", "type": "rootchat", "x": 0, "y": 0, "props": {"idea": "notes app"}},
			"shape:m": {"id": "shape:m", "typeName": "shape", "type": "message", "x": 0, "y": 400, "props": {"userMessage": "why"}},
			"shape:line": {"id": "shape:line", "typeName": "shape", "type": "connection", "x": 0, "y": 0, "props": {}},
			"binding:a": {"id": "binding:a", "typeName": "binding", "type": "connection", "fromId": "shape:line", "toId": "shape:root", "props": {"terminal": "start", "portId": "output"}},
			"binding:b": {"id": "binding:b", "typeName": "binding", "type": "connection", "fromId": "shape:line", "toId": "shape:m", "props": {"terminal": "end", "portId": "input"}},
			"page:page": {"id": "page:page", "typeName": "page", "name": "Page 1"}
		}
	}`)

	s := newTestStore()
	require.NoError(t, s.UnmarshalDocument(snapshot))

	nodes, connections, bindings := s.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, connections)
	assert.Equal(t, 2, bindings)

	m, ok := s.Shape("shape:m")
	require.True(t, ok)
	assert.Equal(t, 400.0, m.Position.Y)
	assert.Equal(t, "why", m.Node.(entities.MessageNode).UserMessage)

	children := s.BindingsTo("shape:m")
	require.Len(t, children, 1)
	assert.Equal(t, valueobjects.ShapeID("shape:line"), children[0].ConnectionID)
}
