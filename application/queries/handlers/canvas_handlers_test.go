package handlers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/application/queries"
	"ideacanvas/application/queries/bus"
	"ideacanvas/application/queries/handlers"
	"ideacanvas/application/services"
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/persistence/memory"
	pkgerrors "ideacanvas/pkg/errors"
)

const chatID = "chat-queries"

type canvasFixture struct {
	bus                     *bus.QueryBus
	root, left, right, leaf valueobjects.ShapeID
}

// root -> left, root -> right, left -> leaf
func newCanvasFixture(t *testing.T) canvasFixture {
	t.Helper()
	cfg := config.DefaultCanvasConfig()
	registry := nodetypes.NewRegistry(cfg, nodetypes.DefaultTextMetrics())
	sessions := canvas.NewSessions(registry, memory.NewSnapshotStore(), nil, nil, zap.NewNop())
	store, err := sessions.Store(context.Background(), chatID)
	require.NoError(t, err)

	f := canvasFixture{root: store.NodeIDs()[0]}
	add := func(title, text string) valueobjects.ShapeID {
		id := valueobjects.NewShapeID()
		require.NoError(t, store.CreateNode(id, valueobjects.Point{}, entities.MessageNode{Title: title, AssistantMessage: text, IsExpanded: true}))
		return id
	}
	link := func(from, to valueobjects.ShapeID) {
		_, err := store.Connect(from, valueobjects.PortOutput, to, valueobjects.PortInput)
		require.NoError(t, err)
	}
	f.left = add("Left", "left text")
	f.right = add("Right", "right text")
	f.leaf = add("Leaf", "leaf text")
	link(f.root, f.left)
	link(f.root, f.right)
	link(f.left, f.leaf)

	f.bus = bus.NewQueryBus(nil)
	h := handlers.NewCanvasQueries(sessions, services.NewExportService(sessions, zap.NewNop()), graph.DefaultContextLimits())
	require.NoError(t, h.Register(f.bus))
	return f
}

func TestCanvasQueries_Traverse(t *testing.T) {
	f := newCanvasFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		start     valueobjects.ShapeID
		direction string
		want      []valueobjects.ShapeID
	}{
		{"descendants", f.root, "start", []valueobjects.ShapeID{f.root, f.left, f.right, f.leaf}},
		{"ancestors", f.leaf, "end", []valueobjects.ShapeID{f.leaf, f.left, f.root}},
		{"both ways", f.right, "", []valueobjects.ShapeID{f.right, f.root, f.left, f.leaf}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := bus.Ask[[]valueobjects.ShapeID](ctx, f.bus, queries.TraverseGraphQuery{ChatID: chatID, StartID: tt.start, Direction: tt.direction})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := f.bus.Ask(ctx, queries.TraverseGraphQuery{ChatID: chatID, StartID: f.root, Direction: "sideways"})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.bus.Ask(ctx, queries.TraverseGraphQuery{ChatID: chatID, StartID: "shape:missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrNodeNotFound)
}

func TestCanvasQueries_NodeConnections(t *testing.T) {
	f := newCanvasFixture(t)

	got, err := bus.Ask[queries.NodeConnections](context.Background(), f.bus, queries.GetNodeConnectionsQuery{ChatID: chatID, NodeID: f.left})
	require.NoError(t, err)

	require.Len(t, got.Ports, 2)
	assert.Equal(t, valueobjects.PortInput, got.Ports[0].ID)
	assert.Equal(t, valueobjects.PortOutput, got.Ports[1].ID)

	require.Len(t, got.Connections, 2)
	assert.Equal(t, f.root, got.Connections[0].ConnectedNodeID)
	assert.Equal(t, valueobjects.TerminalEnd, got.Connections[0].Terminal)
	assert.Equal(t, f.leaf, got.Connections[1].ConnectedNodeID)
	assert.Equal(t, valueobjects.TerminalStart, got.Connections[1].Terminal)
}

func TestCanvasQueries_ContextAndDocument(t *testing.T) {
	f := newCanvasFixture(t)
	ctx := context.Background()

	text, err := bus.Ask[string](ctx, f.bus, queries.GetPromptContextQuery{ChatID: chatID, NodeID: f.leaf})
	require.NoError(t, err)
	assert.Contains(t, text, "left text")

	node, err := bus.Ask[queries.NodeView](ctx, f.bus, queries.GetNodeQuery{ChatID: chatID, NodeID: f.left})
	require.NoError(t, err)
	assert.Equal(t, "Left", node.Node["title"])
	assert.Positive(t, node.W)

	doc, err := bus.Ask[json.RawMessage](ctx, f.bus, queries.GetCanvasQuery{ChatID: chatID})
	require.NoError(t, err)
	var decoded struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(doc, &decoded))
	assert.Len(t, decoded.Nodes, 4)

	files, err := bus.Ask[[]services.ExportFile](ctx, f.bus, queries.ExportPackQuery{ChatID: chatID})
	require.NoError(t, err)
	assert.Empty(t, files, "no branch node carries a pack header")
}
