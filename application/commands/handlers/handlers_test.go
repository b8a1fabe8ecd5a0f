package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/application/commands"
	"ideacanvas/application/commands/bus"
	"ideacanvas/application/commands/handlers"
	"ideacanvas/application/ports"
	"ideacanvas/application/services"
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/validators"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/layout"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/generation"
	"ideacanvas/infrastructure/generation/mock"
	"ideacanvas/infrastructure/messaging"
	"ideacanvas/infrastructure/persistence/memory"
	pkgerrors "ideacanvas/pkg/errors"
)

const chatID = "chat-handlers"

func setup(t *testing.T) (*bus.CommandBus, *canvas.Store) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultCanvasConfig()
	registry := nodetypes.NewRegistry(cfg, nodetypes.DefaultTextMetrics())
	sessions := canvas.NewSessions(registry, memory.NewSnapshotStore(), nil, nil, logger)
	store, err := sessions.Store(context.Background(), chatID)
	require.NoError(t, err)

	publisher := messaging.NewLogPublisher(logger)
	layoutService := services.NewLayoutService(sessions, layout.NewEngine(cfg), publisher, nil, logger)
	expansion := services.NewExpansionService(sessions, layoutService, validators.NewGenerationValidator(), publisher, cfg, logger)
	generationService := services.NewGenerationService(sessions, mock.NewGenerator(0), expansion, nil, publisher, nil, nil, cfg, logger)

	b := bus.NewCommandBus(bus.LoggingMiddleware(logger))
	require.NoError(t, handlers.Register(b,
		handlers.NewNodeHandlers(services.NewNodeService(sessions, registry, publisher, logger), layoutService),
		handlers.NewGenerationHandlers(generationService, expansion),
	))
	return b, store
}

func TestCommands_NodeLifecycle(t *testing.T) {
	b, store := setup(t)
	ctx := context.Background()
	root := store.NodeIDs()[0]
	child := valueobjects.NewShapeID()

	require.NoError(t, b.Send(ctx, commands.CreateNodeCommand{ChatID: chatID, NodeID: child, Kind: "message", X: 700, Y: 900, Content: "hello"}))
	require.NoError(t, b.Send(ctx, commands.ConnectNodesCommand{ChatID: chatID, FromID: root, ToID: child}))
	require.NoError(t, b.Send(ctx, commands.LayoutTreeCommand{ChatID: chatID, RootID: root}))

	rootBounds, _ := store.RenderedBounds(root)
	childBounds, _ := store.RenderedBounds(child)
	assert.InDelta(t, rootBounds.MidX(), childBounds.MidX(), 0.001, "a single child is centred below its parent")
	assert.Greater(t, childBounds.Y, rootBounds.MaxY())

	require.NoError(t, b.Send(ctx, commands.RewriteNodeCommand{ChatID: chatID, NodeID: child, Instruction: "shorter"}))
	shape, _ := store.Shape(child)
	assert.Equal(t, "hello\n\n_Revised: shorter_", shape.Node.(entities.MessageNode).AssistantMessage)

	require.NoError(t, b.Send(ctx, commands.DeleteNodeCommand{ChatID: chatID, NodeID: child}))
	assert.Empty(t, graph.Children(store, root))
}

func TestCommands_Validation(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()

	err := b.Send(ctx, commands.CreateNodeCommand{ChatID: chatID, NodeID: "shape:x", Kind: "sticky"})
	assert.True(t, pkgerrors.IsValidation(err))

	err = b.Send(ctx, commands.SendMessageCommand{ChatID: chatID, NodeID: "shape:x"})
	assert.True(t, pkgerrors.IsValidation(err))

	err = b.Send(ctx, commands.LayoutTreeCommand{ChatID: chatID, RootID: "shape:missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrNodeNotFound)
}

func TestCommands_SubmitAndStream(t *testing.T) {
	b, store := setup(t)
	ctx := context.Background()
	root := store.NodeIDs()[0]

	require.NoError(t, b.Send(ctx, commands.SubmitRootIntakeCommand{ChatID: chatID, NodeID: root, Idea: "meal planner"}))
	shape, _ := store.Shape(root)
	m, ok := shape.Node.(entities.MessageNode)
	require.True(t, ok)
	assert.Equal(t, "meal planner", m.UserMessage)
	assert.Len(t, graph.Children(store, root), len(generation.ProductPack))

	var seen []ports.StreamEventType
	require.NoError(t, b.Send(ctx, commands.SendMessageCommand{
		ChatID:  chatID,
		NodeID:  root,
		Message: "what next?",
		OnEvent: func(e ports.StreamEvent) error {
			seen = append(seen, e.Type)
			return nil
		},
	}))
	require.NotEmpty(t, seen)
	assert.Equal(t, ports.StreamNodeDone, seen[len(seen)-1])

	shape, _ = store.Shape(root)
	assert.Equal(t, "Mock answer about what next?", shape.Node.(entities.MessageNode).AssistantMessage)
}
