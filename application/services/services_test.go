package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/application/services"
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/validators"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/layout"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/persistence/memory"
)

const chatID = "chat-1"

// MockGenerator is a mock implementation of ports.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Rewrite(ctx context.Context, req ports.RewriteRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) SmartDecide(ctx context.Context, req ports.SmartRequest) (entities.Decision, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entities.Decision), args.Error(1)
}

func (m *MockGenerator) FanOut(ctx context.Context, idea string) (entities.FanOut, error) {
	args := m.Called(ctx, idea)
	return args.Get(0).(entities.FanOut), args.Error(1)
}

func (m *MockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Stream(ctx context.Context, prompt string, onDelta func(string) error) error {
	args := m.Called(ctx, prompt)
	for _, delta := range args.Get(0).([]string) {
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	return args.Error(1)
}

// recorder collects published events and notifications
type recorder struct {
	mu            sync.Mutex
	events        []events.DomainEvent
	notifications []ports.StreamEvent
}

func (r *recorder) Publish(_ context.Context, event events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, e := range batch {
		_ = r.Publish(ctx, e)
	}
	return nil
}

func (r *recorder) Notify(_ context.Context, _ string, event ports.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, event)
	return nil
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.GetEventType())
	}
	return out
}

func (r *recorder) notificationTypes() []ports.StreamEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.StreamEventType
	for _, n := range r.notifications {
		out = append(out, n.Type)
	}
	return out
}

type fixture struct {
	cfg        *config.CanvasConfig
	sessions   *canvas.Sessions
	store      *canvas.Store
	generator  *MockGenerator
	recorder   *recorder
	layout     *services.LayoutService
	expansion  *services.ExpansionService
	generation *services.GenerationService
	export     *services.ExportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultCanvasConfig()
	registry := nodetypes.NewRegistry(cfg, nodetypes.DefaultTextMetrics())
	sessions := canvas.NewSessions(registry, memory.NewSnapshotStore(), nil, nil, zap.NewNop())
	store, err := sessions.Store(context.Background(), chatID)
	require.NoError(t, err)

	rec := &recorder{}
	gen := &MockGenerator{}
	layoutService := services.NewLayoutService(sessions, layout.NewEngine(cfg), rec, nil, zap.NewNop())
	expansion := services.NewExpansionService(sessions, layoutService, validators.NewGenerationValidator(), rec, cfg, zap.NewNop())
	generation := services.NewGenerationService(sessions, gen, expansion, rec, rec, nil, nil, cfg, zap.NewNop())

	return &fixture{
		cfg:        cfg,
		sessions:   sessions,
		store:      store,
		generator:  gen,
		recorder:   rec,
		layout:     layoutService,
		expansion:  expansion,
		generation: generation,
		export:     services.NewExportService(sessions, zap.NewNop()),
	}
}

// seed returns the root intake node every new canvas starts with
func (f *fixture) seed(t *testing.T) valueobjects.ShapeID {
	t.Helper()
	ids := f.store.NodeIDs()
	require.Len(t, ids, 1)
	return ids[0]
}

func (f *fixture) message(t *testing.T, title, assistant string, at valueobjects.Point) valueobjects.ShapeID {
	t.Helper()
	id := valueobjects.NewShapeID()
	require.NoError(t, f.store.CreateNode(id, at, entities.MessageNode{Title: title, AssistantMessage: assistant, IsExpanded: true}))
	return id
}

func (f *fixture) connect(t *testing.T, from, to valueobjects.ShapeID) {
	t.Helper()
	_, err := f.store.Connect(from, "output", to, "input")
	require.NoError(t, err)
}

func (f *fixture) messageNode(t *testing.T, id valueobjects.ShapeID) entities.MessageNode {
	t.Helper()
	shape, ok := f.store.Shape(id)
	require.True(t, ok)
	m, ok := shape.Node.(entities.MessageNode)
	require.True(t, ok, "expected a message node, got %T", shape.Node)
	return m
}

func sampleFanOut() entities.FanOut {
	return entities.FanOut{Branches: []entities.FanOutBranch{
		{Title: "Product Brief", File: "product_brief.md", Sections: []entities.FanOutSection{
			{Title: "Problem", Bullets: []string{"Cooking is hard", "Recipes are long"}},
			{Title: "Users", Content: "Home cooks"},
		}},
		{Title: "Technical Spec", File: "technical_spec.md", Sections: []entities.FanOutSection{
			{Title: "Stack", Bullets: []string{"Go", "Postgres"}},
		}},
		{Title: "Codebase Guide", File: "codebase_guide.md", Sections: []entities.FanOutSection{}},
	}}
}

func TestLayoutService_LayoutFrom(t *testing.T) {
	f := newFixture(t)
	root := f.message(t, "root", "", valueobjects.Point{})
	a := f.message(t, "a", "", valueobjects.Point{X: 900, Y: 900})
	b := f.message(t, "b", "", valueobjects.Point{X: -700, Y: 40})
	f.connect(t, root, a)
	f.connect(t, root, b)

	plan, err := f.layout.LayoutFrom(context.Background(), chatID, root)

	require.NoError(t, err)
	assert.Len(t, plan.Moves, 3)
	sa, _ := f.store.Shape(a)
	sb, _ := f.store.Shape(b)
	assert.Equal(t, sa.Position.Y, sb.Position.Y, "siblings share a row")
	assert.Less(t, sa.Position.X, sb.Position.X, "children keep connection order")
	assert.Contains(t, f.recorder.eventTypes(), "tree.laid_out")

	again, err := f.layout.LayoutFrom(context.Background(), chatID, root)
	require.NoError(t, err)
	assert.Equal(t, plan.Moves, again.Moves)
}

func TestLayoutService_MissingRoot(t *testing.T) {
	f := newFixture(t)

	_, err := f.layout.LayoutFrom(context.Background(), chatID, "shape:missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_NOT_FOUND")
}

func TestExpansionService_ExpandFanOut(t *testing.T) {
	f := newFixture(t)
	root := f.seed(t)

	result, err := f.expansion.ExpandFanOut(context.Background(), chatID, root, sampleFanOut())

	require.NoError(t, err)
	assert.Len(t, result.BranchIDs, 3)
	assert.Len(t, result.SectionIDs, 3)
	nodes, connections, bindings := f.store.Counts()
	assert.Equal(t, 7, nodes)
	assert.Equal(t, 6, connections)
	assert.Equal(t, 12, bindings)

	children := graph.Children(f.store, root)
	assert.Equal(t, result.BranchIDs, children)

	brief := f.messageNode(t, result.BranchIDs[0])
	assert.Equal(t, "Product Brief", brief.Title)
	assert.Equal(t, "# product_brief.md\n", brief.AssistantMessage)
	assert.True(t, brief.IsExpanded)

	problem := f.messageNode(t, result.SectionIDs[0])
	assert.Equal(t, "- Cooking is hard\n- Recipes are long", problem.AssistantMessage)
	users := f.messageNode(t, result.SectionIDs[1])
	assert.Equal(t, "Home cooks", users.AssistantMessage)

	assert.Equal(t, []string{"node.fanned_out", "tree.laid_out"}, f.recorder.eventTypes())
	assert.False(t, result.Layout.Empty())
}

func TestExpansionService_ExpandFanOutThreeByTwo(t *testing.T) {
	f := newFixture(t)
	root := f.seed(t)
	fan := entities.FanOut{}
	for _, name := range []string{"Product Brief", "Technical Spec", "Codebase Guide"} {
		fan.Branches = append(fan.Branches, entities.FanOutBranch{Title: name, Sections: []entities.FanOutSection{
			{Title: "One", Content: "first"},
			{Title: "Two", Bullets: []string{"a", "b"}},
		}})
	}

	result, err := f.expansion.ExpandFanOut(context.Background(), chatID, root, fan)

	require.NoError(t, err)
	require.Len(t, result.BranchIDs, 3)
	require.Len(t, result.SectionIDs, 6)
	nodes, connections, bindings := f.store.Counts()
	assert.Equal(t, 10, nodes)
	assert.Equal(t, 9, connections)
	assert.Equal(t, 18, bindings)

	for i, branch := range result.BranchIDs {
		assert.Equal(t, result.SectionIDs[2*i:2*i+2], graph.Children(f.store, branch))
	}

	for depth, row := range [][]valueobjects.ShapeID{{root}, result.BranchIDs, result.SectionIDs} {
		for i := range row {
			a, ok := f.store.RenderedBounds(row[i])
			require.True(t, ok)
			for j := i + 1; j < len(row); j++ {
				b, ok := f.store.RenderedBounds(row[j])
				require.True(t, ok)
				overlap := a.X < b.MaxX() && b.X < a.MaxX() && a.Y < b.MaxY() && b.Y < a.MaxY()
				assert.False(t, overlap, "depth %d: %s overlaps %s", depth, row[i], row[j])
			}
		}
	}
}

func TestExpansionService_RejectsMalformedFanOut(t *testing.T) {
	f := newFixture(t)
	root := f.seed(t)
	bad := sampleFanOut()
	bad.Branches[1].Sections = nil

	_, err := f.expansion.ExpandFanOut(context.Background(), chatID, root, bad)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MALFORMED_FANOUT")
	nodes, connections, _ := f.store.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, connections)
	assert.Empty(t, f.recorder.eventTypes())
}

func TestExpansionService_ExpandChildren(t *testing.T) {
	f := newFixture(t)
	parent := f.message(t, "Plan", "", valueobjects.Point{X: 100, Y: 100})
	branches := []entities.Branch{
		{Title: "Step 1", Content: "Gather"},
		{Title: "Step 2", Content: "Build"},
	}

	result, err := f.expansion.ExpandChildren(context.Background(), chatID, parent, branches, "")

	require.NoError(t, err)
	require.Len(t, result.BranchIDs, 2)
	assert.Equal(t, "Created 2 child nodes", f.messageNode(t, parent).AssistantMessage)
	assert.Equal(t, result.BranchIDs, graph.Children(f.store, parent))
	assert.Equal(t, "Build", f.messageNode(t, result.BranchIDs[1]).AssistantMessage)
}

func TestExportService_CompilesPack(t *testing.T) {
	f := newFixture(t)
	root := f.seed(t)
	_, err := f.expansion.ExpandFanOut(context.Background(), chatID, root, sampleFanOut())
	require.NoError(t, err)

	files, err := f.export.Export(context.Background(), chatID)

	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "docs/product_brief.md", files[0].Path)
	assert.Equal(t, "# product brief\n\n## Problem\n- Cooking is hard\n- Recipes are long\n\n## Users\n- Home cooks\n", files[0].Content)
	assert.Equal(t, "docs/technical_spec.md", files[1].Path)
	assert.Equal(t, "# codebase guide\n", files[2].Content)
	assert.Equal(t, "docs/tasks.md", files[3].Path)
	assert.Contains(t, files[3].Content, "### product brief\n- [ ] Cooking is hard\n- [ ] Recipes are long\n- [ ] Home cooks\n")
	assert.Contains(t, files[3].Content, "### codebase guide\n- [ ] Review and add details\n")
	assert.True(t, strings.HasPrefix(files[3].Content, "# Tasks\n\n## Implementation Checklist\n\n"))
}

func TestExportService_NothingToExport(t *testing.T) {
	f := newFixture(t)

	files, err := f.export.Export(context.Background(), chatID)

	require.NoError(t, err)
	assert.Empty(t, files)
}
