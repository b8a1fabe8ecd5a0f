package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"ideacanvas/application/ports"
	"ideacanvas/application/queries"
	"ideacanvas/application/queries/bus"
	"ideacanvas/application/services"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/nodetypes"
	pkgerrors "ideacanvas/pkg/errors"
)

// CanvasQueries answers read-only questions about canvases
type CanvasQueries struct {
	canvases ports.Canvases
	export   *services.ExportService
	limits   graph.ContextLimits
}

// NewCanvasQueries creates the canvas query handlers
func NewCanvasQueries(canvases ports.Canvases, export *services.ExportService, limits graph.ContextLimits) *CanvasQueries {
	return &CanvasQueries{canvases: canvases, export: export, limits: limits}
}

// Register wires every canvas query to its handler
func (h *CanvasQueries) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.GetCanvasQuery{}, bus.HandlerFor(h.GetCanvas)},
		{queries.GetNodeQuery{}, bus.HandlerFor(h.GetNode)},
		{queries.TraverseGraphQuery{}, bus.HandlerFor(h.TraverseGraph)},
		{queries.GetPromptContextQuery{}, bus.HandlerFor(h.GetPromptContext)},
		{queries.GetNodeConnectionsQuery{}, bus.HandlerFor(h.GetNodeConnections)},
		{queries.ExportPackQuery{}, bus.HandlerFor(h.ExportPack)},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// GetCanvas returns the canvas document
func (h *CanvasQueries) GetCanvas(ctx context.Context, q queries.GetCanvasQuery) (json.RawMessage, error) {
	doc, err := h.canvases.Document(ctx, q.ChatID)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc), nil
}

// GetNode returns one node with its rendered bounds
func (h *CanvasQueries) GetNode(ctx context.Context, q queries.GetNodeQuery) (queries.NodeView, error) {
	store, err := h.view(ctx, q.ChatID, q.NodeID)
	if err != nil {
		return queries.NodeView{}, err
	}
	shape, _ := store.Shape(q.NodeID)
	bounds, _ := store.RenderedBounds(q.NodeID)
	return queries.NodeView{
		ID:   shape.ID,
		X:    bounds.X,
		Y:    bounds.Y,
		W:    bounds.W,
		H:    bounds.H,
		Node: nodetypes.ToRaw(shape.Node),
	}, nil
}

// TraverseGraph returns the reachable node ids in visit order
func (h *CanvasQueries) TraverseGraph(ctx context.Context, q queries.TraverseGraphQuery) ([]valueobjects.ShapeID, error) {
	store, err := h.view(ctx, q.ChatID, q.StartID)
	if err != nil {
		return nil, err
	}
	var direction *valueobjects.Terminal
	if q.Direction != "" {
		t, err := valueobjects.ParseTerminal(q.Direction)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
		direction = &t
	}
	return graph.Traverse(store, q.StartID, direction), nil
}

// GetPromptContext returns the prompt context of a node, "" when it has none
func (h *CanvasQueries) GetPromptContext(ctx context.Context, q queries.GetPromptContextQuery) (string, error) {
	store, err := h.view(ctx, q.ChatID, q.NodeID)
	if err != nil {
		return "", err
	}
	return graph.BuildPromptContext(store, q.NodeID, h.limits), nil
}

// GetNodeConnections returns a node's ports sorted by id and its logical
// connections in creation order
func (h *CanvasQueries) GetNodeConnections(ctx context.Context, q queries.GetNodeConnectionsQuery) (queries.NodeConnections, error) {
	store, err := h.view(ctx, q.ChatID, q.NodeID)
	if err != nil {
		return queries.NodeConnections{}, err
	}

	result := queries.NodeConnections{NodeID: q.NodeID, Connections: graph.Connections(store, q.NodeID)}
	if portMap, ok := store.Ports().Ports(store, q.NodeID); ok {
		for _, p := range portMap {
			result.Ports = append(result.Ports, p)
		}
		sort.Slice(result.Ports, func(i, j int) bool { return result.Ports[i].ID < result.Ports[j].ID })
	}
	return result, nil
}

// ExportPack compiles the canvas into markdown files
func (h *CanvasQueries) ExportPack(ctx context.Context, q queries.ExportPackQuery) ([]services.ExportFile, error) {
	return h.export.Export(ctx, q.ChatID)
}

func (h *CanvasQueries) view(ctx context.Context, chatID string, nodeID valueobjects.ShapeID) (ports.ShapeStore, error) {
	store, err := h.canvases.View(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, ok := store.Shape(nodeID); !ok {
		return nil, pkgerrors.ErrNodeNotFound.Wrap(fmt.Errorf("node %s", nodeID))
	}
	return store, nil
}
