package handlers

import (
	"context"

	"ideacanvas/application/commands"
	"ideacanvas/application/services"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	pkgerrors "ideacanvas/pkg/errors"
)

// NodeHandlers handles direct node edits
type NodeHandlers struct {
	nodes  *services.NodeService
	layout *services.LayoutService
}

// NewNodeHandlers creates the node command handlers
func NewNodeHandlers(nodes *services.NodeService, layout *services.LayoutService) *NodeHandlers {
	return &NodeHandlers{nodes: nodes, layout: layout}
}

// CreateNode handles CreateNodeCommand
func (h *NodeHandlers) CreateNode(ctx context.Context, cmd commands.CreateNodeCommand) error {
	kind, ok := entities.ParseNodeKind(cmd.Kind)
	if !ok {
		return pkgerrors.ErrUnknownNodeKind
	}
	position := valueobjects.Point{X: cmd.X, Y: cmd.Y}
	return h.nodes.CreateNode(ctx, cmd.ChatID, cmd.NodeID, kind, position, cmd.Title, cmd.Content)
}

// UpdateNode handles UpdateNodeCommand
func (h *NodeHandlers) UpdateNode(ctx context.Context, cmd commands.UpdateNodeCommand) error {
	return h.nodes.UpdateNode(ctx, cmd.ChatID, cmd.NodeID, services.NodePatch{
		Title:            cmd.Title,
		UserMessage:      cmd.UserMessage,
		AssistantMessage: cmd.AssistantMessage,
		Idea:             cmd.Idea,
		IsExpanded:       cmd.IsExpanded,
		IsEditingTitle:   cmd.IsEditingTitle,
		Width:            cmd.Width,
		Height:           cmd.Height,
	})
}

// DeleteNode handles DeleteNodeCommand
func (h *NodeHandlers) DeleteNode(ctx context.Context, cmd commands.DeleteNodeCommand) error {
	return h.nodes.DeleteNode(ctx, cmd.ChatID, cmd.NodeID)
}

// ConnectNodes handles ConnectNodesCommand
func (h *NodeHandlers) ConnectNodes(ctx context.Context, cmd commands.ConnectNodesCommand) error {
	_, err := h.nodes.ConnectNodes(ctx, cmd.ChatID, cmd.FromID, cmd.ToID)
	return err
}

// LayoutTree handles LayoutTreeCommand
func (h *NodeHandlers) LayoutTree(ctx context.Context, cmd commands.LayoutTreeCommand) error {
	_, err := h.layout.LayoutFrom(ctx, cmd.ChatID, cmd.RootID)
	return err
}
