package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/nodetypes"
	pkgerrors "ideacanvas/pkg/errors"
)

// NodePatch lists the node fields to change; nil fields stay as they are.
// Fields that do not exist on the node's kind are ignored
type NodePatch struct {
	Title            *string
	UserMessage      *string
	AssistantMessage *string
	Idea             *string
	IsExpanded       *bool
	IsEditingTitle   *bool
	Width            *float64
	Height           *float64
}

// NodeService handles direct node edits: create, update, delete and connect
type NodeService struct {
	canvases  ports.Canvases
	registry  *nodetypes.Registry
	publisher ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewNodeService creates a node service
func NewNodeService(
	canvases ports.Canvases,
	registry *nodetypes.Registry,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *NodeService {
	return &NodeService{
		canvases:  canvases,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateNode adds a node of kind at position with id. title and content
// override the kind's defaults when not empty; content is the assistant
// text of a message or the idea of a root intake node
func (s *NodeService) CreateNode(ctx context.Context, chatID string, id valueobjects.ShapeID, kind entities.NodeKind, position valueobjects.Point, title, content string) error {
	node, err := s.registry.Default(kind)
	if err != nil {
		return pkgerrors.ErrUnknownNodeKind.Wrap(err)
	}
	switch n := node.(type) {
	case entities.MessageNode:
		if title != "" {
			n.Title = title
		}
		n.AssistantMessage = content
		n.IsExpanded = content != ""
		node = n
	case entities.RootIntakeNode:
		if title != "" {
			n.Title = title
		}
		n.Idea = content
		node = n
	}

	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return err
	}
	defer release()

	if err := store.CreateNode(id, position, node); err != nil {
		return pkgerrors.NewConflictError(err.Error())
	}

	s.logger.Debug("Node created",
		zap.String("chat_id", chatID),
		zap.String("node_id", id.String()),
		zap.String("kind", string(kind)),
	)
	publish(ctx, s.publisher, s.logger, events.NewNodeCreated(chatID, id, kind, s.now()))
	return nil
}

// UpdateNode applies patch to a node
func (s *NodeService) UpdateNode(ctx context.Context, chatID string, id valueobjects.ShapeID, patch NodePatch) error {
	for name, v := range map[string]*float64{"width": patch.Width, "height": patch.Height} {
		if v != nil && (*v <= 0 || math.IsInf(*v, 0) || math.IsNaN(*v)) {
			return pkgerrors.NewValidationError(fmt.Sprintf("%s must be a positive number", name))
		}
	}

	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return err
	}
	defer release()

	var fields []string
	found, err := store.UpdateNode(id, func(n entities.Node) entities.Node {
		var updated entities.Node
		updated, fields = patch.apply(n)
		return updated
	})
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	if !found {
		return nodeNotFound(id)
	}

	publish(ctx, s.publisher, s.logger, events.NewNodeUpdated(chatID, id, fields, s.now()))
	return nil
}

// DeleteNode removes a node together with every connection it has
func (s *NodeService) DeleteNode(ctx context.Context, chatID string, id valueobjects.ShapeID) error {
	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := store.Shape(id); !ok {
		return nodeNotFound(id)
	}
	if err := store.DeleteNode(id); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	store.Ports().Invalidate(id)

	s.logger.Debug("Node deleted", zap.String("chat_id", chatID), zap.String("node_id", id.String()))
	publish(ctx, s.publisher, s.logger, events.NewNodeDeleted(chatID, id, s.now()))
	return nil
}

// ConnectNodes joins from's output port to to's input port
func (s *NodeService) ConnectNodes(ctx context.Context, chatID string, from, to valueobjects.ShapeID) (valueobjects.ShapeID, error) {
	if from == to {
		return "", pkgerrors.ErrSelfConnection
	}

	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return "", err
	}
	defer release()

	for _, id := range []valueobjects.ShapeID{from, to} {
		if _, ok := store.Shape(id); !ok {
			return "", nodeNotFound(id)
		}
	}
	out, ok := store.Ports().PortFor(store, from, valueobjects.TerminalStart)
	if !ok {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("node %s has no output port", from))
	}
	in, ok := store.Ports().PortFor(store, to, valueobjects.TerminalEnd)
	if !ok {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("node %s has no input port", to))
	}

	connectionID, err := store.Connect(from, out.ID, to, in.ID)
	if err != nil {
		return "", fmt.Errorf("failed to connect nodes: %w", err)
	}

	s.logger.Debug("Nodes connected",
		zap.String("chat_id", chatID),
		zap.String("connection_id", connectionID.String()),
		zap.String("source", from.String()),
		zap.String("target", to.String()),
	)
	publish(ctx, s.publisher, s.logger, events.NewNodesConnected(chatID, connectionID, from, to, s.now()))
	return connectionID, nil
}

func (p NodePatch) apply(n entities.Node) (entities.Node, []string) {
	var fields []string
	setString := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			fields = append(fields, name)
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil {
			*dst = *v
			fields = append(fields, name)
		}
	}
	setSize := func(name string, dst **float64, v *float64) {
		if v != nil {
			*dst = entities.Float(*v)
			fields = append(fields, name)
		}
	}

	switch v := n.(type) {
	case entities.MessageNode:
		setString("title", &v.Title, p.Title)
		setString("userMessage", &v.UserMessage, p.UserMessage)
		setString("assistantMessage", &v.AssistantMessage, p.AssistantMessage)
		setBool("isExpanded", &v.IsExpanded, p.IsExpanded)
		setBool("isEditingTitle", &v.IsEditingTitle, p.IsEditingTitle)
		setSize("width", &v.Width, p.Width)
		setSize("height", &v.Height, p.Height)
		return v, fields
	case entities.RootIntakeNode:
		setString("title", &v.Title, p.Title)
		setString("idea", &v.Idea, p.Idea)
		setSize("width", &v.Width, p.Width)
		setSize("height", &v.Height, p.Height)
		return v, fields
	default:
		return n, nil
	}
}
