package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ideacanvas/application/commands"
	"ideacanvas/application/commands/bus"
	"ideacanvas/application/ports"
	"ideacanvas/application/queries"
	querybus "ideacanvas/application/queries/bus"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/pkg/common"
	pkgerrors "ideacanvas/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
}

// ConnectNodesRequest represents the request body for connecting two nodes
type ConnectNodesRequest struct {
	FromID valueobjects.ShapeID `json:"from_id"`
	ToID   valueobjects.ShapeID `json:"to_id"`
}

// RewriteNodeRequest represents the request body for rewriting a node
type RewriteNodeRequest struct {
	Instruction string `json:"instruction"`
	MaxWords    int    `json:"max_words,omitempty"`
}

// SmartRewriteNodeRequest represents the request body for a smart rewrite
type SmartRewriteNodeRequest struct {
	Instruction string `json:"instruction"`
}

// SubmitRequest represents the request body for submitting a root intake
// node. An empty idea falls back to the one stored on the node
type SubmitRequest struct {
	Idea string `json:"idea"`
}

// SendMessageRequest represents the request body for asking a question
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ContextResponse represents the prompt context of a node
type ContextResponse struct {
	NodeID  valueobjects.ShapeID `json:"nodeId"`
	Context string               `json:"context"`
}

// TraverseResponse lists reachable nodes in visit order
type TraverseResponse struct {
	StartID valueobjects.ShapeID   `json:"startId"`
	NodeIDs []valueobjects.ShapeID `json:"nodeIds"`
}

// CreateNode handles POST /api/canvases/{chatID}/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.Kind == "" {
		req.Kind = string(entities.KindMessage)
	}

	cmd := commands.CreateNodeCommand{
		ChatID:  chi.URLParam(r, "chatID"),
		NodeID:  valueobjects.NewShapeID(),
		Kind:    req.Kind,
		X:       req.X,
		Y:       req.Y,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondNode(w, r, cmd.ChatID, cmd.NodeID, http.StatusCreated)
}

// GetNode handles GET /api/canvases/{chatID}/nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	h.respondNode(w, r, chatID, nodeID, http.StatusOK)
}

// UpdateNode handles PATCH /api/canvases/{chatID}/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateNodeCommand
	if err := common.ParseJSONBody(w, r, &cmd, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.ChatID, cmd.NodeID = h.ids(r)

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondNode(w, r, cmd.ChatID, cmd.NodeID, http.StatusOK)
}

// DeleteNode handles DELETE /api/canvases/{chatID}/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	if err := h.commandBus.Send(r.Context(), commands.DeleteNodeCommand{ChatID: chatID, NodeID: nodeID}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConnectNodes handles POST /api/canvases/{chatID}/connections
func (h *NodeHandler) ConnectNodes(w http.ResponseWriter, r *http.Request) {
	var req ConnectNodesRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	cmd := commands.ConnectNodesCommand{ChatID: chatID, FromID: req.FromID, ToID: req.ToID}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondConnections(w, r, chatID, req.FromID, http.StatusCreated)
}

// Layout handles POST /api/canvases/{chatID}/nodes/{nodeID}/layout
func (h *NodeHandler) Layout(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	if err := h.commandBus.Send(r.Context(), commands.LayoutTreeCommand{ChatID: chatID, RootID: nodeID}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FanOut handles POST /api/canvases/{chatID}/nodes/{nodeID}/fanout. The
// body is a fan-out response, typically from /api/llm/fanout
func (h *NodeHandler) FanOut(w http.ResponseWriter, r *http.Request) {
	var response entities.FanOut
	if err := common.ParseJSONBody(w, r, &response, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	chatID, nodeID := h.ids(r)
	cmd := commands.ExpandFanOutCommand{ChatID: chatID, NodeID: nodeID, Response: response}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondConnections(w, r, chatID, nodeID, http.StatusOK)
}

// Rewrite handles POST /api/canvases/{chatID}/nodes/{nodeID}/rewrite
func (h *NodeHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteNodeRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	chatID, nodeID := h.ids(r)
	h.sendThenRespond(w, r, chatID, nodeID, commands.RewriteNodeCommand{
		ChatID:      chatID,
		NodeID:      nodeID,
		Instruction: req.Instruction,
		MaxWords:    req.MaxWords,
	})
}

// SmartRewrite handles POST /api/canvases/{chatID}/nodes/{nodeID}/smart-rewrite
func (h *NodeHandler) SmartRewrite(w http.ResponseWriter, r *http.Request) {
	var req SmartRewriteNodeRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	chatID, nodeID := h.ids(r)
	h.sendThenRespond(w, r, chatID, nodeID, commands.SmartRewriteCommand{
		ChatID:      chatID,
		NodeID:      nodeID,
		Instruction: req.Instruction,
	})
}

// Submit handles POST /api/canvases/{chatID}/nodes/{nodeID}/submit
func (h *NodeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	chatID, nodeID := h.ids(r)
	h.sendThenRespond(w, r, chatID, nodeID, commands.SubmitRootIntakeCommand{
		ChatID: chatID,
		NodeID: nodeID,
		Idea:   req.Idea,
	})
}

// SendMessage handles POST /api/canvases/{chatID}/nodes/{nodeID}/messages.
// The reply streams back as server-sent events; failures after the first
// event arrive as an in-band error event
func (h *NodeHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := common.ParseJSONBody(w, r, &req, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	stream, err := newEventStream(w)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInternalError(err.Error()))
		return
	}

	chatID, nodeID := h.ids(r)
	err = h.commandBus.Send(r.Context(), commands.SendMessageCommand{
		ChatID:  chatID,
		NodeID:  nodeID,
		Message: req.Message,
		OnEvent: func(event ports.StreamEvent) error { return stream.Send(event) },
	})
	if err == nil {
		return
	}
	if !stream.Started() {
		h.errors.Handle(w, r, err)
		return
	}

	_, described := h.errors.Describe(err)
	h.logger.Warn("Message stream failed",
		zap.String("chat_id", chatID),
		zap.String("node_id", nodeID.String()),
		zap.Error(err),
	)
	_ = stream.Send(ports.StreamEvent{
		Type:      ports.StreamError,
		NodeID:    nodeID,
		Error:     described.Error,
		Retryable: described.Retryable,
	})
}

// GetContext handles GET /api/canvases/{chatID}/nodes/{nodeID}/context
func (h *NodeHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	text, err := querybus.Ask[string](r.Context(), h.queryBus, queries.GetPromptContextQuery{ChatID: chatID, NodeID: nodeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ContextResponse{NodeID: nodeID, Context: text})
}

// GetConnections handles GET /api/canvases/{chatID}/nodes/{nodeID}/connections
func (h *NodeHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	h.respondConnections(w, r, chatID, nodeID, http.StatusOK)
}

// Traverse handles GET /api/canvases/{chatID}/nodes/{nodeID}/traverse.
// ?direction=start follows outgoing connections, end incoming ones
func (h *NodeHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	chatID, nodeID := h.ids(r)
	ids, err := querybus.Ask[[]valueobjects.ShapeID](r.Context(), h.queryBus, queries.TraverseGraphQuery{
		ChatID:    chatID,
		StartID:   nodeID,
		Direction: r.URL.Query().Get("direction"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if ids == nil {
		ids = []valueobjects.ShapeID{}
	}
	common.RespondJSON(w, http.StatusOK, TraverseResponse{StartID: nodeID, NodeIDs: ids})
}

func (h *NodeHandler) ids(r *http.Request) (string, valueobjects.ShapeID) {
	return chi.URLParam(r, "chatID"), valueobjects.ShapeID(chi.URLParam(r, "nodeID"))
}

func (h *NodeHandler) sendThenRespond(w http.ResponseWriter, r *http.Request, chatID string, nodeID valueobjects.ShapeID, cmd bus.Command) {
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondNode(w, r, chatID, nodeID, http.StatusOK)
}

func (h *NodeHandler) respondNode(w http.ResponseWriter, r *http.Request, chatID string, nodeID valueobjects.ShapeID, status int) {
	view, err := h.node(r.Context(), chatID, nodeID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, view)
}

func (h *NodeHandler) node(ctx context.Context, chatID string, nodeID valueobjects.ShapeID) (queries.NodeView, error) {
	return querybus.Ask[queries.NodeView](ctx, h.queryBus, queries.GetNodeQuery{ChatID: chatID, NodeID: nodeID})
}

func (h *NodeHandler) respondConnections(w http.ResponseWriter, r *http.Request, chatID string, nodeID valueobjects.ShapeID, status int) {
	result, err := querybus.Ask[queries.NodeConnections](r.Context(), h.queryBus, queries.GetNodeConnectionsQuery{
		ChatID: chatID,
		NodeID: nodeID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, result)
}
