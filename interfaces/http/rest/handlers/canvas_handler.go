package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/application/queries"
	querybus "ideacanvas/application/queries/bus"
	"ideacanvas/application/services"
	"ideacanvas/pkg/common"
	pkgerrors "ideacanvas/pkg/errors"
)

// Subscriber hands out live event feeds per canvas
type Subscriber interface {
	Subscribe(chatID string) (<-chan ports.StreamEvent, func())
}

// CanvasHandler handles whole-canvas requests
type CanvasHandler struct {
	queryBus  *querybus.QueryBus
	canvases  ports.Canvases
	events    Subscriber
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(
	queryBus *querybus.QueryBus,
	canvases ports.Canvases,
	events Subscriber,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *CanvasHandler {
	return &CanvasHandler{
		queryBus:  queryBus,
		canvases:  canvases,
		events:    events,
		errors:    errorHandler,
		logger:    logger,
		keepAlive: 15 * time.Second,
	}
}

// ExportResponse represents the response for an export
type ExportResponse struct {
	Files []services.ExportFile `json:"files"`
}

// GetCanvas handles GET /api/canvases/{chatID}
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	doc, err := querybus.Ask[json.RawMessage](r.Context(), h.queryBus, queries.GetCanvasQuery{
		ChatID: chi.URLParam(r, "chatID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// ReplaceCanvas handles PUT /api/canvases/{chatID}. The body is a canvas
// document in any supported schema; it is migrated before it replaces the
// live canvas
func (h *CanvasHandler) ReplaceCanvas(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, common.MaxBodyBytes))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("request body too large or unreadable"))
		return
	}
	if !json.Valid(body) {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("request body must be a JSON document"))
		return
	}

	if err := h.canvases.Replace(r.Context(), chatID, body); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Canvas replaced", zap.String("chat_id", chatID), zap.Int("bytes", len(body)))
	h.GetCanvas(w, r)
}

// Export handles GET /api/canvases/{chatID}/export
func (h *CanvasHandler) Export(w http.ResponseWriter, r *http.Request) {
	files, err := querybus.Ask[[]services.ExportFile](r.Context(), h.queryBus, queries.ExportPackQuery{
		ChatID: chi.URLParam(r, "chatID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if files == nil {
		files = []services.ExportFile{}
	}
	common.RespondJSON(w, http.StatusOK, ExportResponse{Files: files})
}

// Events handles GET /api/canvases/{chatID}/events, a server-sent event
// feed of every live update on the canvas
func (h *CanvasHandler) Events(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	stream, err := newEventStream(w)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInternalError(err.Error()))
		return
	}

	feed, cancel := h.events.Subscribe(chatID)
	defer cancel()

	if err := stream.Send(map[string]string{"type": "ready"}); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := stream.Comment("keep-alive"); err != nil {
				return
			}
		case event, ok := <-feed:
			if !ok {
				return
			}
			if err := stream.Send(event); err != nil {
				h.logger.Debug("Event subscriber went away", zap.String("chat_id", chatID), zap.Error(err))
				return
			}
		}
	}
}
