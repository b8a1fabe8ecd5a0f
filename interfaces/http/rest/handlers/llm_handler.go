package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/application/services"
	"ideacanvas/pkg/common"
	pkgerrors "ideacanvas/pkg/errors"
	"ideacanvas/pkg/utils"
)

// LLMHandler serves the canvas-free generation endpoints
type LLMHandler struct {
	generation *services.GenerationService
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewLLMHandler creates a new LLM handler
func NewLLMHandler(generation *services.GenerationService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *LLMHandler {
	return &LLMHandler{
		generation: generation,
		errors:     errorHandler,
		logger:     logger,
	}
}

// RewriteRequest represents the request body for a rewrite
type RewriteRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	ContentMD   string `json:"content_md" validate:"max=50000"`
	Instruction string `json:"instruction" validate:"required,max=5000"`
	MaxWords    int    `json:"max_words,omitempty" validate:"min=0,max=5000"`
}

// RewriteResponse represents the response for a rewrite
type RewriteResponse struct {
	ContentMD string `json:"content_md"`
}

// SmartRewriteRequest represents the request body for a smart rewrite
type SmartRewriteRequest struct {
	Instruction    string `json:"instruction" validate:"required,max=5000"`
	CurrentContent string `json:"currentContent" validate:"max=50000"`
	CurrentTitle   string `json:"currentTitle" validate:"max=200"`
	ParentContext  string `json:"parentContext,omitempty" validate:"max=50000"`
}

// FanOutRequest represents the request body for a fan-out
type FanOutRequest struct {
	Idea string `json:"idea" validate:"required,max=20000"`
}

// Rewrite handles POST /api/llm/rewrite
func (h *LLMHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if !h.decode(w, r, &req) {
		return
	}

	content, err := h.generation.RewriteText(r.Context(), ports.RewriteRequest{
		Title:       req.Title,
		ContentMD:   req.ContentMD,
		Instruction: req.Instruction,
		MaxWords:    req.MaxWords,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, RewriteResponse{ContentMD: content})
}

// SmartRewrite handles POST /api/llm/smart-rewrite
func (h *LLMHandler) SmartRewrite(w http.ResponseWriter, r *http.Request) {
	var req SmartRewriteRequest
	if !h.decode(w, r, &req) {
		return
	}

	decision, err := h.generation.Decide(r.Context(), ports.SmartRequest{
		Instruction:    req.Instruction,
		CurrentContent: req.CurrentContent,
		CurrentTitle:   req.CurrentTitle,
		ParentContext:  req.ParentContext,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, decision)
}

// FanOut handles POST /api/llm/fanout
func (h *LLMHandler) FanOut(w http.ResponseWriter, r *http.Request) {
	var req FanOutRequest
	if !h.decode(w, r, &req) {
		return
	}

	fanOut, err := h.generation.FanOut(r.Context(), req.Idea)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, fanOut)
}

func (h *LLMHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	return true
}
