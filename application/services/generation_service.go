package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/graph"
	pkgerrors "ideacanvas/pkg/errors"
	"ideacanvas/pkg/observability"
)

const errorFallback = "Error processing request"

// FailureRecorder counts generation failures outside the process
type FailureRecorder interface {
	RecordGenerationFailure(ctx context.Context, operation string, retryable bool)
}

// GenerationService runs AI generation against canvas nodes. Generator
// calls happen without holding the canvas; results are written back only
// if the request is still the newest one for its node
type GenerationService struct {
	canvases  ports.Canvases
	generator ports.Generator
	expansion *ExpansionService
	notifier  ports.Notifier
	publisher ports.EventPublisher
	failures  FailureRecorder
	tracer    *observability.Tracer
	cfg       *config.CanvasConfig
	logger    *zap.Logger
	now       func() time.Time

	inflight *inflight
}

// NewGenerationService creates a generation service. notifier, failures
// and tracer may be nil
func NewGenerationService(
	canvases ports.Canvases,
	generator ports.Generator,
	expansion *ExpansionService,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	failures FailureRecorder,
	tracer *observability.Tracer,
	cfg *config.CanvasConfig,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		canvases:  canvases,
		generator: generator,
		expansion: expansion,
		notifier:  notifier,
		publisher: publisher,
		failures:  failures,
		tracer:    tracer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		inflight:  newInflight(),
	}
}

// RewriteNode replaces a message node's assistant text with a rewrite that
// follows instruction. The node shows a placeholder while the request runs
// and gets its previous text back if the request fails
func (s *GenerationService) RewriteNode(ctx context.Context, chatID string, nodeID valueobjects.ShapeID, instruction string, maxWords int) error {
	if maxWords <= 0 {
		maxWords = s.cfg.RewriteMaxWords
	}

	var req ports.RewriteRequest
	key, token, err := s.begin(ctx, chatID, nodeID, func(_ ports.ShapeStore, m entities.MessageNode) entities.MessageNode {
		req = ports.RewriteRequest{
			Title:       m.Title,
			ContentMD:   m.AssistantMessage,
			Instruction: instruction,
			MaxWords:    maxWords,
		}
		m.AssistantMessage = s.cfg.Placeholder
		return m
	})
	if err != nil {
		return err
	}

	var content string
	err = s.tracer.TraceFunction(ctx, "generation.rewrite", chatID, func(ctx context.Context) error {
		var genErr error
		content, genErr = s.generator.Rewrite(ctx, req)
		return genErr
	})
	if err != nil {
		return s.fail(ctx, "rewrite", key, token, "", err)
	}

	return s.settle(ctx, key, token, func(store ports.ShapeStore, original string) error {
		if strings.TrimSpace(content) == "" {
			content = original
		}
		_, err := store.UpdateNode(nodeID, setAssistant(content))
		return err
	})
}

// SmartRewrite lets the generator decide between replacing the node's text
// and expanding it into children. An empty instruction uses the node's
// pending user message
func (s *GenerationService) SmartRewrite(ctx context.Context, chatID string, nodeID valueobjects.ShapeID, instruction string) error {
	var req ports.SmartRequest
	key, token, err := s.begin(ctx, chatID, nodeID, func(store ports.ShapeStore, m entities.MessageNode) entities.MessageNode {
		if strings.TrimSpace(instruction) == "" {
			instruction = m.UserMessage
		}
		req = ports.SmartRequest{
			Instruction:    instruction,
			CurrentContent: m.AssistantMessage,
			CurrentTitle:   m.Title,
			ParentContext:  graph.BuildPromptContext(store, nodeID, s.contextLimits()),
		}
		m.AssistantMessage = s.cfg.Placeholder
		m.UserMessage = ""
		return m
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return s.fail(ctx, "smart-rewrite", key, token, "", pkgerrors.NewValidationError("instruction is required"))
	}

	var decision entities.Decision
	err = s.tracer.TraceFunction(ctx, "generation.smart_rewrite", chatID, func(ctx context.Context) error {
		var genErr error
		decision, genErr = s.generator.SmartDecide(ctx, req)
		return genErr
	})
	if err != nil {
		return s.fail(ctx, "smart-rewrite", key, token, errorFallback, err)
	}

	return s.settle(ctx, key, token, func(store ports.ShapeStore, original string) error {
		if decision.Action == entities.ActionExpand {
			_, err := s.expansion.expandChildrenLocked(ctx, chatID, store, nodeID, decision.Branches, original)
			return err
		}
		content := strings.TrimSpace(decision.Content)
		if content == "" {
			content = original
		}
		_, err := store.UpdateNode(nodeID, setAssistant(content))
		return err
	})
}

// SendMessage records message as the node's user message and streams the
// assistant reply into the node. Every chunk is written to the canvas,
// pushed to the notifier and handed to onEvent, which may be nil
func (s *GenerationService) SendMessage(ctx context.Context, chatID string, nodeID valueobjects.ShapeID, message string, onEvent func(ports.StreamEvent) error) error {
	if strings.TrimSpace(message) == "" {
		return pkgerrors.NewValidationError("message is required")
	}

	var prompt string
	key, token, err := s.begin(ctx, chatID, nodeID, func(store ports.ShapeStore, m entities.MessageNode) entities.MessageNode {
		prompt = ChatPrompt(graph.BuildPromptContext(store, nodeID, s.contextLimits()), message)
		m.UserMessage = message
		m.AssistantMessage = ""
		m.IsExpanded = true
		return m
	})
	if err != nil {
		return err
	}

	emit := func(event ports.StreamEvent) error {
		s.notify(ctx, key.chatID, event)
		if onEvent != nil {
			return onEvent(event)
		}
		return nil
	}

	var reply strings.Builder
	err = s.tracer.TraceFunction(ctx, "generation.stream", chatID, func(ctx context.Context) error {
		return s.generator.Stream(ctx, prompt, func(delta string) error {
			reply.WriteString(delta)
			if err := s.writeIfCurrent(ctx, key, token, setAssistant(reply.String())); err != nil {
				return err
			}
			return emit(ports.StreamEvent{Type: ports.StreamNodeTextDelta, NodeID: nodeID, Delta: delta})
		})
	})
	if errors.Is(err, pkgerrors.ErrStaleGeneration) {
		s.logger.Debug("Stream superseded by a newer request",
			zap.String("chat_id", chatID),
			zap.String("node_id", nodeID.String()),
		)
		return nil
	}
	if err != nil {
		return s.fail(ctx, "stream", key, token, "", err)
	}

	err = s.settle(ctx, key, token, func(store ports.ShapeStore, _ string) error {
		_, err := store.UpdateNode(nodeID, setAssistant(reply.String()))
		return err
	})
	if err != nil {
		return err
	}
	return emit(ports.StreamEvent{Type: ports.StreamNodeDone, NodeID: nodeID})
}

// RewriteText is the canvas-free rewrite used by the LLM endpoints
func (s *GenerationService) RewriteText(ctx context.Context, req ports.RewriteRequest) (string, error) {
	if req.MaxWords <= 0 {
		req.MaxWords = s.cfg.RewriteMaxWords
	}
	var content string
	err := s.tracer.TraceFunction(ctx, "generation.rewrite", "", func(ctx context.Context) error {
		var genErr error
		content, genErr = s.generator.Rewrite(ctx, req)
		return genErr
	})
	return content, err
}

// Decide is the canvas-free smart rewrite decision
func (s *GenerationService) Decide(ctx context.Context, req ports.SmartRequest) (entities.Decision, error) {
	var decision entities.Decision
	err := s.tracer.TraceFunction(ctx, "generation.smart_rewrite", "", func(ctx context.Context) error {
		var genErr error
		decision, genErr = s.generator.SmartDecide(ctx, req)
		return genErr
	})
	return decision, err
}

// FanOut is the canvas-free fan-out generation
func (s *GenerationService) FanOut(ctx context.Context, idea string) (entities.FanOut, error) {
	if strings.TrimSpace(idea) == "" {
		return entities.FanOut{}, pkgerrors.NewValidationError("idea is required")
	}
	var fanOut entities.FanOut
	err := s.tracer.TraceFunction(ctx, "generation.fanout", "", func(ctx context.Context) error {
		var genErr error
		fanOut, genErr = s.generator.FanOut(ctx, idea)
		if genErr == nil {
			s.tracer.AddMetadata(ctx, "branches", len(fanOut.Branches))
		}
		return genErr
	})
	return fanOut, err
}

// InFlight reports how many node generations are running
func (s *GenerationService) InFlight() int {
	return s.inflight.size()
}

// begin registers a generation for a message node and applies prepare to
// it, all while holding the canvas
func (s *GenerationService) begin(
	ctx context.Context,
	chatID string,
	nodeID valueobjects.ShapeID,
	prepare func(ports.ShapeStore, entities.MessageNode) entities.MessageNode,
) (inflightKey, uint64, error) {
	key := inflightKey{chatID: chatID, nodeID: nodeID}

	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return key, 0, err
	}
	defer release()

	shape, ok := store.Shape(nodeID)
	if !ok {
		return key, 0, nodeNotFound(nodeID)
	}
	message, ok := shape.Node.(entities.MessageNode)
	if !ok {
		return key, 0, pkgerrors.NewValidationError(fmt.Sprintf("node %s is a %s node, not a message", nodeID, shape.Node.Kind()))
	}

	token := s.inflight.begin(key, message.AssistantMessage)
	prepared := prepare(store, message)
	if _, err := store.UpdateNode(nodeID, func(entities.Node) entities.Node { return prepared }); err != nil {
		s.inflight.finish(key, token)
		return key, 0, err
	}
	return key, token, nil
}

// settle ends a request and runs apply when it is still the newest one.
// The canvas is held even if ctx was cancelled so the node never keeps a
// placeholder
func (s *GenerationService) settle(ctx context.Context, key inflightKey, token uint64, apply func(store ports.ShapeStore, original string) error) error {
	store, release, err := s.canvases.Acquire(context.WithoutCancel(ctx), key.chatID)
	if err != nil {
		s.inflight.finish(key, token)
		return err
	}
	defer release()

	original, latest := s.inflight.finish(key, token)
	if !latest {
		s.logger.Debug("Discarding stale generation result",
			zap.String("chat_id", key.chatID),
			zap.String("node_id", key.nodeID.String()),
		)
		return nil
	}
	if _, ok := store.Shape(key.nodeID); !ok {
		// deleted while generating
		return nil
	}
	return apply(store, original)
}

// writeIfCurrent applies fn while the request is the newest one and
// returns ErrStaleGeneration once it is not
func (s *GenerationService) writeIfCurrent(ctx context.Context, key inflightKey, token uint64, fn func(entities.Node) entities.Node) error {
	store, release, err := s.canvases.Acquire(ctx, key.chatID)
	if err != nil {
		return err
	}
	defer release()

	if !s.inflight.current(key, token) {
		return pkgerrors.ErrStaleGeneration
	}
	_, err = store.UpdateNode(key.nodeID, fn)
	return err
}

// fail restores the node's previous text (or fallback when it had none),
// reports the failure and returns cause
func (s *GenerationService) fail(ctx context.Context, operation string, key inflightKey, token uint64, fallback string, cause error) error {
	retryable := isRetryable(cause)

	s.logger.Warn("Generation failed, restoring previous content",
		zap.String("chat_id", key.chatID),
		zap.String("node_id", key.nodeID.String()),
		zap.String("operation", operation),
		zap.Bool("retryable", retryable),
		zap.Error(cause),
	)

	err := s.settle(ctx, key, token, func(store ports.ShapeStore, original string) error {
		restored := original
		if strings.TrimSpace(restored) == "" && fallback != "" {
			restored = fallback
		}
		_, err := store.UpdateNode(key.nodeID, setAssistant(restored))
		return err
	})
	if err != nil {
		s.logger.Error("Failed to restore node after generation error",
			zap.String("chat_id", key.chatID),
			zap.String("node_id", key.nodeID.String()),
			zap.Error(err),
		)
	}

	s.reportFailure(ctx, key, operation, retryable, cause)
	return cause
}

func (s *GenerationService) reportFailure(ctx context.Context, key inflightKey, operation string, retryable bool, cause error) {
	ctx = context.WithoutCancel(ctx)
	if s.failures != nil {
		s.failures.RecordGenerationFailure(ctx, operation, retryable)
	}
	publish(ctx, s.publisher, s.logger, events.NewGenerationFailed(key.chatID, key.nodeID, operation, retryable, cause.Error(), s.now()))
	s.notify(ctx, key.chatID, ports.StreamEvent{
		Type:      ports.StreamError,
		NodeID:    key.nodeID,
		Error:     publicMessage(cause),
		Retryable: retryable,
	})
}

func (s *GenerationService) notify(ctx context.Context, chatID string, event ports.StreamEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, chatID, event); err != nil {
		s.logger.Warn("Failed to notify canvas",
			zap.String("chat_id", chatID),
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (s *GenerationService) contextLimits() graph.ContextLimits {
	return graph.ContextLimits{Parent: s.cfg.ParentContextChars, Sibling: s.cfg.SiblingContextChars}
}

func setAssistant(text string) func(entities.Node) entities.Node {
	return func(n entities.Node) entities.Node {
		if m, ok := n.(entities.MessageNode); ok {
			m.AssistantMessage = text
			return m
		}
		return n
	}
}

func isRetryable(err error) bool {
	var domainErr *pkgerrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// publicMessage is the error text safe to show to canvas clients
func publicMessage(err error) string {
	var domainErr *pkgerrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "generation failed"
}
