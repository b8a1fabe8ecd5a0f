package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/layout"
	pkgerrors "ideacanvas/pkg/errors"
)

// LayoutObserver records layout passes
type LayoutObserver interface {
	ObserveLayout(nodes int, elapsed time.Duration)
}

// LayoutService arranges subtrees of a canvas
type LayoutService struct {
	canvases  ports.Canvases
	engine    *layout.Engine
	publisher ports.EventPublisher
	observer  LayoutObserver
	logger    *zap.Logger
	now       func() time.Time
}

// NewLayoutService creates a layout service. observer may be nil
func NewLayoutService(
	canvases ports.Canvases,
	engine *layout.Engine,
	publisher ports.EventPublisher,
	observer LayoutObserver,
	logger *zap.Logger,
) *LayoutService {
	return &LayoutService{
		canvases:  canvases,
		engine:    engine,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

// LayoutFrom lays out the tree hanging off rootID
func (s *LayoutService) LayoutFrom(ctx context.Context, chatID string, rootID valueobjects.ShapeID) (layout.Plan, error) {
	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return layout.Plan{}, err
	}
	defer release()

	if _, ok := store.Shape(rootID); !ok {
		return layout.Plan{}, nodeNotFound(rootID)
	}
	return s.layoutLocked(ctx, chatID, store, rootID)
}

// layoutLocked expects the caller to hold the canvas
func (s *LayoutService) layoutLocked(ctx context.Context, chatID string, store ports.ShapeStore, rootID valueobjects.ShapeID) (layout.Plan, error) {
	start := time.Now()
	plan, err := s.engine.Apply(store, rootID)
	if err != nil {
		return layout.Plan{}, fmt.Errorf("failed to apply layout: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveLayout(len(plan.Moves), time.Since(start))
	}
	if plan.Empty() {
		return plan, nil
	}

	s.logger.Debug("Tree laid out",
		zap.String("chat_id", chatID),
		zap.String("root_id", rootID.String()),
		zap.Int("moves", len(plan.Moves)),
	)
	publish(ctx, s.publisher, s.logger, events.NewTreeLaidOut(chatID, rootID, plan.Moves, s.now()))
	return plan, nil
}

func nodeNotFound(id valueobjects.ShapeID) error {
	return pkgerrors.ErrNodeNotFound.Wrap(fmt.Errorf("node %s", id))
}

// publish sends an event and only logs failures; events are best effort
func publish(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, event events.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.String("chat_id", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
