// Package messaging carries canvas events out of the process.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"ideacanvas/domain/events"
)

// LogPublisher writes events to the log instead of a bus, for local runs
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish implements ports.EventPublisher
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("chat_id", event.GetAggregateID()),
		zap.Any("event", event),
	)
	return nil
}

// PublishBatch implements ports.EventPublisher
func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		_ = p.Publish(ctx, e)
	}
	return nil
}
