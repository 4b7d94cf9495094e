// Package messaging holds event publishers that need no broker.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/events"
)

// LogPublisher writes events to the log. It is used when no event bus is
// configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a new LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("event_type", event.GetEventType()),
		zap.String("aggregate_id", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	for _, event := range evs {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
