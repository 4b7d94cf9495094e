package services

import (
	"context"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/events"
)

// publishEvents hands events to the bus after the state change is committed.
// Publishing is best effort: a failure is logged and never undoes the write.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evs ...events.DomainEvent) {
	if publisher == nil || len(evs) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evs); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evs)),
			zap.String("aggregate_id", evs[0].GetAggregateID()),
			zap.Error(err),
		)
	}
}
