package service

import (
	"context"

	"go.uber.org/zap"
)

type eventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// publishEvent emits a domain event after a committed write. Failures are logged only.
func publishEvent(ctx context.Context, bus eventPublisher, logger *zap.Logger, topic string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, topic, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
