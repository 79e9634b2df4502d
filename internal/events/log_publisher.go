// Package events holds event publishers that need no broker.
package events

import (
	"context"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
)

// LogPublisher writes events to the log. It stands in for Kafka when no
// brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.logger.Info("event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Any("event", event))
	return nil
}

var _ interfaces.EventPublisher = (*LogPublisher)(nil)
