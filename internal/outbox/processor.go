package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/infrastructure/kafka"
	"storefront/internal/repository/outbox_repo"
)

const defaultBatchSize = 100

// Processor relays pending outbox messages to Kafka. A message is marked
// sent only after the broker accepted it, so delivery is at-least-once.
type Processor struct {
	repo      outbox_repo.OutboxRepository
	producer  kafka.Producer
	interval  time.Duration
	timeout   time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewProcessor(repo outbox_repo.OutboxRepository, producer kafka.Producer, interval, timeout time.Duration, l *zap.Logger) *Processor {
	return &Processor{
		repo:      repo,
		producer:  producer,
		interval:  interval,
		timeout:   timeout,
		batchSize: defaultBatchSize,
		logger:    l,
	}
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Transactional Outbox sender started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Transactional Outbox sender stopped")
			return
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
			if err := p.ProcessOutbox(pollCtx); err != nil {
				p.logger.Error("Error processing outbox", zap.Error(err))
			}
			cancel()
		}
	}
}

func (p *Processor) ProcessOutbox(ctx context.Context) error {
	messages, err := p.repo.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Processing pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := p.producer.Produce(ctx, msg.Topic, []byte(msg.OrderID), msg.Payload); err != nil {
			p.logger.Error("Failed to produce outbox message to Kafka",
				zap.String("message_id", msg.ID),
				zap.String("order_id", msg.OrderID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}
		if err := p.repo.MarkMessageSent(ctx, msg.ID); err != nil {
			p.logger.Error("Failed to mark outbox message as sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		p.logger.Debug("Outbox message sent",
			zap.String("message_id", msg.ID),
			zap.String("message_type", msg.MessageType))
	}
	return nil
}
