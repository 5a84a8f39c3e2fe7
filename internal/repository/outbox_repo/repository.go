package outbox_repo

import (
	"context"

	"storefront/internal/domain"
)

type OutboxRepository interface {
	CreateMessage(ctx context.Context, msg *domain.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	MarkMessageSent(ctx context.Context, id string) error
}
