package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/outbox_repo"
)

type memOutboxRepository struct {
	mu       sync.Mutex
	messages map[string]*domain.OutboxMessage
}

func NewOutboxRepository() outbox_repo.OutboxRepository {
	return &memOutboxRepository{messages: make(map[string]*domain.OutboxMessage)}
}

func (r *memOutboxRepository) CreateMessage(_ context.Context, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[msg.ID]; exists {
		return fmt.Errorf("outbox message %s already exists", msg.ID)
	}
	stored := *msg
	r.messages[msg.ID] = &stored
	return nil
}

func (r *memOutboxRepository) GetPendingMessages(_ context.Context, limit int) ([]*domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*domain.OutboxMessage
	for _, msg := range r.messages {
		if msg.Status == domain.OutboxStatusPending {
			c := *msg
			pending = append(pending, &c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *memOutboxRepository) MarkMessageSent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok || msg.Status != domain.OutboxStatusPending {
		return nil
	}
	now := time.Now().UTC()
	msg.Status = domain.OutboxStatusSent
	msg.SentAt = &now
	return nil
}
