package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
)

type memOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	logger *zap.Logger
}

func NewOrderRepository(l *zap.Logger) order_repo.OrderRepository {
	return &memOrderRepository{orders: make(map[string]*domain.Order), logger: l}
}

func (r *memOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	r.logger.Debug("Order created", zap.String("order_id", order.ID))
	return nil
}

func (r *memOrderRepository) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *memOrderRepository) GetAllOrders(_ context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	orders := make([]*domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *memOrderRepository) UpdateOrder(_ context.Context, id string, mutate order_repo.Mutation) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	r.orders[id] = working
	r.logger.Debug("Order updated", zap.String("order_id", id), zap.String("new_status", string(working.Status)))
	return working.Clone(), nil
}
