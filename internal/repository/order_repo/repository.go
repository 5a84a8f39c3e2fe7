package order_repo

import (
	"context"

	"storefront/internal/domain"
)

// Mutation changes an order in place. Returning an error aborts the update
// and leaves the stored order untouched.
type Mutation func(order *domain.Order) error

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, id string, mutate Mutation) (*domain.Order, error)
}
