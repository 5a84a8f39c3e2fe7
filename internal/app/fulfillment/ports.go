package fulfillment

import (
	"context"

	"storefront/internal/domain"
)

type PaymentGateway interface {
	CreateSession(ctx context.Context, product domain.Product, successURL, cancelURL, orderID, email string) (domain.PaymentSession, error)
	VerifyPayment(ctx context.Context, sessionID string) (domain.PaymentVerification, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) domain.GenerationResult
}

type Packager interface {
	Package(ctx context.Context, order *domain.Order, content string) (domain.Artifact, error)
}

// Locker serializes fulfillment work per order id. The returned func
// releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
