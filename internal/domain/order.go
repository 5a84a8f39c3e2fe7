package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPendingPayment   OrderStatus = "pending_payment"
	OrderStatusPaymentFailed    OrderStatus = "payment_failed"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusGenerationFailed OrderStatus = "generation_failed"
)

// Order tracks one purchase attempt from checkout to a packaged deliverable.
type Order struct {
	ID               string      `json:"id"`
	Status           OrderStatus `json:"status"`
	Email            string      `json:"email,omitempty"`
	ProductID        string      `json:"productId"`
	PaymentSessionID string      `json:"paymentSessionId,omitempty"`
	DownloadPath     string      `json:"downloadPath,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func NewOrder(id, productID, email, paymentSessionID string) (*Order, error) {
	if id == "" || productID == "" || paymentSessionID == "" {
		return nil, fmt.Errorf("invalid order data: id, product and payment session are required")
	}
	now := time.Now().UTC()
	return &Order{
		ID:               id,
		Status:           OrderStatusPendingPayment,
		Email:            email,
		ProductID:        productID,
		PaymentSessionID: paymentSessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (o *Order) MarkAsPaid(contactEmail string) error {
	if o.Status != OrderStatusPendingPayment {
		return o.transitionError(OrderStatusPaid)
	}
	o.Status = OrderStatusPaid
	if o.Email == "" {
		o.Email = contactEmail
	}
	o.touch()
	return nil
}

func (o *Order) MarkAsPaymentFailed() error {
	if o.Status != OrderStatusPendingPayment {
		return o.transitionError(OrderStatusPaymentFailed)
	}
	o.Status = OrderStatusPaymentFailed
	o.touch()
	return nil
}

func (o *Order) MarkAsCompleted(downloadPath string) error {
	if o.Status != OrderStatusPaid {
		return o.transitionError(OrderStatusCompleted)
	}
	if downloadPath == "" {
		return fmt.Errorf("%w: download path is required to complete order %s", ErrInvalidTransition, o.ID)
	}
	o.Status = OrderStatusCompleted
	o.DownloadPath = downloadPath
	o.touch()
	return nil
}

func (o *Order) MarkAsGenerationFailed() error {
	if o.Status != OrderStatusPaid {
		return o.transitionError(OrderStatusGenerationFailed)
	}
	o.Status = OrderStatusGenerationFailed
	o.touch()
	return nil
}

// ReopenForPayment moves a payment_failed order back to pending_payment so
// the buyer can retry after completing payment.
func (o *Order) ReopenForPayment() error {
	if o.Status != OrderStatusPaymentFailed {
		return o.transitionError(OrderStatusPendingPayment)
	}
	o.Status = OrderStatusPendingPayment
	o.touch()
	return nil
}

// ReopenForGeneration moves a generation_failed order back to paid. Payment
// is not re-verified.
func (o *Order) ReopenForGeneration() error {
	if o.Status != OrderStatusGenerationFailed {
		return o.transitionError(OrderStatusPaid)
	}
	o.Status = OrderStatusPaid
	o.touch()
	return nil
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusPaymentFailed, OrderStatusGenerationFailed:
		return true
	}
	return false
}

func (o *Order) Clone() *Order {
	c := *o
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) transitionError(to OrderStatus) error {
	return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidTransition, o.ID, o.Status, to)
}
