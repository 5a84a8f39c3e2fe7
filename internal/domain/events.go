package domain

import "time"

const (
	EventOrderCompleted        = "order.completed"
	EventOrderPaymentFailed    = "order.payment_failed"
	EventOrderGenerationFailed = "order.generation_failed"
)

// FulfillmentEvent is published whenever an order reaches a terminal status.
type FulfillmentEvent struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id"`
	ProductID    string    `json:"product_id"`
	Status       string    `json:"status"`
	Email        string    `json:"email,omitempty"`
	DownloadPath string    `json:"download_path,omitempty"`
	Degraded     bool      `json:"degraded,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
