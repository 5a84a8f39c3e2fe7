package fulfillment

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/fulfillment"
)

// RegisterRoutes mounts the storefront API. The Stripe webhook route is only
// mounted when a parser is supplied.
func RegisterRoutes(r chi.Router, s fulfillment.FulfillmentService, wp WebhookParser, l *zap.Logger) {
	handler := NewFulfillmentHandler(s, l.With(zap.String("component", "FulfillmentHTTPHandler")))

	r.Get("/healthz", handler.Health)
	r.Post("/create-checkout-session", handler.CreateCheckoutSession)
	r.Get("/finalize-order", handler.FinalizeOrder)
	r.Get("/admin/orders", handler.GetAllOrders)

	if wp != nil {
		webhooks := NewWebhookHandler(s, wp, l.With(zap.String("component", "StripeWebhookHandler")))
		r.Post("/webhooks/stripe", webhooks.HandleStripeEvent)
	}
}
