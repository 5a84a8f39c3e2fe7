package fulfillment

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/app/fulfillment"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/stripe"
)

const (
	maxWebhookBodyBytes = 65536

	eventCheckoutSessionCompleted = "checkout.session.completed"
)

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (stripe.WebhookEvent, error)
}

// WebhookHandler finalizes orders when Stripe reports a completed checkout,
// so buyers who never return to the success page still get fulfilled.
type WebhookHandler struct {
	service fulfillment.FulfillmentService
	parser  WebhookParser
	logger  *zap.Logger
}

func NewWebhookHandler(s fulfillment.FulfillmentService, p WebhookParser, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: s, parser: p, logger: l}
}

func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
		return
	}

	event, err := h.parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Rejected webhook", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid webhook"})
		return
	}

	if event.Type != eventCheckoutSessionCompleted {
		h.logger.Debug("Ignoring webhook event", zap.String("type", event.Type))
		w.WriteHeader(http.StatusOK)
		return
	}
	if event.OrderID == "" {
		h.logger.Warn("Checkout session without order reference", zap.String("session_id", event.SessionID))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Info("Received checkout completion",
		zap.String("order_id", event.OrderID),
		zap.String("session_id", event.SessionID))

	_, err = h.service.FinalizeOrder(r.Context(), event.OrderID, event.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrPaymentNotConfirmed):
		// Nothing Stripe can fix by redelivering.
		h.logger.Warn("Webhook finalize rejected", zap.String("order_id", event.OrderID), zap.Error(err))
	default:
		h.logger.Error("Webhook finalize failed", zap.String("order_id", event.OrderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Finalize failed"})
		return
	}

	w.WriteHeader(http.StatusOK)
}
