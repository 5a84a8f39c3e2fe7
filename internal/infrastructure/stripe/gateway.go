package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API base URL; empty means api.stripe.com.
	APIURL     string
	HTTPClient *http.Client
}

// Gateway creates and looks up Stripe Checkout sessions.
type Gateway struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func NewGateway(cfg Config, l *zap.Logger) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     l.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &Gateway{
		api:           client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		webhookSecret: cfg.WebhookSecret,
		logger:        l,
	}
}

func (g *Gateway) CreateSession(ctx context.Context, product domain.Product, successURL, cancelURL, orderID, email string) (domain.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(product.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(product.Name),
						Description: stripe.String(product.Description),
					},
					UnitAmount: stripe.Int64(product.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(orderID),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("order_id", orderID)
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error("Failed to create checkout session", zap.String("order_id", orderID), zap.Error(err))
		return domain.PaymentSession{}, fmt.Errorf("%w: create checkout session: %v", domain.ErrPaymentGateway, err)
	}
	if session.ID == "" || session.URL == "" {
		return domain.PaymentSession{}, fmt.Errorf("%w: checkout session response is missing id or url", domain.ErrPaymentGateway)
	}

	g.logger.Info("Checkout session created", zap.String("order_id", orderID), zap.String("session_id", session.ID))
	return domain.PaymentSession{ID: session.ID, URL: session.URL}, nil
}

// VerifyPayment is a read-only lookup, so repeated calls for a session in a
// terminal payment state return the same answer.
func (g *Gateway) VerifyPayment(ctx context.Context, sessionID string) (domain.PaymentVerification, error) {
	if sessionID == "" {
		return domain.PaymentVerification{}, fmt.Errorf("%w: session id is required", domain.ErrPaymentGateway)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		g.logger.Warn("Failed to retrieve checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return domain.PaymentVerification{}, fmt.Errorf("%w: retrieve checkout session %s: %v", domain.ErrPaymentGateway, sessionID, err)
	}

	return domain.PaymentVerification{
		Paid:         isPaid(session),
		ContactEmail: contactEmail(session),
	}, nil
}

// WebhookEvent is the subset of a Stripe event the storefront acts on.
type WebhookEvent struct {
	Type      string
	OrderID   string
	SessionID string
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if g.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("webhook secret is not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("verify webhook signature: %w", err)
	}

	out := WebhookEvent{Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || event.Data == nil {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode checkout session payload: %w", err)
	}
	out.SessionID = session.ID
	out.OrderID = session.ClientReferenceID
	if out.OrderID == "" && session.Metadata != nil {
		out.OrderID = session.Metadata["order_id"]
	}
	return out, nil
}

func isPaid(session *stripe.CheckoutSession) bool {
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	}
	return false
}

func contactEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	return session.CustomerEmail
}
