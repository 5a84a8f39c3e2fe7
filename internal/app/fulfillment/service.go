package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/outbox_repo"
	"storefront/internal/util"
)

const (
	ArticlePrompt = `Create a high-quality 800-word article titled "Quick Productivity Systems" with headings, intro, conclusion, and a 1-line meta description. Keep it friendly and actionable.`

	// FallbackContent replaces generated text when the generator degrades.
	FallbackContent = "Generated content not available."
)

type FulfillmentService interface {
	InitiateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	FinalizeOrder(ctx context.Context, orderID, sessionID string) (*FinalizeResponse, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
}

type Settings struct {
	// BaseURL is the externally visible origin used for redirect and
	// download links, without a trailing slash.
	BaseURL    string
	Product    domain.Product
	Generation domain.GenerationOptions

	GatewayTimeout    time.Duration
	GenerationTimeout time.Duration
	PackagingTimeout  time.Duration

	EventsTopic string
}

type fulfillmentService struct {
	orderRepo  order_repo.OrderRepository
	outboxRepo outbox_repo.OutboxRepository
	gateway    PaymentGateway
	generator  ContentGenerator
	packager   Packager
	locker     Locker
	settings   Settings
	logger     *zap.Logger
}

// NewFulfillmentService wires the pipeline. outboxRepo may be nil, in which
// case no fulfillment events are recorded.
func NewFulfillmentService(
	orderRepo order_repo.OrderRepository,
	outboxRepo outbox_repo.OutboxRepository,
	gateway PaymentGateway,
	generator ContentGenerator,
	packager Packager,
	locker Locker,
	settings Settings,
	logger *zap.Logger,
) FulfillmentService {
	if settings.Product.ID == "" {
		settings.Product = domain.DefaultProduct
	}
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &fulfillmentService{
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		gateway:    gateway,
		generator:  generator,
		packager:   packager,
		locker:     locker,
		settings:   settings,
		logger:     logger,
	}
}

// InitiateCheckout creates the payment session first and persists the order
// only once the session exists, so a gateway failure leaves nothing behind.
func (s *fulfillmentService) InitiateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	product := s.settings.Product
	if req.ProductID != "" && req.ProductID != product.ID {
		s.logger.Debug("Requested product mapped to catalog product",
			zap.String("requested_product_id", req.ProductID),
			zap.String("product_id", product.ID))
	}

	orderID := util.GenerateUUID()
	email := strings.TrimSpace(req.BuyerEmail)

	gatewayCtx, cancel := withTimeout(ctx, s.settings.GatewayTimeout)
	session, err := s.gateway.CreateSession(gatewayCtx, product, s.successURL(orderID), s.settings.BaseURL+"/", orderID, email)
	cancel()
	if err != nil {
		s.logger.Error("Failed to create payment session",
			zap.String("order_id", orderID),
			zap.String("stage", string(StageCheckout)),
			zap.Error(err))
		return nil, stageErr(StageCheckout, orderID, asGatewayError(err))
	}

	order, err := domain.NewOrder(orderID, product.ID, email, session.ID)
	if err != nil {
		s.logger.Error("Gateway returned an unusable session", zap.String("order_id", orderID), zap.Error(err))
		return nil, stageErr(StageCheckout, orderID, asGatewayError(err))
	}
	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to save order", zap.String("order_id", orderID), zap.Error(err))
		return nil, stageErr(StageCheckout, orderID, fmt.Errorf("failed to save order: %w", err))
	}

	s.logger.Info("Checkout initiated",
		zap.String("order_id", orderID),
		zap.String("session_id", session.ID))
	return &CheckoutResponse{OrderID: orderID, URL: session.URL}, nil
}

// FinalizeOrder verifies payment and produces the deliverable. Calls for the
// same order are serialized; a completed order returns its existing download
// without repeating any work.
func (s *fulfillmentService) FinalizeOrder(ctx context.Context, orderID, sessionID string) (*FinalizeResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("finalize: %w", domain.ErrOrderNotFound)
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.lookupError(orderID, err)
	}
	if sessionID != "" && sessionID != order.PaymentSessionID {
		s.logger.Warn("Finalize called with a session that does not belong to the order",
			zap.String("order_id", orderID),
			zap.String("session_id", sessionID))
		return nil, stageErr(StagePayment, orderID, fmt.Errorf("%w: session does not match order", domain.ErrPaymentNotConfirmed))
	}
	if order.Status == domain.OrderStatusCompleted {
		return s.completedResponse(order), nil
	}

	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		s.logger.Warn("Could not acquire order lock", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("finalize order %s: %w", orderID, err)
	}
	defer unlock()

	// The lock holder finishes the pipeline even if its caller goes away;
	// concurrent callers are waiting on its result. Stage timeouts still apply.
	ctx = context.WithoutCancel(ctx)

	// Another request may have moved the order while we waited for the lock.
	order, err = s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.lookupError(orderID, err)
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		s.logger.Info("Order already completed, returning existing deliverable", zap.String("order_id", orderID))
		return s.completedResponse(order), nil

	case domain.OrderStatusPendingPayment, domain.OrderStatusPaymentFailed:
		order, err = s.confirmPayment(ctx, order)
		if err != nil {
			return nil, err
		}

	case domain.OrderStatusGenerationFailed:
		order, err = s.orderRepo.UpdateOrder(ctx, orderID, func(o *domain.Order) error { return o.ReopenForGeneration() })
		if err != nil {
			return nil, stageErr(StagePackaging, orderID, err)
		}
		s.logger.Info("Retrying deliverable generation", zap.String("order_id", orderID))

	case domain.OrderStatusPaid:
		s.logger.Info("Resuming interrupted fulfillment", zap.String("order_id", orderID))
	}

	return s.produceDeliverable(ctx, order)
}

func (s *fulfillmentService) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders from repository", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *fulfillmentService) confirmPayment(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	verifyCtx, cancel := withTimeout(ctx, s.settings.GatewayTimeout)
	verification, err := s.gateway.VerifyPayment(verifyCtx, order.PaymentSessionID)
	cancel()
	if err != nil {
		s.logger.Error("Payment verification failed",
			zap.String("order_id", order.ID),
			zap.String("session_id", order.PaymentSessionID),
			zap.String("stage", string(StagePayment)),
			zap.Error(err))
		return nil, stageErr(StagePayment, order.ID, asGatewayError(err))
	}

	if !verification.Paid {
		if order.Status == domain.OrderStatusPendingPayment {
			failed, err := s.orderRepo.UpdateOrder(ctx, order.ID, func(o *domain.Order) error { return o.MarkAsPaymentFailed() })
			if err != nil {
				s.logger.Error("Failed to mark order as payment_failed", zap.String("order_id", order.ID), zap.Error(err))
			} else {
				s.recordEvent(ctx, failed, domain.EventOrderPaymentFailed, false, "payment not confirmed")
			}
		}
		s.logger.Info("Payment not confirmed", zap.String("order_id", order.ID), zap.String("session_id", order.PaymentSessionID))
		return nil, stageErr(StagePayment, order.ID, domain.ErrPaymentNotConfirmed)
	}

	paid, err := s.orderRepo.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		if o.Status == domain.OrderStatusPaymentFailed {
			if err := o.ReopenForPayment(); err != nil {
				return err
			}
		}
		return o.MarkAsPaid(verification.ContactEmail)
	})
	if err != nil {
		s.logger.Error("Failed to mark order as paid", zap.String("order_id", order.ID), zap.Error(err))
		return nil, stageErr(StagePayment, order.ID, err)
	}
	s.logger.Info("Payment confirmed", zap.String("order_id", order.ID))
	return paid, nil
}

func (s *fulfillmentService) produceDeliverable(ctx context.Context, order *domain.Order) (*FinalizeResponse, error) {
	genCtx, cancel := withTimeout(ctx, s.settings.GenerationTimeout)
	result := s.generator.Generate(genCtx, ArticlePrompt, s.settings.Generation)
	cancel()

	content := result.Text
	if result.Degraded {
		s.logger.Warn("Content generation degraded, using fallback text",
			zap.String("order_id", order.ID),
			zap.String("stage", string(StageGeneration)),
			zap.String("reason", result.Reason))
		content = FallbackContent
	}

	packCtx, cancel := withTimeout(ctx, s.settings.PackagingTimeout)
	artifact, err := s.packager.Package(packCtx, order, content)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrPackaging) {
			err = fmt.Errorf("%w: %v", domain.ErrPackaging, err)
		}
		s.logger.Error("Packaging failed",
			zap.String("order_id", order.ID),
			zap.String("stage", string(StagePackaging)),
			zap.Error(err))
		failed, updErr := s.orderRepo.UpdateOrder(ctx, order.ID, func(o *domain.Order) error { return o.MarkAsGenerationFailed() })
		if updErr != nil {
			s.logger.Error("Failed to mark order as generation_failed", zap.String("order_id", order.ID), zap.Error(updErr))
		} else {
			s.recordEvent(ctx, failed, domain.EventOrderGenerationFailed, result.Degraded, err.Error())
		}
		return nil, stageErr(StagePackaging, order.ID, err)
	}

	completed, err := s.orderRepo.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		return o.MarkAsCompleted(artifact.DownloadPath)
	})
	if err != nil {
		s.logger.Error("Failed to mark order as completed", zap.String("order_id", order.ID), zap.Error(err))
		return nil, stageErr(StagePackaging, order.ID, err)
	}

	s.recordEvent(ctx, completed, domain.EventOrderCompleted, result.Degraded, result.Reason)
	s.logger.Info("Order fulfilled",
		zap.String("order_id", order.ID),
		zap.String("download_path", completed.DownloadPath),
		zap.Bool("degraded", result.Degraded))
	return s.completedResponse(completed), nil
}

// recordEvent writes an outbox message for an order that reached a terminal
// status. Non-terminal orders are skipped.
func (s *fulfillmentService) recordEvent(ctx context.Context, order *domain.Order, eventType string, degraded bool, reason string) {
	if s.outboxRepo == nil || !order.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(domain.FulfillmentEvent{
		Type:         eventType,
		OrderID:      order.ID,
		ProductID:    order.ProductID,
		Status:       string(order.Status),
		Email:        order.Email,
		DownloadPath: order.DownloadPath,
		Degraded:     degraded,
		Reason:       reason,
		Timestamp:    now,
	})
	if err != nil {
		s.logger.Error("Failed to marshal fulfillment event", zap.String("order_id", order.ID), zap.Error(err))
		return
	}

	msg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		OrderID:     order.ID,
		MessageType: eventType,
		Topic:       s.settings.EventsTopic,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   now,
	}
	if err := s.outboxRepo.CreateMessage(ctx, msg); err != nil {
		s.logger.Error("Failed to record fulfillment event",
			zap.String("order_id", order.ID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (s *fulfillmentService) lookupError(orderID string, err error) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Debug("Order not found", zap.String("order_id", orderID))
		return fmt.Errorf("finalize order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
	return fmt.Errorf("finalize order %s: %w", orderID, err)
}

func (s *fulfillmentService) completedResponse(order *domain.Order) *FinalizeResponse {
	return &FinalizeResponse{
		OK:          true,
		OrderID:     order.ID,
		DownloadURL: s.settings.BaseURL + order.DownloadPath,
	}
}

// successURL keeps the {CHECKOUT_SESSION_ID} placeholder unescaped; Stripe
// substitutes it when redirecting the buyer.
func (s *fulfillmentService) successURL(orderID string) string {
	return fmt.Sprintf("%s/success.html?session_id={CHECKOUT_SESSION_ID}&orderId=%s", s.settings.BaseURL, url.QueryEscape(orderID))
}

func asGatewayError(err error) error {
	if errors.Is(err, domain.ErrPaymentGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
