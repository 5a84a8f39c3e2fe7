package fulfillment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/app/fulfillment"
	"storefront/internal/domain"
)

type FulfillmentHandler struct {
	service fulfillment.FulfillmentService
	logger  *zap.Logger
}

func NewFulfillmentHandler(s fulfillment.FulfillmentService, l *zap.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{service: s, logger: l}
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (h *FulfillmentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req fulfillment.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body for CreateCheckoutSession", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	res, err := h.service.InitiateCheckout(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *FulfillmentHandler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	sessionID := r.URL.Query().Get("session_id")
	if orderID == "" {
		h.logger.Warn("Order ID is missing in FinalizeOrder request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "orderId is required"})
		return
	}

	res, err := h.service.FinalizeOrder(r.Context(), orderID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *FulfillmentHandler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		h.logger.Error("Error getting all orders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	if res == nil {
		res = []*domain.Order{}
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *FulfillmentHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *FulfillmentHandler) writeError(w http.ResponseWriter, err error) {
	var stage fulfillment.Stage
	var stageErr *fulfillment.StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	status, msg := statusFor(err, stage)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Fulfillment request failed", zap.String("stage", string(stage)), zap.Error(err))
	} else {
		h.logger.Info("Fulfillment request rejected", zap.String("stage", string(stage)), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg, Stage: string(stage)})
}

func statusFor(err error, stage fulfillment.Stage) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrLockUnavailable):
		return http.StatusConflict, "Order is being processed, retry shortly"
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		return http.StatusPaymentRequired, "Payment not confirmed"
	case errors.Is(err, domain.ErrPaymentGateway):
		if stage == fulfillment.StageCheckout {
			return http.StatusBadGateway, "Payment provider unavailable"
		}
		return http.StatusPaymentRequired, "Payment could not be verified"
	case errors.Is(err, domain.ErrPackaging):
		return http.StatusInternalServerError, "Failed to package deliverable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
