package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/app/fulfillment"
	"storefront/internal/domain"
)

type fakeService struct {
	checkoutFn func(req *fulfillment.CheckoutRequest) (*fulfillment.CheckoutResponse, error)
	finalizeFn func(orderID, sessionID string) (*fulfillment.FinalizeResponse, error)
	listFn     func() ([]*domain.Order, error)
}

func (s *fakeService) InitiateCheckout(_ context.Context, req *fulfillment.CheckoutRequest) (*fulfillment.CheckoutResponse, error) {
	return s.checkoutFn(req)
}

func (s *fakeService) FinalizeOrder(_ context.Context, orderID, sessionID string) (*fulfillment.FinalizeResponse, error) {
	return s.finalizeFn(orderID, sessionID)
}

func (s *fakeService) GetAllOrders(context.Context) ([]*domain.Order, error) {
	return s.listFn()
}

func newTestRouter(s fulfillment.FulfillmentService, wp WebhookParser) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, s, wp, zap.NewNop())
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateCheckoutSession(t *testing.T) {
	var got *fulfillment.CheckoutRequest
	svc := &fakeService{checkoutFn: func(req *fulfillment.CheckoutRequest) (*fulfillment.CheckoutResponse, error) {
		got = req
		return &fulfillment.CheckoutResponse{OrderID: "ord-1", URL: "https://pay.example/session/abc"}, nil
	}}

	rec := serve(newTestRouter(svc, nil), http.MethodPost, "/create-checkout-session", `{"productId":"x","buyerEmail":"a@b.c"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"url":"https://pay.example/session/abc"}`, rec.Body.String())
	require.NotNil(t, got)
	assert.Equal(t, "x", got.ProductID)
	assert.Equal(t, "a@b.c", got.BuyerEmail)
}

func TestCreateCheckoutSession_EmptyBody(t *testing.T) {
	svc := &fakeService{checkoutFn: func(*fulfillment.CheckoutRequest) (*fulfillment.CheckoutResponse, error) {
		return &fulfillment.CheckoutResponse{URL: "https://pay.example/s"}, nil
	}}

	rec := serve(newTestRouter(svc, nil), http.MethodPost, "/create-checkout-session", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCheckoutSession_Errors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		rec := serve(newTestRouter(&fakeService{}, nil), http.MethodPost, "/create-checkout-session", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("gateway failure", func(t *testing.T) {
		svc := &fakeService{checkoutFn: func(*fulfillment.CheckoutRequest) (*fulfillment.CheckoutResponse, error) {
			return nil, &fulfillment.StageError{Stage: fulfillment.StageCheckout, Err: domain.ErrPaymentGateway}
		}}
		rec := serve(newTestRouter(svc, nil), http.MethodPost, "/create-checkout-session", "{}")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "checkout", body["stage"])
		assert.NotEmpty(t, body["error"])
	})
}

func TestFinalizeOrder(t *testing.T) {
	svc := &fakeService{finalizeFn: func(orderID, sessionID string) (*fulfillment.FinalizeResponse, error) {
		assert.Equal(t, "ord-1", orderID)
		assert.Equal(t, "abc", sessionID)
		return &fulfillment.FinalizeResponse{OK: true, OrderID: orderID, DownloadURL: "https://shop.example/downloads/bundle-ord-1.pdf"}, nil
	}}

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/finalize-order?session_id=abc&orderId=ord-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"ok":true,"orderId":"ord-1","downloadUrl":"https://shop.example/downloads/bundle-ord-1.pdf"}`,
		rec.Body.String())
}

func TestFinalizeOrder_MissingOrderID(t *testing.T) {
	rec := serve(newTestRouter(&fakeService{}, nil), http.MethodGet, "/finalize-order?session_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinalizeOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		stage  string
	}{
		{"not found", fmt.Errorf("finalize order x: %w", domain.ErrOrderNotFound), http.StatusNotFound, ""},
		{"unpaid", &fulfillment.StageError{Stage: fulfillment.StagePayment, Err: domain.ErrPaymentNotConfirmed}, http.StatusPaymentRequired, "payment"},
		{"gateway during verify", &fulfillment.StageError{Stage: fulfillment.StagePayment, Err: domain.ErrPaymentGateway}, http.StatusPaymentRequired, "payment"},
		{"packaging", &fulfillment.StageError{Stage: fulfillment.StagePackaging, Err: domain.ErrPackaging}, http.StatusInternalServerError, "packaging"},
		{"locked", fmt.Errorf("finalize: %w", domain.ErrLockUnavailable), http.StatusConflict, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{finalizeFn: func(string, string) (*fulfillment.FinalizeResponse, error) {
				return nil, tt.err
			}}
			rec := serve(newTestRouter(svc, nil), http.MethodGet, "/finalize-order?orderId=x", "")

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["error"])
			if tt.stage == "" {
				assert.NotContains(t, body, "stage")
			} else {
				assert.Equal(t, tt.stage, body["stage"])
			}
		})
	}
}

func TestGetAllOrders(t *testing.T) {
	t.Run("empty list encodes as array", func(t *testing.T) {
		svc := &fakeService{listFn: func() ([]*domain.Order, error) { return nil, nil }}
		rec := serve(newTestRouter(svc, nil), http.MethodGet, "/admin/orders", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("orders", func(t *testing.T) {
		order, err := domain.NewOrder("ord-1", domain.DefaultProduct.ID, "a@b.c", "abc")
		require.NoError(t, err)
		svc := &fakeService{listFn: func() ([]*domain.Order, error) { return []*domain.Order{order}, nil }}
		rec := serve(newTestRouter(svc, nil), http.MethodGet, "/admin/orders", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var orders []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, "ord-1", orders[0]["id"])
		assert.Equal(t, "pending_payment", orders[0]["status"])
		assert.Equal(t, "abc", orders[0]["paymentSessionId"])
	})

	t.Run("repository error", func(t *testing.T) {
		svc := &fakeService{listFn: func() ([]*domain.Order, error) { return nil, errors.New("db down") }}
		rec := serve(newTestRouter(svc, nil), http.MethodGet, "/admin/orders", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(&fakeService{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}
