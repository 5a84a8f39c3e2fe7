package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, email string) *Order {
	t.Helper()
	o, err := NewOrder("order-1", DefaultProduct.ID, email, "cs_test_1")
	require.NoError(t, err)
	return o
}

func TestNewOrder_StartsPendingPayment(t *testing.T) {
	o := newTestOrder(t, "")

	assert.Equal(t, OrderStatusPendingPayment, o.Status)
	assert.Equal(t, "cs_test_1", o.PaymentSessionID)
	assert.Empty(t, o.DownloadPath)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestNewOrder_RequiresSession(t *testing.T) {
	_, err := NewOrder("order-1", DefaultProduct.ID, "", "")
	assert.Error(t, err)
}

func TestOrder_HappyPath(t *testing.T) {
	o := newTestOrder(t, "")

	require.NoError(t, o.MarkAsPaid("buyer@example.com"))
	assert.Equal(t, "buyer@example.com", o.Email)

	require.NoError(t, o.MarkAsCompleted("/downloads/bundle-order-1.pdf"))
	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.Equal(t, "/downloads/bundle-order-1.pdf", o.DownloadPath)
	assert.True(t, o.IsTerminal())
}

func TestOrder_MarkAsPaid_KeepsExistingEmail(t *testing.T) {
	o := newTestOrder(t, "first@example.com")

	require.NoError(t, o.MarkAsPaid("second@example.com"))
	assert.Equal(t, "first@example.com", o.Email)
}

func TestOrder_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *Order)
		move  func(o *Order) error
	}{
		{
			name:  "complete before paid",
			setup: func(o *Order) {},
			move:  func(o *Order) error { return o.MarkAsCompleted("/downloads/x.pdf") },
		},
		{
			name:  "generation failure before paid",
			setup: func(o *Order) {},
			move:  func(o *Order) error { return o.MarkAsGenerationFailed() },
		},
		{
			name:  "payment failure after paid",
			setup: func(o *Order) { _ = o.MarkAsPaid("") },
			move:  func(o *Order) error { return o.MarkAsPaymentFailed() },
		},
		{
			name:  "paid twice",
			setup: func(o *Order) { _ = o.MarkAsPaid("") },
			move:  func(o *Order) error { return o.MarkAsPaid("") },
		},
		{
			name:  "complete without path",
			setup: func(o *Order) { _ = o.MarkAsPaid("") },
			move:  func(o *Order) error { return o.MarkAsCompleted("") },
		},
		{
			name:  "reopen for generation from pending",
			setup: func(o *Order) {},
			move:  func(o *Order) error { return o.ReopenForGeneration() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder(t, "")
			tt.setup(o)
			before := o.Status

			err := tt.move(o)

			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, o.Status)
		})
	}
}

func TestOrder_Reopen(t *testing.T) {
	o := newTestOrder(t, "")
	require.NoError(t, o.MarkAsPaymentFailed())
	require.NoError(t, o.ReopenForPayment())
	assert.Equal(t, OrderStatusPendingPayment, o.Status)

	require.NoError(t, o.MarkAsPaid(""))
	require.NoError(t, o.MarkAsGenerationFailed())
	assert.Empty(t, o.DownloadPath)
	require.NoError(t, o.ReopenForGeneration())
	assert.Equal(t, OrderStatusPaid, o.Status)
}

func TestOrder_CloneIsIndependent(t *testing.T) {
	o := newTestOrder(t, "")
	c := o.Clone()
	c.Status = OrderStatusCompleted

	assert.Equal(t, OrderStatusPendingPayment, o.Status)
}
