package domain

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrPaymentGateway      = errors.New("payment gateway error")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrPackaging           = errors.New("packaging failed")
	ErrLockUnavailable     = errors.New("order is locked by another request")
)
