package domain

import "errors"

var (
	// ErrOrderNotFound is returned when no order matches the id or payment reference.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound is returned when a cart line references an unknown product.
	ErrProductNotFound = errors.New("product not found")
	// ErrTotalMismatch is returned when the submitted total disagrees with the authoritative one.
	ErrTotalMismatch = errors.New("order total does not match current prices")
	// ErrDuplicatePaymentReference is returned when the payment reference already belongs to an order.
	ErrDuplicatePaymentReference = errors.New("payment reference already used by another order")
	// ErrDuplicateOrderNumber is returned when a generated order number collides.
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	// ErrIllegalTransition is returned when a status change breaks the state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrStaleOrder is returned when the order changed since it was read.
	ErrStaleOrder = errors.New("order was modified concurrently")
	// ErrInvalidRequest is returned for malformed intake requests.
	ErrInvalidRequest = errors.New("invalid order request")
)
