package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the payment state machine allows s -> next.
// Paid and failed are terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && (next == PaymentPaid || next == PaymentFailed)
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the fulfilment state machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusChange is a version-checked write of both state machines.
type StatusChange struct {
	OrderID string
	// Version is the version the change was computed from.
	Version int

	PaymentStatus     PaymentStatus
	OrderStatus       OrderStatus
	NetAmountReceived decimal.NullDecimal
	ProcessorFee      decimal.NullDecimal

	// Restock is set when the change cancels the order and stock must be given back.
	Restock bool
}

func (o *Order) change() StatusChange {
	return StatusChange{
		OrderID:       o.ID,
		Version:       o.Version,
		PaymentStatus: o.PaymentStatus,
		OrderStatus:   o.OrderStatus,
	}
}

// MarkPaid moves payment to paid and fulfilment to processing.
// Fulfilment is left alone when it already moved past pending, e.g. an
// operator cancelled the order before the payment settled.
func (o *Order) MarkPaid(net, fee decimal.NullDecimal) (StatusChange, error) {
	if !o.PaymentStatus.CanTransitionTo(PaymentPaid) {
		return StatusChange{}, fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, o.PaymentStatus, PaymentPaid)
	}

	c := o.change()
	c.PaymentStatus = PaymentPaid
	if o.OrderStatus.CanTransitionTo(OrderProcessing) {
		c.OrderStatus = OrderProcessing
	}
	c.NetAmountReceived = net
	c.ProcessorFee = fee
	return c, nil
}

// MarkPaymentFailed moves payment to failed and cancels the order.
func (o *Order) MarkPaymentFailed() (StatusChange, error) {
	if !o.PaymentStatus.CanTransitionTo(PaymentFailed) {
		return StatusChange{}, fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, o.PaymentStatus, PaymentFailed)
	}

	c := o.change()
	c.PaymentStatus = PaymentFailed
	if o.OrderStatus.CanTransitionTo(OrderCancelled) {
		c.OrderStatus = OrderCancelled
		c.Restock = true
	}
	return c, nil
}

// Advance moves fulfilment to next. Used by the operator surface.
func (o *Order) Advance(next OrderStatus) (StatusChange, error) {
	if !o.OrderStatus.CanTransitionTo(next) {
		return StatusChange{}, fmt.Errorf("%w: order %s -> %s", ErrIllegalTransition, o.OrderStatus, next)
	}

	c := o.change()
	c.OrderStatus = next
	c.Restock = next == OrderCancelled
	return c, nil
}

// Apply copies a persisted change into the in-memory snapshot.
func (o *Order) Apply(c StatusChange) {
	o.PaymentStatus = c.PaymentStatus
	o.OrderStatus = c.OrderStatus
	if c.NetAmountReceived.Valid {
		o.NetAmountReceived = c.NetAmountReceived
	}
	if c.ProcessorFee.Valid {
		o.ProcessorFee = c.ProcessorFee
	}
	o.Version = c.Version + 1
}
