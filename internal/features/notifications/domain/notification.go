package domain

import (
	"errors"
	"fmt"
)

// Kind selects the template and recipient of a notification.
type Kind string

const (
	KindProcessing     Kind = "processing"
	KindConfirmation   Kind = "confirmation"
	KindPaymentFailed  Kind = "payment_failed"
	KindMerchant       Kind = "merchant_notification"
	KindOutForDelivery Kind = "out_for_delivery"
	KindDelivered      Kind = "delivered"
	KindCancelled      Kind = "cancelled"
)

var (
	// ErrInvalidRecipient is returned when the recipient address is missing or malformed.
	ErrInvalidRecipient = errors.New("invalid recipient address")
	// ErrUnknownKind is returned for a kind without a template.
	ErrUnknownKind = errors.New("unknown notification kind")
	// ErrProviderFailure is returned when the delivery provider rejects or fails the send.
	ErrProviderFailure = errors.New("email provider failure")
)

// Email is a rendered message ready for the provider.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// DispatchError is returned by the dispatcher instead of panicking.
// Callers treat it as non-fatal to their own transaction.
type DispatchError struct {
	Kind        Kind
	OrderNumber string
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for order %s: %v", e.Kind, e.OrderNumber, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
