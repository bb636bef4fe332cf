package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway event types the reconciliation reacts to.
const (
	TypePaymentSucceeded = "payment_intent.succeeded"
	TypePaymentFailed    = "payment_intent.payment_failed"
)

// EventKind is the normalized meaning of a gateway event.
type EventKind string

const (
	KindSucceeded EventKind = "succeeded"
	KindFailed    EventKind = "failed"
	KindIgnored   EventKind = "ignored"
)

// KindForType maps a gateway event type to its kind.
func KindForType(eventType string) EventKind {
	switch eventType {
	case TypePaymentSucceeded:
		return KindSucceeded
	case TypePaymentFailed:
		return KindFailed
	default:
		return KindIgnored
	}
}

// Event is a verified gateway notification.
type Event struct {
	ID               string
	Type             string
	Kind             EventKind
	PaymentReference string
	// Payload is the raw signed body, kept for parked events.
	Payload []byte
}

// Settlement is the gateway's breakdown of a captured payment, in major units.
type Settlement struct {
	Net decimal.Decimal
	Fee decimal.Decimal
}

// SettlementFromMinor converts amounts reported in minor currency units.
func SettlementFromMinor(net, fee int64) Settlement {
	return Settlement{
		Net: decimal.New(net, -2),
		Fee: decimal.New(fee, -2),
	}
}

// PendingEvent is an event parked because its order did not exist yet.
type PendingEvent struct {
	Event
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// Outcome reports what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeParked    Outcome = "parked"
	OutcomeIllegal   Outcome = "illegal_transition"
)

var (
	// ErrInvalidSignature is returned when the payload signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for payloads that verify but cannot be interpreted.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrSettlementPending is returned while the gateway has no balance data for a payment.
	ErrSettlementPending = errors.New("settlement not available yet")
	// ErrEventAlreadyProcessed is returned when the durable dedup record already exists.
	ErrEventAlreadyProcessed = errors.New("event already processed")
	// ErrEventInFlight is returned when another delivery holds the claim and has not committed yet.
	ErrEventInFlight = errors.New("event is being handled by another delivery")
)
