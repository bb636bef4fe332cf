package ports

import (
	"context"
	"time"

	notifydomain "storefront-orders/internal/features/notifications/domain"
	orderdomain "storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/payments/domain"
)

// Gateway is the payment processor.
type Gateway interface {
	// ParseEvent verifies signature over payload and decodes the event.
	ParseEvent(payload []byte, signature string) (domain.Event, error)
	// Settlement returns net amount and fee for a captured payment,
	// or domain.ErrSettlementPending when the gateway has not computed them yet.
	Settlement(ctx context.Context, paymentReference string) (domain.Settlement, error)
}

// EventClaims is the short-lived, cross-process guard against concurrent deliveries.
type EventClaims interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// EventStore keeps the durable record of processed and parked events.
// Every method joins the transaction carried by ctx, if any.
type EventStore interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed returns domain.ErrEventAlreadyProcessed on a repeat.
	MarkProcessed(ctx context.Context, event domain.Event) error

	Park(ctx context.Context, event domain.Event, reason string) error
	ParkedForReference(ctx context.Context, paymentReference string) ([]domain.PendingEvent, error)
	DueParked(ctx context.Context, now time.Time, maxAttempts, limit int) ([]domain.PendingEvent, error)
	Resolve(ctx context.Context, eventID string) error
	Reschedule(ctx context.Context, eventID string, next time.Time, lastErr string) error
}

// Orders is the part of the Order Store used by reconciliation.
type Orders interface {
	GetByPaymentReference(ctx context.Context, reference string) (*orderdomain.Order, error)
	ApplyStatusChange(ctx context.Context, change orderdomain.StatusChange) error
}

// StockRestorer gives stock back when a failed payment cancels an order.
type StockRestorer interface {
	Restore(ctx context.Context, productID string, qty int) (int, error)
}

// Notifier is the Notification Dispatcher.
type Notifier interface {
	Send(ctx context.Context, kind notifydomain.Kind, order *orderdomain.Order) (string, error)
	SendSequence(ctx context.Context, order *orderdomain.Order, kinds ...notifydomain.Kind) error
}

// Transactor runs fn atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reconciler is the primary port used by the webhook handler and the sweeper.
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (domain.Outcome, error)
	Sweep(ctx context.Context) (SweepResult, error)
}

// SweepResult summarizes one pass over the parked events.
type SweepResult struct {
	Resolved    int
	Rescheduled int
	Failed      int
}
