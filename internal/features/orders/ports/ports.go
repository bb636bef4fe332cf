package ports

import (
	"context"

	invdomain "storefront-orders/internal/features/inventory/domain"
	notifydomain "storefront-orders/internal/features/notifications/domain"
	"storefront-orders/internal/features/orders/domain"
)

// OrderRepository is the Order Store.
// Every method joins the transaction carried by ctx, if any.
type OrderRepository interface {
	// CreateHeader inserts the order row. A colliding order number yields
	// domain.ErrDuplicateOrderNumber, a reused payment reference
	// domain.ErrDuplicatePaymentReference.
	CreateHeader(ctx context.Context, order *domain.Order) error
	InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
	// ApplyStatusChange writes the change if the stored version still matches,
	// otherwise it returns domain.ErrStaleOrder.
	ApplyStatusChange(ctx context.Context, change domain.StatusChange) error
	ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
}

// Inventory is the part of the Inventory Ledger used by intake and cancellation.
type Inventory interface {
	Products(ctx context.Context, productIDs []string) (map[string]invdomain.Product, error)
	Decrement(ctx context.Context, productID string, qty int) (int, error)
	Restore(ctx context.Context, productID string, qty int) (int, error)
}

// Transactor runs fn atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier is the Notification Dispatcher.
type Notifier interface {
	Send(ctx context.Context, kind notifydomain.Kind, order *domain.Order) (string, error)
	// SendSequence sends kinds in order with the configured spacing between them.
	SendSequence(ctx context.Context, order *domain.Order, kinds ...notifydomain.Kind) error
}

// PendingReconciler replays payment events that arrived before their order existed.
type PendingReconciler interface {
	ReplayPending(ctx context.Context, paymentReference string) error
}

// OrderUseCases is the primary port used by the HTTP handler.
type OrderUseCases interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error)
}
