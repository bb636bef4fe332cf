package ports

import (
	"context"

	"storefront-orders/internal/features/inventory/domain"
)

// ProductRepository is the secondary port over the stock counters.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetByIDs returns the products found; missing ids are simply absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	// Decrement atomically subtracts qty when enough stock is left and returns the new count.
	Decrement(ctx context.Context, id string, qty int) (int, error)
	// Restore adds qty back and returns the new count.
	Restore(ctx context.Context, id string, qty int) (int, error)
}

// ProductCache keeps short-lived copies of products for read-only lookups.
type ProductCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, id string) (*domain.Product, error)
	Save(ctx context.Context, product *domain.Product) error
	Forget(ctx context.Context, id string) error
}

// StockReader is the primary port used by the product handler.
type StockReader interface {
	CurrentStock(ctx context.Context, productID string) (*domain.Product, error)
}
