package service

import (
	"context"
	"errors"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/inventory/ports"

	"go.uber.org/zap"
)

// Ledger owns the per-product stock counters.
type Ledger struct {
	repo  ports.ProductRepository
	cache ports.ProductCache
}

// NewLedger creates a new Ledger. productCache may be nil.
// Cached copies only serve CurrentStock and may trail writes by the cache TTL;
// intake always reads through Products.
func NewLedger(repo ports.ProductRepository, productCache ports.ProductCache) *Ledger {
	return &Ledger{repo: repo, cache: productCache}
}

// CurrentStock returns the product with its current counters.
func (l *Ledger) CurrentStock(ctx context.Context, productID string) (*domain.Product, error) {
	log := logger.Named("inventory").With(zap.String("product_id", productID))

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, productID)
		if err != nil {
			log.Warn("Product cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	p, err := l.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, classify("inventory.current_stock", err)
	}

	if l.cache != nil {
		if err := l.cache.Save(ctx, p); err != nil {
			log.Warn("Product cache write failed", zap.Error(err))
		}
	}
	return p, nil
}

// Products returns the authoritative price and stock for every requested id.
// Unknown ids are absent from the result; the caller decides how to report them.
func (l *Ledger) Products(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products, err := l.repo.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, apperror.Internal("inventory.products", err)
	}
	return products, nil
}

// Decrement removes qty units from stock, failing without side effects when
// fewer than qty units are left.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperror.Validation("inventory.decrement", domain.ErrInvalidQuantity)
	}

	stock, err := l.repo.Decrement(ctx, productID, qty)
	if err != nil {
		return 0, classify("inventory.decrement", err)
	}

	l.forget(ctx, productID)
	logger.Get().Debug("Stock decremented",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock_count", stock),
	)
	return stock, nil
}

// Restore puts qty units back into stock.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperror.Validation("inventory.restore", domain.ErrInvalidQuantity)
	}

	stock, err := l.repo.Restore(ctx, productID, qty)
	if err != nil {
		return 0, classify("inventory.restore", err)
	}

	l.forget(ctx, productID)
	logger.Get().Info("Stock restored",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock_count", stock),
	)
	return stock, nil
}

func (l *Ledger) forget(ctx context.Context, productID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Forget(ctx, productID); err != nil {
		logger.Named("inventory").Warn("Product cache invalidation failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return apperror.NotFound(op, err)
	case errors.Is(err, domain.ErrInsufficientStock):
		return apperror.Consistency(op, err)
	default:
		return apperror.Internal(op, err)
	}
}
