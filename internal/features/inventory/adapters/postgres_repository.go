package adapters

import (
	"context"
	"errors"
	"fmt"

	"storefront-orders/internal/core/database"
	"storefront-orders/internal/features/inventory/domain"

	"github.com/jackc/pgx/v5"
)

const (
	selectProductQuery = `
		SELECT id, name, price, stock_count, in_stock FROM products
		WHERE id = $1
`
	selectProductsQuery = `
		SELECT id, name, price, stock_count, in_stock FROM products
		WHERE id = ANY($1)
`
	decrementStockQuery = `
		UPDATE products
		SET stock_count = stock_count - $2,
		    in_stock = (stock_count - $2) > 0,
		    updated_at = now()
		WHERE id = $1 AND stock_count >= $2
		RETURNING stock_count
`
	restoreStockQuery = `
		UPDATE products
		SET stock_count = stock_count + $2,
		    in_stock = (stock_count + $2) > 0,
		    updated_at = now()
		WHERE id = $1
		RETURNING stock_count
`
	productExistsQuery = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

// PostgresProductRepository implements ports.ProductRepository on the products table.
// Every method joins the transaction carried by ctx, if any.
type PostgresProductRepository struct {
	db *database.DB
}

// NewPostgresProductRepository creates a new PostgresProductRepository.
func NewPostgresProductRepository(db *database.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

// GetByID returns one product.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.Conn(ctx).QueryRow(ctx, selectProductQuery, id).Scan(&p.ID, &p.Name, &p.Price, &p.StockCount, &p.InStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return &p, nil
}

// GetByIDs loads a batch of products in one round trip.
func (r *PostgresProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, selectProductsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockCount, &p.InStock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Decrement applies a conditional update so concurrent orders never oversell.
func (r *PostgresProductRepository) Decrement(ctx context.Context, id string, qty int) (int, error) {
	var stock int
	err := r.db.Conn(ctx).QueryRow(ctx, decrementStockQuery, id, qty).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to decrement stock for %s: %w", id, err)
	}

	// No row matched: either the product is unknown or the guard rejected it.
	var exists bool
	if err := r.db.Conn(ctx).QueryRow(ctx, productExistsQuery, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check product %s: %w", id, err)
	}
	if !exists {
		return 0, domain.ErrProductNotFound
	}
	return 0, domain.ErrInsufficientStock
}

// Restore gives stock back, e.g. when an order is cancelled.
func (r *PostgresProductRepository) Restore(ctx context.Context, id string, qty int) (int, error) {
	var stock int
	err := r.db.Conn(ctx).QueryRow(ctx, restoreStockQuery, id, qty).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to restore stock for %s: %w", id, err)
	}
	return stock, nil
}
