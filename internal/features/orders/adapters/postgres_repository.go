package adapters

import (
	"context"
	"errors"
	"fmt"

	"storefront-orders/internal/core/database"
	"storefront-orders/internal/features/orders/domain"

	"github.com/jackc/pgx/v5"
)

const (
	paymentReferenceConstraint = "orders_payment_reference_key"

	orderColumns = `
		id, order_number, customer_email, customer_name, customer_phone,
		shipping_address, billing_address,
		subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		payment_status, order_status, gateway_payment_reference,
		net_amount_received, processor_fee,
		delivery_quote_required, delivery_distance, version, created_at, updated_at,
		paid_notice_sent`

	insertOrderQuery = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (order_number) DO NOTHING
`
	insertLineItemQuery = `
		INSERT INTO order_items (order_id, position, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	selectOrderByIDQuery = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	selectOrderByReferenceQuery = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_payment_reference = $1`

	selectOrdersByStatusQuery = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE order_status = $1
		ORDER BY created_at DESC
		LIMIT $2
`
	selectLineItemsQuery = `
		SELECT oi.product_id, p.name, oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.position
`
	updateStatusQuery = `
		UPDATE orders
		SET payment_status = $3,
		    order_status = $4,
		    net_amount_received = COALESCE($5, net_amount_received),
		    processor_fee = COALESCE($6, processor_fee),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND version = $2
`
)

// PostgresOrderRepository implements ports.OrderRepository.
type PostgresOrderRepository struct {
	db *database.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository.
func NewPostgresOrderRepository(db *database.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// CreateHeader inserts the order row without its line items.
func (r *PostgresOrderRepository) CreateHeader(ctx context.Context, o *domain.Order) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, insertOrderQuery,
		o.ID, o.OrderNumber, o.Customer.Email, o.Customer.Name, o.Customer.Phone,
		o.ShippingAddress, o.BillingAddress,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		o.PaymentStatus, o.OrderStatus, nullable(o.PaymentReference),
		o.NetAmountReceived, o.ProcessorFee,
		o.DeliveryQuoteRequired, o.DeliveryDistance, o.Version, o.CreatedAt, o.UpdatedAt,
		o.PaidNoticeSent,
	)
	if err != nil {
		if database.IsUniqueViolation(err, paymentReferenceConstraint) {
			return domain.ErrDuplicatePaymentReference
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateOrderNumber
	}
	return nil
}

// InsertLineItems stores the priced lines in one batch.
func (r *PostgresOrderRepository) InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(insertLineItemQuery, orderID, i+1, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
	}

	results := r.db.Conn(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}
	return nil
}

// GetByID returns the order with its line items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, selectOrderByIDQuery, id)
}

// GetByPaymentReference returns the order joined to a gateway payment.
func (r *PostgresOrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	return r.getOne(ctx, selectOrderByReferenceQuery, reference)
}

// ApplyStatusChange writes both statuses and the settlement figures if the version matches.
func (r *PostgresOrderRepository) ApplyStatusChange(ctx context.Context, c domain.StatusChange) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, updateStatusQuery,
		c.OrderID, c.Version, c.PaymentStatus, c.OrderStatus, c.NetAmountReceived, c.ProcessorFee,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleOrder
	}
	return nil
}

// ListByStatus returns order headers without line items.
func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, selectOrdersByStatusQuery, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, query string, arg string) (*domain.Order, error) {
	o, err := scanOrder(r.db.Conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.lineItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *PostgresOrderRepository) lineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, selectLineItemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o   domain.Order
		ref *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Customer.Email, &o.Customer.Name, &o.Customer.Phone,
		&o.ShippingAddress, &o.BillingAddress,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount,
		&o.PaymentStatus, &o.OrderStatus, &ref,
		&o.NetAmountReceived, &o.ProcessorFee,
		&o.DeliveryQuoteRequired, &o.DeliveryDistance, &o.Version, &o.CreatedAt, &o.UpdatedAt,
		&o.PaidNoticeSent,
	)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		o.PaymentReference = *ref
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
