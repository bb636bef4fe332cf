package service

import (
	"context"
	"testing"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/database"
	"storefront-orders/internal/core/database/dbtest"
	invadapters "storefront-orders/internal/features/inventory/adapters"
	invdomain "storefront-orders/internal/features/inventory/domain"
	invservice "storefront-orders/internal/features/inventory/service"
	"storefront-orders/internal/features/orders/adapters"
	"storefront-orders/internal/features/orders/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const intakeEmail = "intake-tx@example.com"

// newPostgresService wires intake to the real store, ledger and transaction manager.
func newPostgresService(t *testing.T) (*OrderService, *database.DB, *MockNotifier) {
	t.Helper()
	db := dbtest.Open(t)

	dbtest.Exec(t, db, `
		INSERT INTO products (id, name, price, stock_count, in_stock) VALUES
			('intake-chair', 'Chair', 100.00, 5, true),
			('intake-lamp', 'Lamp', 40.00, 1, true)
		ON CONFLICT (id) DO UPDATE SET stock_count = EXCLUDED.stock_count, in_stock = EXCLUDED.in_stock`)
	t.Cleanup(func() {
		dbtest.Exec(t, db, `DELETE FROM orders WHERE customer_email = $1`, intakeEmail)
		dbtest.Exec(t, db, `DELETE FROM products WHERE id IN ('intake-chair', 'intake-lamp')`)
	})

	notifier := new(MockNotifier)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("msg", nil).Maybe()

	ledger := invservice.NewLedger(invadapters.NewPostgresProductRepository(db), nil)
	svc := NewOrderService(adapters.NewPostgresOrderRepository(db), ledger, db, notifier, nil, []string{"SW"})
	return svc, db, notifier
}

func intakeRequest(ref string, total string, items ...domain.RequestedItem) domain.PlaceOrderRequest {
	return domain.PlaceOrderRequest{
		Customer:         domain.Customer{Email: intakeEmail, Name: "Tess"},
		ShippingAddress:  domain.Address{Line1: "2 Mill Lane", City: "London", Postcode: "SW4 7AA"},
		Items:            items,
		TotalAmount:      dec(total),
		PaymentReference: ref,
	}
}

func stockOf(t *testing.T, db *database.DB, id string) int {
	t.Helper()
	var stock int
	err := db.Pool.QueryRow(context.Background(), `SELECT stock_count FROM products WHERE id = $1`, id).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func orderRows(t *testing.T, db *database.DB) (orders, items int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE customer_email = $1`, intakeEmail).Scan(&orders))
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.customer_email = $1`,
		intakeEmail).Scan(&items))
	return orders, items
}

func TestOrderService_PlaceOrder_Postgres_ShortfallOnLaterLineRollsBack(t *testing.T) {
	svc, db, notifier := newPostgresService(t)

	req := intakeRequest("pi_intake_short", "280.00",
		domain.RequestedItem{ProductID: "intake-chair", Quantity: 2},
		domain.RequestedItem{ProductID: "intake-lamp", Quantity: 2},
	)

	order, err := svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, invdomain.ErrInsufficientStock)
	assert.Equal(t, apperror.KindConsistency, apperror.KindOf(err))

	orders, items := orderRows(t, db)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	// The chair line was decremented before the lamp line failed.
	assert.Equal(t, 5, stockOf(t, db, "intake-chair"))
	assert.Equal(t, 1, stockOf(t, db, "intake-lamp"))
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_Postgres_DuplicatePaymentReferenceLeavesStock(t *testing.T) {
	svc, db, _ := newPostgresService(t)
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, intakeRequest("pi_intake_dup", "200.00",
		domain.RequestedItem{ProductID: "intake-chair", Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, first.PaymentStatus)
	assert.Equal(t, 3, stockOf(t, db, "intake-chair"))

	_, err = svc.PlaceOrder(ctx, intakeRequest("pi_intake_dup", "100.00",
		domain.RequestedItem{ProductID: "intake-chair", Quantity: 1},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicatePaymentReference)

	orders, items := orderRows(t, db)
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, items)
	assert.Equal(t, 3, stockOf(t, db, "intake-chair"))
}

func TestOrderService_PlaceOrder_Postgres_Commits(t *testing.T) {
	svc, db, notifier := newPostgresService(t)

	order, err := svc.PlaceOrder(context.Background(), intakeRequest("pi_intake_ok", "240.00",
		domain.RequestedItem{ProductID: "intake-chair", Quantity: 2},
		domain.RequestedItem{ProductID: "intake-lamp", Quantity: 1},
	))
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Chair", order.Items[0].ProductName)

	assert.Equal(t, 3, stockOf(t, db, "intake-chair"))
	assert.Equal(t, 0, stockOf(t, db, "intake-lamp"))
	notifier.AssertCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
