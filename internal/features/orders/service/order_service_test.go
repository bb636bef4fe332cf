package service

import (
	"context"
	"errors"
	"testing"

	"storefront-orders/internal/core/apperror"
	invdomain "storefront-orders/internal/features/inventory/domain"
	notifydomain "storefront-orders/internal/features/notifications/domain"
	"storefront-orders/internal/features/orders/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderRepository is a mock implementation of ports.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateHeader(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	return m.Called(ctx, orderID, items).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ApplyStatusChange(ctx context.Context, change domain.StatusChange) error {
	return m.Called(ctx, change).Error(0)
}

func (m *MockOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

// MockInventory is a mock implementation of ports.Inventory
type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) Products(ctx context.Context, ids []string) (map[string]invdomain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]invdomain.Product), args.Error(1)
}

func (m *MockInventory) Decrement(ctx context.Context, id string, qty int) (int, error) {
	args := m.Called(ctx, id, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockInventory) Restore(ctx context.Context, id string, qty int) (int, error) {
	args := m.Called(ctx, id, qty)
	return args.Int(0), args.Error(1)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, kind notifydomain.Kind, order *domain.Order) (string, error) {
	args := m.Called(ctx, kind, order)
	return args.String(0), args.Error(1)
}

func (m *MockNotifier) SendSequence(ctx context.Context, order *domain.Order, kinds ...notifydomain.Kind) error {
	return m.Called(ctx, order, kinds).Error(0)
}

// MockPendingReconciler is a mock implementation of ports.PendingReconciler
type MockPendingReconciler struct {
	mock.Mock
}

func (m *MockPendingReconciler) ReplayPending(ctx context.Context, reference string) error {
	return m.Called(ctx, reference).Error(0)
}

// fakeTx runs fn directly and counts how often a transaction was opened.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fixture struct {
	orders    *MockOrderRepository
	inventory *MockInventory
	notifier  *MockNotifier
	pending   *MockPendingReconciler
	tx        *fakeTx
	svc       *OrderService
}

func newFixture() *fixture {
	f := &fixture{
		orders:    new(MockOrderRepository),
		inventory: new(MockInventory),
		notifier:  new(MockNotifier),
		pending:   new(MockPendingReconciler),
		tx:        &fakeTx{},
	}
	f.svc = NewOrderService(f.orders, f.inventory, f.tx, f.notifier, f.pending, []string{"SW"})
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cartRequest(total string) domain.PlaceOrderRequest {
	return domain.PlaceOrderRequest{
		Customer:         domain.Customer{Email: "ada@example.com", Name: "Ada"},
		ShippingAddress:  domain.Address{Line1: "1 High St", City: "London", Postcode: "SW1A 1AA"},
		Items:            []domain.RequestedItem{{ProductID: "A", Quantity: 2, Price: decimal.NewNullDecimal(dec("1.00"))}},
		TotalAmount:      dec(total),
		PaymentReference: "pi_123",
	}
}

var productA = map[string]invdomain.Product{
	"A": {ID: "A", Name: "Mug", Price: dec("100.00"), StockCount: 5, InStock: true},
}

func TestOrderService_PlaceOrder_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var created *domain.Order
	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()
	f.orders.On("CreateHeader", ctx, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Order) }).
		Return(nil).Once()
	f.orders.On("InsertLineItems", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(items []domain.LineItem) bool {
		return len(items) == 1 && items[0].UnitPrice.Equal(dec("100.00")) && items[0].TotalPrice.Equal(dec("200.00"))
	})).Return(nil).Once()
	f.inventory.On("Decrement", ctx, "A", 2).Return(3, nil).Once()
	f.orders.On("GetByID", ctx, mock.AnythingOfType("string")).Return(nil, errors.New("replica lag")).Once()
	f.notifier.On("Send", ctx, notifydomain.KindProcessing, mock.AnythingOfType("*domain.Order")).Return("msg_1", nil).Once()
	f.pending.On("ReplayPending", ctx, "pi_123").Return(nil).Once()

	order, err := f.svc.PlaceOrder(ctx, cartRequest("200.00"))
	require.NoError(t, err)

	assert.Same(t, created, order)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Equal(t, domain.OrderPending, order.OrderStatus)
	assert.True(t, order.Subtotal.Equal(dec("200.00")))
	assert.Equal(t, domain.DeliveryLocal, order.DeliveryDistance)
	assert.Equal(t, 1, f.tx.calls)

	f.orders.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.pending.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_TotalMismatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()

	_, err := f.svc.PlaceOrder(ctx, cartRequest("150.00"))

	assert.ErrorIs(t, err, domain.ErrTotalMismatch)
	assert.Equal(t, apperror.KindConsistency, apperror.KindOf(err))
	f.orders.AssertNotCalled(t, "CreateHeader", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.inventory.On("Products", ctx, []string{"A"}).Return(map[string]invdomain.Product{}, nil).Once()

	_, err := f.svc.PlaceOrder(ctx, cartRequest("200.00"))

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	f.orders.AssertNotCalled(t, "CreateHeader", mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_InsufficientStockAbortsTransaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stockErr := apperror.Consistency("inventory.decrement", invdomain.ErrInsufficientStock)

	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()
	f.orders.On("CreateHeader", ctx, mock.Anything).Return(nil).Once()
	f.orders.On("InsertLineItems", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	f.inventory.On("Decrement", ctx, "A", 2).Return(0, stockErr).Once()

	_, err := f.svc.PlaceOrder(ctx, cartRequest("200.00"))

	assert.ErrorIs(t, err, invdomain.ErrInsufficientStock)
	assert.Equal(t, apperror.KindConsistency, apperror.KindOf(err))
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.pending.AssertNotCalled(t, "ReplayPending", mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_RegeneratesCollidingNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var numbers []string
	record := func(args mock.Arguments) { numbers = append(numbers, args.Get(1).(*domain.Order).OrderNumber) }

	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()
	f.orders.On("CreateHeader", ctx, mock.Anything).Run(record).Return(domain.ErrDuplicateOrderNumber).Once()
	f.orders.On("CreateHeader", ctx, mock.Anything).Run(record).Return(nil).Once()
	f.orders.On("InsertLineItems", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	f.inventory.On("Decrement", ctx, "A", 2).Return(3, nil).Once()
	f.orders.On("GetByID", ctx, mock.Anything).Return(nil, domain.ErrOrderNotFound).Once()
	f.notifier.On("Send", ctx, notifydomain.KindProcessing, mock.Anything).Return("", nil).Once()
	f.pending.On("ReplayPending", ctx, "pi_123").Return(nil).Once()

	_, err := f.svc.PlaceOrder(ctx, cartRequest("200.00"))
	require.NoError(t, err)
	require.Len(t, numbers, 2)
}

func TestOrderService_PlaceOrder_DuplicatePaymentReference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()
	f.orders.On("CreateHeader", ctx, mock.Anything).Return(domain.ErrDuplicatePaymentReference).Once()

	_, err := f.svc.PlaceOrder(ctx, cartRequest("200.00"))
	assert.ErrorIs(t, err, domain.ErrDuplicatePaymentReference)
	assert.Equal(t, apperror.KindConsistency, apperror.KindOf(err))
}

func TestOrderService_PlaceOrder_PaidAtIntakeSendsAllMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := cartRequest("200.00")
	req.PaymentStatus = domain.PaymentPaid

	f.inventory.On("Products", ctx, []string{"A"}).Return(productA, nil).Once()
	f.orders.On("CreateHeader", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.PaidNoticeSent && o.PaymentStatus == domain.PaymentPending
	})).Return(nil).Once()
	f.orders.On("InsertLineItems", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	f.inventory.On("Decrement", ctx, "A", 2).Return(3, nil).Once()
	f.orders.On("GetByID", ctx, mock.Anything).Return(&domain.Order{ID: "o1", PaymentReference: "pi_123"}, nil).Once()
	f.notifier.On("Send", ctx, notifydomain.KindProcessing, mock.Anything).Return("", errors.New("provider down")).Once()
	f.notifier.On("SendSequence", ctx, mock.Anything, []notifydomain.Kind{notifydomain.KindConfirmation, notifydomain.KindMerchant}).Return(nil).Once()
	f.pending.On("ReplayPending", ctx, "pi_123").Return(errors.New("db down")).Once()

	order, err := f.svc.PlaceOrder(ctx, req)
	require.NoError(t, err, "notification and replay failures must not fail intake")
	assert.Equal(t, "o1", order.ID)
	f.notifier.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_ValidationError(t *testing.T) {
	f := newFixture()
	req := cartRequest("200.00")
	req.Customer.Email = ""

	_, err := f.svc.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, 0, f.tx.calls)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ShippedSendsOutForDelivery", func(t *testing.T) {
		f := newFixture()
		o := &domain.Order{ID: "o1", Version: 2, PaymentStatus: domain.PaymentPaid, OrderStatus: domain.OrderProcessing}
		f.orders.On("GetByID", ctx, "o1").Return(o, nil).Once()
		f.orders.On("ApplyStatusChange", ctx, mock.MatchedBy(func(c domain.StatusChange) bool {
			return c.OrderStatus == domain.OrderShipped && c.Version == 2
		})).Return(nil).Once()
		f.notifier.On("Send", ctx, notifydomain.KindOutForDelivery, o).Return("msg", nil).Once()

		got, err := f.svc.UpdateStatus(ctx, "o1", domain.OrderShipped)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderShipped, got.OrderStatus)
		assert.Equal(t, 3, got.Version)
		f.notifier.AssertExpectations(t)
	})

	t.Run("CancelRestocks", func(t *testing.T) {
		f := newFixture()
		o := &domain.Order{ID: "o2", Version: 1, OrderStatus: domain.OrderPending, PaymentStatus: domain.PaymentPending,
			Items: []domain.LineItem{{ProductID: "A", Quantity: 2}}}
		f.orders.On("GetByID", ctx, "o2").Return(o, nil).Once()
		f.orders.On("ApplyStatusChange", ctx, mock.Anything).Return(nil).Once()
		f.inventory.On("Restore", ctx, "A", 2).Return(5, nil).Once()
		f.notifier.On("Send", ctx, notifydomain.KindCancelled, o).Return("msg", nil).Once()

		_, err := f.svc.UpdateStatus(ctx, "o2", domain.OrderCancelled)
		require.NoError(t, err)
		f.inventory.AssertExpectations(t)
	})

	t.Run("IllegalTransition", func(t *testing.T) {
		f := newFixture()
		f.orders.On("GetByID", ctx, "o3").Return(&domain.Order{ID: "o3", OrderStatus: domain.OrderCancelled}, nil).Once()

		_, err := f.svc.UpdateStatus(ctx, "o3", domain.OrderProcessing)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
		assert.Equal(t, apperror.KindConsistency, apperror.KindOf(err))
		f.orders.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture()
		f.orders.On("GetByID", ctx, "missing").Return(nil, domain.ErrOrderNotFound).Once()

		_, err := f.svc.UpdateStatus(ctx, "missing", domain.OrderShipped)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.UpdateStatus(ctx, "o1", domain.OrderStatus("lost"))
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1"}, nil).Once()
	f.orders.On("GetByID", ctx, "nope").Return(nil, domain.ErrOrderNotFound).Once()

	o, err := f.svc.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	_, err = f.svc.GetOrder(ctx, "nope")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.orders.On("ListByStatus", ctx, domain.OrderProcessing, 50).Return([]domain.Order{{ID: "o1"}}, nil).Once()

	orders, err := f.svc.ListOrders(ctx, domain.OrderProcessing, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.svc.ListOrders(ctx, "bogus", 10)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
