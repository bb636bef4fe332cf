package service

import (
	"context"
	"errors"
	"time"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/logger"
	invdomain "storefront-orders/internal/features/inventory/domain"
	notifydomain "storefront-orders/internal/features/notifications/domain"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"go.uber.org/zap"
)

// statusNotifications maps operator driven transitions to the customer message they trigger.
var statusNotifications = map[domain.OrderStatus]notifydomain.Kind{
	domain.OrderShipped:   notifydomain.KindOutForDelivery,
	domain.OrderDelivered: notifydomain.KindDelivered,
	domain.OrderCancelled: notifydomain.KindCancelled,
}

// OrderService implements order intake and the operator facing order operations.
type OrderService struct {
	orders     ports.OrderRepository
	inventory  ports.Inventory
	tx         ports.Transactor
	notifier   ports.Notifier
	pending    ports.PendingReconciler
	localZones []string
	now        func() time.Time
}

// NewOrderService creates a new instance of OrderService.
// pending may be nil when no reconciliation backlog is wired.
func NewOrderService(
	orders ports.OrderRepository,
	inventory ports.Inventory,
	tx ports.Transactor,
	notifier ports.Notifier,
	pending ports.PendingReconciler,
	localZones []string,
) *OrderService {
	return &OrderService{
		orders:     orders,
		inventory:  inventory,
		tx:         tx,
		notifier:   notifier,
		pending:    pending,
		localZones: localZones,
		now:        time.Now,
	}
}

// PlaceOrder validates the cart against authoritative prices, persists the order with
// its line items and decrements stock, all in one transaction. Any failure leaves no
// order row and no decrement behind. Notifications go out only after commit.
//
// PlaceOrder is not idempotent: retrying the same request creates a second order.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	const op = "orders.place"
	log := logger.Named("intake")

	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(op, err)
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		products, err := s.inventory.Products(ctx, req.ProductIDs())
		if err != nil {
			return err
		}

		lines, err := domain.PriceLines(req.Items, catalog(products))
		if err != nil {
			return apperror.NotFound(op, err)
		}

		order = domain.NewOrder(req, lines, s.localZones, s.now())

		expected := domain.ExpectedTotal(order.Subtotal, order.ShippingAmount, order.TaxAmount, order.DiscountAmount)
		if err := domain.CheckTotal(req.TotalAmount, expected); err != nil {
			return apperror.Consistency(op, err)
		}

		if err := s.createHeader(ctx, order); err != nil {
			return err
		}

		if err := s.orders.InsertLineItems(ctx, order.ID, order.Items); err != nil {
			return apperror.Internal(op, err)
		}

		for _, item := range order.Items {
			if _, err := s.inventory.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("Order intake rejected",
			zap.String("customer_email", req.Customer.Email),
			zap.String("payment_reference", req.PaymentReference),
			zap.Stringer("kind", apperror.KindOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	if stored, err := s.orders.GetByID(ctx, order.ID); err != nil {
		log.Warn("Reloading placed order failed, using in-memory copy", zap.String("order_id", order.ID), zap.Error(err))
	} else {
		order = stored
	}

	log.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_reference", order.PaymentReference),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	s.notify(ctx, order, notifydomain.KindProcessing)

	if req.PaymentStatus == domain.PaymentPaid {
		if err := s.notifier.SendSequence(ctx, order, notifydomain.KindConfirmation, notifydomain.KindMerchant); err != nil {
			log.Warn("Paid-at-intake notifications failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	if s.pending != nil && order.PaymentReference != "" {
		if err := s.pending.ReplayPending(ctx, order.PaymentReference); err != nil {
			log.Error("Replaying parked payment events failed",
				zap.String("order_id", order.ID),
				zap.String("payment_reference", order.PaymentReference),
				zap.Error(err),
			)
		}
	}

	return order, nil
}

// createHeader inserts the order row, regenerating the order number once on collision.
func (s *OrderService) createHeader(ctx context.Context, order *domain.Order) error {
	const op = "orders.create_header"

	err := s.orders.CreateHeader(ctx, order)
	if errors.Is(err, domain.ErrDuplicateOrderNumber) {
		order.OrderNumber = domain.NewOrderNumber(s.now())
		err = s.orders.CreateHeader(ctx, order)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrDuplicatePaymentReference):
		return apperror.Consistency(op, err)
	default:
		return apperror.Internal(op, err)
	}
}

// GetOrder returns an order with its line items.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, apperror.NotFound("orders.get", err)
		}
		return nil, apperror.Internal("orders.get", err)
	}
	return order, nil
}

// ListOrders returns the most recent orders in the given fulfilment status.
func (s *OrderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if !status.Valid() {
		return nil, apperror.Validation("orders.list", domain.ErrInvalidRequest)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	orders, err := s.orders.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, apperror.Internal("orders.list", err)
	}
	return orders, nil
}

// UpdateStatus applies an operator driven fulfilment transition. Cancelling gives the
// stock back in the same transaction. The matching customer message is sent after commit.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	const op = "orders.update_status"

	if !next.Valid() {
		return nil, apperror.Validation(op, domain.ErrInvalidRequest)
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return apperror.NotFound(op, err)
			}
			return apperror.Internal(op, err)
		}

		change, err := o.Advance(next)
		if err != nil {
			return apperror.Consistency(op, err)
		}

		if err := s.orders.ApplyStatusChange(ctx, change); err != nil {
			if errors.Is(err, domain.ErrStaleOrder) {
				return apperror.Consistency(op, err)
			}
			return apperror.Internal(op, err)
		}

		if change.Restock {
			if err := restock(ctx, s.inventory, o.Items); err != nil {
				return err
			}
		}

		o.Apply(change)
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Named("orders").Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("order_status", string(order.OrderStatus)),
	)

	if kind, ok := statusNotifications[next]; ok {
		s.notify(ctx, order, kind)
	}
	return order, nil
}

func (s *OrderService) notify(ctx context.Context, order *domain.Order, kind notifydomain.Kind) {
	if _, err := s.notifier.Send(ctx, kind, order); err != nil {
		logger.Named("orders").Warn("Notification failed",
			zap.String("order_id", order.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func restock(ctx context.Context, inventory ports.Inventory, items []domain.LineItem) error {
	for _, item := range items {
		if _, err := inventory.Restore(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func catalog(products map[string]invdomain.Product) map[string]domain.CatalogEntry {
	entries := make(map[string]domain.CatalogEntry, len(products))
	for id, p := range products {
		entries[id] = domain.CatalogEntry{Name: p.Name, Price: p.Price}
	}
	return entries
}
