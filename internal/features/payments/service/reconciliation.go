package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/logger"
	notifydomain "storefront-orders/internal/features/notifications/domain"
	orderdomain "storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/payments/domain"
	"storefront-orders/internal/features/payments/ports"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	staleRetries   = 3
	sweepBatchSize = 100
	maxSweepDelay  = time.Hour
)

// Options tunes retries and waits of the reconciliation flow.
type Options struct {
	SettlementAttempts int
	SettlementBackoff  time.Duration
	LookupAttempts     int
	LookupInterval     time.Duration
	SweepInterval      time.Duration
	SweepMaxAttempts   int
}

// OptionsFromConfig copies the reconciliation settings.
func OptionsFromConfig(cfg config.ReconciliationConfig) Options {
	return Options{
		SettlementAttempts: cfg.SettlementAttempts,
		SettlementBackoff:  cfg.SettlementBackoff,
		LookupAttempts:     cfg.LookupAttempts,
		LookupInterval:     cfg.LookupInterval,
		SweepInterval:      cfg.SweepInterval,
		SweepMaxAttempts:   cfg.SweepMaxAttempts,
	}
}

// ReconciliationService applies verified gateway events to orders.
//
// An event is applied at most once: the processed_events row is written in the same
// transaction as the version-checked status change, and notifications go out only after
// that transaction committed. Events for orders that do not exist yet are parked and
// replayed by intake or by the sweeper.
type ReconciliationService struct {
	gateway  ports.Gateway
	claims   ports.EventClaims
	events   ports.EventStore
	orders   ports.Orders
	stock    ports.StockRestorer
	tx       ports.Transactor
	notifier ports.Notifier
	opts     Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconciliationService creates a new instance of ReconciliationService.
func NewReconciliationService(
	gateway ports.Gateway,
	claims ports.EventClaims,
	events ports.EventStore,
	orders ports.Orders,
	stock ports.StockRestorer,
	tx ports.Transactor,
	notifier ports.Notifier,
	opts Options,
) *ReconciliationService {
	if opts.LookupAttempts < 1 {
		opts.LookupAttempts = 1
	}
	if opts.SettlementAttempts < 1 {
		opts.SettlementAttempts = 1
	}
	return &ReconciliationService{
		gateway:  gateway,
		claims:   claims,
		events:   events,
		orders:   orders,
		stock:    stock,
		tx:       tx,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// HandleWebhook verifies and applies one gateway delivery.
// Only signature and payload problems are reported as client errors; every event
// the gateway should not redeliver yields a nil error.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, payload []byte, signature string) (domain.Outcome, error) {
	const op = "payments.webhook"
	log := logger.Named("reconciliation")

	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			log.Warn("Webhook signature rejected", zap.Error(err))
			return "", apperror.Signature(op, domain.ErrInvalidSignature)
		}
		return "", apperror.Validation(op, err)
	}

	log = log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("payment_reference", event.PaymentReference),
	)

	if event.Kind == domain.KindIgnored {
		log.Debug("Ignoring webhook event type")
		return domain.OutcomeIgnored, nil
	}
	if event.PaymentReference == "" {
		return "", apperror.Validation(op, fmt.Errorf("%w: missing payment reference", domain.ErrMalformedEvent))
	}

	held, err := s.claims.Claim(ctx, event.ID)
	if err != nil {
		// The durable processed_events row still guards against double application.
		log.Warn("Event claim unavailable, continuing without it", zap.Error(err))
	} else if !held {
		// A claim outlives a crashed holder until its TTL; only the durable row proves the
		// event was applied, otherwise the gateway must redeliver.
		processed, err := s.events.IsProcessed(ctx, event.ID)
		if err != nil {
			return "", apperror.Internal(op, err)
		}
		if processed {
			log.Info("Event already processed")
			return domain.OutcomeDuplicate, nil
		}
		log.Info("Event claimed by another delivery, asking for redelivery")
		return "", apperror.Consistency(op, domain.ErrEventInFlight)
	}

	outcome, err := s.reconcile(ctx, event, s.opts.LookupAttempts)
	if err != nil {
		if held {
			if relErr := s.claims.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
				log.Warn("Releasing event claim failed", zap.Error(relErr))
			}
		}
		log.Error("Reconciliation failed", zap.Error(err))
		return "", err
	}

	log.Info("Webhook event handled", zap.String("outcome", string(outcome)))
	return outcome, nil
}

// reconcile runs everything after verification and dedup claim.
// lookupAttempts bounds the wait for an order created concurrently by intake.
func (s *ReconciliationService) reconcile(ctx context.Context, event domain.Event, lookupAttempts int) (domain.Outcome, error) {
	const op = "payments.reconcile"
	log := logger.Named("reconciliation").With(
		zap.String("event_id", event.ID),
		zap.String("payment_reference", event.PaymentReference),
	)

	processed, err := s.events.IsProcessed(ctx, event.ID)
	if err != nil {
		return "", apperror.Internal(op, err)
	}
	if processed {
		return domain.OutcomeDuplicate, nil
	}

	order, err := s.lookup(ctx, event.PaymentReference, lookupAttempts)
	if errors.Is(err, orderdomain.ErrOrderNotFound) {
		if err := s.events.Park(ctx, event, "order not found"); err != nil {
			return "", apperror.Internal(op, err)
		}
		log.Warn("No order for payment reference yet, event parked for replay")
		return domain.OutcomeParked, nil
	}
	if err != nil {
		return "", apperror.Internal(op, err)
	}

	var net, fee decimal.NullDecimal
	if event.Kind == domain.KindSucceeded && order.PaymentStatus.CanTransitionTo(orderdomain.PaymentPaid) {
		net, fee = s.settlement(ctx, event.PaymentReference)
	}

	for attempt := 1; ; attempt++ {
		outcome, err := s.apply(ctx, event, order, net, fee)
		if errors.Is(err, orderdomain.ErrStaleOrder) && attempt < staleRetries {
			log.Debug("Order changed concurrently, reloading", zap.Int("attempt", attempt))
			if order, err = s.orders.GetByPaymentReference(ctx, event.PaymentReference); err != nil {
				return "", apperror.Internal(op, err)
			}
			continue
		}
		if errors.Is(err, domain.ErrEventAlreadyProcessed) {
			return domain.OutcomeDuplicate, nil
		}
		if err != nil {
			return "", apperror.Internal(op, err)
		}

		switch outcome {
		case domain.OutcomeApplied:
			s.notify(ctx, event, order)
		case domain.OutcomeIllegal:
			log.Warn("Event does not apply to the current order state, recorded without changes",
				zap.String("payment_status", string(order.PaymentStatus)),
				zap.String("order_status", string(order.OrderStatus)),
			)
		}
		return outcome, nil
	}
}

// apply writes the processed event and the status change in one transaction.
// On success order reflects the committed state.
func (s *ReconciliationService) apply(ctx context.Context, event domain.Event, order *orderdomain.Order, net, fee decimal.NullDecimal) (domain.Outcome, error) {
	outcome := domain.OutcomeApplied

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.events.MarkProcessed(ctx, event); err != nil {
			return err
		}

		var change orderdomain.StatusChange
		var err error
		if event.Kind == domain.KindSucceeded {
			change, err = order.MarkPaid(net, fee)
		} else {
			change, err = order.MarkPaymentFailed()
		}
		if errors.Is(err, orderdomain.ErrIllegalTransition) {
			outcome = domain.OutcomeIllegal
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.orders.ApplyStatusChange(ctx, change); err != nil {
			return err
		}

		if change.Restock {
			for _, item := range order.Items {
				if _, err := s.stock.Restore(ctx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("restock %s: %w", item.ProductID, err)
				}
			}
		}

		order.Apply(change)
		return nil
	})
	return outcome, err
}

func (s *ReconciliationService) lookup(ctx context.Context, reference string, attempts int) (*orderdomain.Order, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.LookupInterval); err != nil {
				return nil, err
			}
		}
		order, err := s.orders.GetByPaymentReference(ctx, reference)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, orderdomain.ErrOrderNotFound) {
			return nil, err
		}
	}
	return nil, orderdomain.ErrOrderNotFound
}

// settlement fetches net amount and fee with doubling backoff.
// Exhausting the attempts is not fatal: the order is marked paid without fee data.
func (s *ReconciliationService) settlement(ctx context.Context, reference string) (decimal.NullDecimal, decimal.NullDecimal) {
	log := logger.Named("reconciliation").With(zap.String("payment_reference", reference))
	backoff := s.opts.SettlementBackoff

	for attempt := 1; ; attempt++ {
		st, err := s.gateway.Settlement(ctx, reference)
		if err == nil {
			return decimal.NewNullDecimal(st.Net), decimal.NewNullDecimal(st.Fee)
		}

		if attempt >= s.opts.SettlementAttempts {
			log.Warn("Settlement unavailable, continuing without fee data",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return decimal.NullDecimal{}, decimal.NullDecimal{}
		}

		log.Debug("Settlement not ready, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		if err := s.sleep(ctx, backoff); err != nil {
			return decimal.NullDecimal{}, decimal.NullDecimal{}
		}
		backoff *= 2
	}
}

func (s *ReconciliationService) notify(ctx context.Context, event domain.Event, order *orderdomain.Order) {
	log := logger.Named("reconciliation").With(zap.String("order_id", order.ID), zap.String("event_id", event.ID))

	if event.Kind == domain.KindSucceeded {
		if order.PaidNoticeSent {
			log.Info("Payment confirmation already sent at intake")
			return
		}
		if err := s.notifier.SendSequence(ctx, order, notifydomain.KindConfirmation, notifydomain.KindMerchant); err != nil {
			log.Warn("Payment confirmation notifications failed", zap.Error(err))
		}
		return
	}

	if _, err := s.notifier.Send(ctx, notifydomain.KindPaymentFailed, order); err != nil {
		log.Warn("Payment failure notification failed", zap.Error(err))
	}
}

// ReplayPending applies events parked for paymentReference. Intake calls it once the
// order is committed.
func (s *ReconciliationService) ReplayPending(ctx context.Context, paymentReference string) error {
	parked, err := s.events.ParkedForReference(ctx, paymentReference)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range parked {
		if err := s.replay(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep retries parked events that are due. Events that reached the attempt limit are
// left in place for an operator.
func (s *ReconciliationService) Sweep(ctx context.Context) (ports.SweepResult, error) {
	var result ports.SweepResult

	due, err := s.events.DueParked(ctx, s.now(), s.opts.SweepMaxAttempts, sweepBatchSize)
	if err != nil {
		return result, err
	}

	for _, p := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		switch err := s.replay(ctx, p); {
		case err == nil:
			result.Resolved++
		case errors.Is(err, errStillParked):
			result.Rescheduled++
		default:
			result.Failed++
		}
	}

	if len(due) > 0 {
		logger.Named("sweeper").Info("Parked events swept",
			zap.Int("resolved", result.Resolved),
			zap.Int("rescheduled", result.Rescheduled),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

var errStillParked = errors.New("order still missing")

func (s *ReconciliationService) replay(ctx context.Context, p domain.PendingEvent) error {
	log := logger.Named("reconciliation").With(
		zap.String("event_id", p.ID),
		zap.String("payment_reference", p.PaymentReference),
		zap.Int("attempts", p.Attempts),
	)

	outcome, err := s.reconcile(ctx, p.Event, 1)
	if err == nil && outcome != domain.OutcomeParked {
		if err := s.events.Resolve(ctx, p.ID); err != nil {
			return err
		}
		log.Info("Parked event replayed", zap.String("outcome", string(outcome)))
		return nil
	}

	reason := errStillParked
	if err != nil {
		reason = err
	}

	attempts := p.Attempts + 1
	if s.opts.SweepMaxAttempts > 0 && attempts >= s.opts.SweepMaxAttempts {
		log.Error("Parked event gave up, needs manual reconciliation", zap.Error(reason))
	}

	if rsErr := s.events.Reschedule(ctx, p.ID, s.now().Add(s.retryDelay(attempts)), reason.Error()); rsErr != nil {
		return errors.Join(reason, rsErr)
	}
	return reason
}

// retryDelay doubles the sweep interval per attempt, capped at an hour.
func (s *ReconciliationService) retryDelay(attempts int) time.Duration {
	delay := s.opts.SweepInterval
	if delay <= 0 {
		delay = 30 * time.Second
	}
	for i := 1; i < attempts && delay < maxSweepDelay; i++ {
		delay *= 2
	}
	if delay > maxSweepDelay {
		delay = maxSweepDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
