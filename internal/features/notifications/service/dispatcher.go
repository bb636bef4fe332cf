package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/notifications/domain"
	"storefront-orders/internal/features/notifications/ports"
	orderdomain "storefront-orders/internal/features/orders/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[domain.Kind]string{
	domain.KindProcessing:     "We have received your order %s",
	domain.KindConfirmation:   "Payment confirmed for order %s",
	domain.KindPaymentFailed:  "Payment failed for order %s",
	domain.KindMerchant:       "New paid order %s",
	domain.KindOutForDelivery: "Order %s is on its way",
	domain.KindDelivered:      "Order %s has been delivered",
	domain.KindCancelled:      "Order %s has been cancelled",
}

// Settings configures rendering and pacing of outgoing messages.
type Settings struct {
	StoreName       string
	MerchantAddress string
	CurrencySymbol  string
	// MinSpacing is the pause between consecutive messages of a sequence
	// when no shared gate is configured.
	MinSpacing time.Duration
}

// Dispatcher renders order notifications and hands them to the email provider.
// Failures are returned as *domain.DispatchError and never affect order state.
type Dispatcher struct {
	provider  ports.EmailProvider
	gate      ports.SendGate
	templates *template.Template
	settings  Settings
}

// NewDispatcher parses the embedded templates. gate may be nil.
func NewDispatcher(provider ports.EmailProvider, gate ports.SendGate, settings Settings) (*Dispatcher, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}

	for kind := range subjects {
		if tmpl.Lookup(string(kind)) == nil {
			return nil, fmt.Errorf("missing template for %s", kind)
		}
	}

	return &Dispatcher{
		provider:  provider,
		gate:      gate,
		templates: tmpl,
		settings:  settings,
	}, nil
}

// Send renders and delivers one message of the given kind for order.
// The merchant kind goes to the merchant address, everything else to the customer.
func (d *Dispatcher) Send(ctx context.Context, kind domain.Kind, order *orderdomain.Order) (string, error) {
	id, _, err := d.send(ctx, kind, order)
	return id, err
}

// send reports whether the provider was reached without holding the gate, in which
// case the caller owns the spacing before the next message.
func (d *Dispatcher) send(ctx context.Context, kind domain.Kind, order *orderdomain.Order) (string, bool, error) {
	log := logger.Named("notifications").With(
		zap.String("kind", string(kind)),
		zap.String("order_number", order.OrderNumber),
	)

	ungated := false
	fail := func(err error) (string, bool, error) {
		log.Warn("Notification not sent", zap.Error(err))
		return "", ungated, &domain.DispatchError{Kind: kind, OrderNumber: order.OrderNumber, Err: err}
	}

	email, err := d.Render(kind, order)
	if err != nil {
		return fail(err)
	}

	if d.gate == nil {
		ungated = true
	} else if err := d.gate.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return fail(err)
		}
		log.Warn("Send gate unavailable, sending without it", zap.Error(err))
		ungated = true
	}

	id, err := d.provider.Send(ctx, email)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrProviderFailure, err))
	}

	log.Info("Notification sent", zap.String("message_id", id))
	return id, ungated, nil
}

// SendSequence sends kinds in order, spacing them so the provider rate limit holds.
// Every kind is attempted even if an earlier one fails. Messages that went out
// without the shared gate are followed by MinSpacing.
func (d *Dispatcher) SendSequence(ctx context.Context, order *orderdomain.Order, kinds ...domain.Kind) error {
	var errs []error
	ungated := false
	for _, kind := range kinds {
		if ungated {
			if err := d.Pause(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}
		var err error
		if _, ungated, err = d.send(ctx, kind, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pause waits for the configured minimum spacing or until ctx is done.
func (d *Dispatcher) Pause(ctx context.Context) error {
	if d.settings.MinSpacing <= 0 {
		return nil
	}
	timer := time.NewTimer(d.settings.MinSpacing)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Render builds the message for kind without sending it.
func (d *Dispatcher) Render(kind domain.Kind, order *orderdomain.Order) (domain.Email, error) {
	subject, ok := subjects[kind]
	if !ok {
		return domain.Email{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}

	to := order.Customer.Email
	if kind == domain.KindMerchant {
		to = d.settings.MerchantAddress
	}
	recipient, err := validRecipient(to)
	if err != nil {
		return domain.Email{}, err
	}

	var body bytes.Buffer
	if err := d.templates.ExecuteTemplate(&body, string(kind), d.view(order)); err != nil {
		return domain.Email{}, fmt.Errorf("render %s: %w", kind, err)
	}

	return domain.Email{
		To:      recipient,
		Subject: fmt.Sprintf(subject, order.OrderNumber),
		HTML:    body.String(),
	}, nil
}

func validRecipient(to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", domain.ErrInvalidRecipient
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRecipient, err)
	}
	return addr.Address, nil
}

type itemView struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

type orderView struct {
	StoreName             string
	OrderNumber           string
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
	Items                 []itemView
	Subtotal              string
	Shipping              string
	Tax                   string
	Discount              string
	HasDiscount           bool
	Total                 string
	ShippingAddress       string
	BillingAddress        string
	DeliveryQuoteRequired bool
	DeliveryDistance      string
	PaymentReference      string
	NetAmount             string
	Fee                   string
}

func (d *Dispatcher) view(o *orderdomain.Order) orderView {
	name := o.Customer.Name
	if name == "" {
		name = "there"
	}

	v := orderView{
		StoreName:             d.settings.StoreName,
		OrderNumber:           o.OrderNumber,
		CustomerName:          name,
		CustomerEmail:         o.Customer.Email,
		CustomerPhone:         o.Customer.Phone,
		Subtotal:              d.money(o.Subtotal),
		Shipping:              d.money(o.ShippingAmount),
		Tax:                   d.money(o.TaxAmount),
		Discount:              d.money(o.DiscountAmount),
		HasDiscount:           o.DiscountAmount.IsPositive(),
		Total:                 d.money(o.TotalAmount),
		ShippingAddress:       o.ShippingAddress.String(),
		BillingAddress:        o.BillingAddress.String(),
		DeliveryQuoteRequired: o.DeliveryQuoteRequired,
		DeliveryDistance:      string(o.DeliveryDistance),
		PaymentReference:      o.PaymentReference,
	}
	if o.NetAmountReceived.Valid {
		v.NetAmount = d.money(o.NetAmountReceived.Decimal)
		v.Fee = d.money(o.ProcessorFee.Decimal)
	}

	v.Items = make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: d.money(it.UnitPrice),
			Total:     d.money(it.TotalPrice),
		})
	}
	return v
}

func (d *Dispatcher) money(amount decimal.Decimal) string {
	return d.settings.CurrencySymbol + amount.StringFixed(2)
}
