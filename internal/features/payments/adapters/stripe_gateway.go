package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/payments/domain"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements ports.Gateway.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

// NewStripeGateway creates a new StripeGateway. httpClient carries the timeout and request logging.
// Network retries are left to the caller, which owns the settlement backoff.
func NewStripeGateway(cfg config.StripeConfig, httpClient *http.Client) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	tolerance := cfg.SignatureTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		tolerance:     tolerance,
	}
}

// ParseEvent verifies the Stripe-Signature header before decoding anything.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (domain.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	event := domain.Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Kind:    domain.KindForType(string(ev.Type)),
		Payload: payload,
	}
	if ev.ID == "" {
		return domain.Event{}, fmt.Errorf("%w: missing event id", domain.ErrMalformedEvent)
	}

	if event.Kind != domain.KindIgnored && ev.Data != nil {
		var object struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &object); err != nil {
			return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		event.PaymentReference = object.ID
	}

	return event, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// Settlement reads net and fee from the balance transaction of the latest charge.
func (g *StripeGateway) Settlement(ctx context.Context, paymentReference string) (domain.Settlement, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")

	pi, err := g.api.PaymentIntents.Get(paymentReference, params)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("failed to retrieve payment intent %s: %w", paymentReference, err)
	}

	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return domain.Settlement{}, domain.ErrSettlementPending
	}

	bt := pi.LatestCharge.BalanceTransaction
	return domain.SettlementFromMinor(bt.Net, bt.Fee), nil
}
