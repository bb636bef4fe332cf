package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storefront-orders/internal/core/config"
	"storefront-orders/internal/features/notifications/domain"

	"github.com/resend/resend-go/v2"
)

// ResendAdapter implements ports.EmailProvider using the Resend API.
type ResendAdapter struct {
	client *resend.Client
	from   string
}

// NewResendAdapter creates a new ResendAdapter. httpClient carries the timeout and request logging.
func NewResendAdapter(cfg config.EmailConfig, httpClient *http.Client) (*ResendAdapter, error) {
	client := resend.NewCustomClient(httpClient, cfg.ResendAPIKey)

	if cfg.ResendAPIURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.ResendAPIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid RESEND_API_URL: %w", err)
		}
		client.BaseURL = base
	}

	return &ResendAdapter{client: client, from: cfg.From}, nil
}

// Send posts {from, to, subject, html} and returns the provider id.
func (a *ResendAdapter) Send(ctx context.Context, email domain.Email) (string, error) {
	sent, err := a.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    a.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	return sent.Id, nil
}
