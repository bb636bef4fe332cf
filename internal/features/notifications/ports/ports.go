package ports

import (
	"context"

	"storefront-orders/internal/features/notifications/domain"
)

// EmailProvider is the external transactional email service.
type EmailProvider interface {
	// Send delivers one message and returns the provider message id.
	Send(ctx context.Context, email domain.Email) (string, error)
}

// SendGate enforces the provider's request rate across every process.
type SendGate interface {
	// Acquire blocks until a send slot is free or ctx is done.
	Acquire(ctx context.Context) error
}
