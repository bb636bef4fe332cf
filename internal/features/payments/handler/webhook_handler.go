package handler

import (
	"storefront-orders/internal/core/server"
	"storefront-orders/internal/features/payments/domain"
	"storefront-orders/internal/features/payments/ports"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the gateway's HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// WebhookHandler receives payment gateway notifications.
type WebhookHandler struct {
	service ports.Reconciler
}

// NewWebhookHandler creates a new instance of WebhookHandler.
func NewWebhookHandler(s ports.Reconciler) *WebhookHandler {
	return &WebhookHandler{service: s}
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool           `json:"received"`
	Outcome  domain.Outcome `json:"outcome,omitempty"`
}

// Register mounts the webhook route.
func (h *WebhookHandler) Register(app fiber.Router) {
	app.Post("/payments/webhook", h.Receive)
}

// Receive handles a signed gateway event.
// @Summary Payment gateway webhook
// @Description Verifies the signature and reconciles the order with the payment outcome.
// @Tags payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Gateway signature"
// @Success 200 {object} handler.WebhookResponse
// @Failure 400 {object} server.ErrorResponse
// @Failure 409 {object} server.ErrorResponse
// @Failure 500 {object} server.ErrorResponse
// @Router /payments/webhook [post]
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer once the handler returns.
	payload := append([]byte(nil), c.Body()...)

	outcome, err := h.service.HandleWebhook(c.UserContext(), payload, c.Get(SignatureHeader))
	if err != nil {
		return server.WriteError(c, server.StatusFor(err), err)
	}

	return c.JSON(WebhookResponse{Received: true, Outcome: outcome})
}
