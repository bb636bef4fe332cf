package server

import (
	"errors"
	"net/http"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Error is the error description.
	Error string `json:"error"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// RayID returns the request id assigned by the requestid middleware.
func RayID(c *fiber.Ctx) string {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return rayID
}

// WriteError renders err with the status derived from its apperror kind.
// Internal failures are logged and reported without details.
func WriteError(c *fiber.Ctx, status int, err error) error {
	rayID := RayID(c)
	msg := publicMessage(err)

	if status >= http.StatusInternalServerError {
		logger.Get().Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("ray_id", rayID),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}

	return c.Status(status).JSON(ErrorResponse{Error: msg, RayID: rayID})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	return apperror.HTTPStatus(apperror.KindOf(err))
}

// publicMessage drops the operation prefix added by apperror.
func publicMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Err.Error()
	}
	return err.Error()
}

// errorHandler renders errors returned by handlers or raised by fiber itself.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message, RayID: RayID(c)})
	}
	return WriteError(c, StatusFor(err), err)
}
