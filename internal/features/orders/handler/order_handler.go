package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront-orders/internal/core/apperror"
	"storefront-orders/internal/core/server"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	service ports.OrderUseCases
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s ports.OrderUseCases) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// UpdateStatusRequest is the body of PATCH /orders/{id}/status.
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// Register mounts the order routes.
func (h *OrderHandler) Register(app fiber.Router) {
	app.Post("/orders", h.PlaceOrder)
	app.Get("/orders", h.ListOrders)
	app.Get("/orders/:id", h.GetOrder)
	app.Patch("/orders/:id/status", h.UpdateStatus)
}

// PlaceOrder handles checkout submissions.
// @Summary Place an order
// @Tags orders
// @Description Validates the cart against current prices, stores the order and decrements stock.
// @Accept json
// @Produce json
// @Param order body domain.PlaceOrderRequest true "Cart"
// @Success 201 {object} domain.Order
// @Failure 400 {object} server.ErrorResponse
// @Failure 404 {object} server.ErrorResponse
// @Failure 409 {object} server.ErrorResponse
// @Failure 500 {object} server.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	var req domain.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return server.WriteError(c, http.StatusBadRequest, errors.New("request body must be valid JSON"))
	}

	order, err := h.service.PlaceOrder(c.UserContext(), req)
	if err != nil {
		return server.WriteError(c, intakeStatus(err), err)
	}

	return c.Status(http.StatusCreated).JSON(order)
}

// GetOrder returns one order with its line items.
// @Summary Get Order by ID
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} server.ErrorResponse
// @Failure 404 {object} server.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, ok := orderID(c)
	if !ok {
		return server.WriteError(c, http.StatusBadRequest, errors.New("order id must be a UUID"))
	}

	order, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return server.WriteError(c, server.StatusFor(err), err)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// ListOrders returns recent orders in a fulfilment status.
// @Summary List orders by status
// @Tags orders
// @Produce json
// @Param status query string false "Order status" default(pending)
// @Param limit query int false "Maximum number of orders" default(50)
// @Success 200 {array} domain.Order
// @Failure 400 {object} server.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	status := domain.OrderStatus(c.Query("status", string(domain.OrderPending)))
	limit, _ := strconv.Atoi(c.Query("limit"))

	orders, err := h.service.ListOrders(c.UserContext(), status, limit)
	if err != nil {
		return server.WriteError(c, server.StatusFor(err), err)
	}

	return c.Status(http.StatusOK).JSON(orders)
}

// UpdateStatus moves an order through fulfilment.
// @Summary Update order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body UpdateStatusRequest true "New status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} server.ErrorResponse
// @Failure 404 {object} server.ErrorResponse
// @Failure 409 {object} server.ErrorResponse
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := orderID(c)
	if !ok {
		return server.WriteError(c, http.StatusBadRequest, errors.New("order id must be a UUID"))
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return server.WriteError(c, http.StatusBadRequest, errors.New("status is required"))
	}

	order, err := h.service.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return server.WriteError(c, server.StatusFor(err), err)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// intakeStatus maps intake failures: a total mismatch is user correctable, so 400.
func intakeStatus(err error) int {
	if errors.Is(err, domain.ErrTotalMismatch) {
		return http.StatusBadRequest
	}
	if apperror.KindOf(err) == apperror.KindExternalService {
		return http.StatusInternalServerError
	}
	return server.StatusFor(err)
}

func orderID(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
