package handler

import (
	"errors"
	"net/http"
	"strings"

	"storefront-orders/internal/core/server"
	"storefront-orders/internal/features/inventory/ports"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler serves read-only stock lookups for the storefront.
type ProductHandler struct {
	stock ports.StockReader
}

// NewProductHandler creates a new instance of ProductHandler.
func NewProductHandler(s ports.StockReader) *ProductHandler {
	return &ProductHandler{stock: s}
}

// Register mounts the product routes.
func (h *ProductHandler) Register(app fiber.Router) {
	app.Get("/products/:id", h.GetProduct)
}

// GetProduct returns the current price and stock of a product.
// @Summary Get product stock
// @Tags products
// @Description Stock may trail the ledger by a few seconds; checkout always re-reads it.
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} server.ErrorResponse
// @Failure 404 {object} server.ErrorResponse
// @Failure 500 {object} server.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return server.WriteError(c, http.StatusBadRequest, errors.New("product id is required"))
	}

	product, err := h.stock.CurrentStock(c.UserContext(), id)
	if err != nil {
		return server.WriteError(c, server.StatusFor(err), err)
	}

	return c.Status(http.StatusOK).JSON(product)
}
