package domain

import (
	"fmt"
	"math/rand/v2"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TotalTolerance is the largest accepted gap between submitted and recomputed totals.
var TotalTolerance = decimal.New(1, -2)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RequestedItem is one cart line as submitted by the client.
type RequestedItem struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
	// Price is what the client believes the unit price is. It is never persisted.
	Price decimal.NullDecimal `json:"price"`
}

// PlaceOrderRequest is the intake input.
type PlaceOrderRequest struct {
	Customer        Customer        `json:"customer"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Items           []RequestedItem `json:"items"`

	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	// PaymentReference is the payment intent the client already authorized.
	PaymentReference string `json:"payment_intent_id"`
	// PaymentStatus may be "paid" when the caller already knows the payment settled.
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
}

// Validate checks the shape of the request. Prices are checked later against the catalog.
func (r *PlaceOrderRequest) Validate() error {
	var problems []string

	if strings.TrimSpace(r.Customer.Email) == "" {
		problems = append(problems, "customer email is required")
	} else if _, err := mail.ParseAddress(r.Customer.Email); err != nil {
		problems = append(problems, "customer email is malformed")
	}

	if len(r.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			problems = append(problems, fmt.Sprintf("items[%d]: id is required", i))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
	}

	for name, amount := range map[string]decimal.Decimal{
		"shipping_amount": r.ShippingAmount,
		"tax_amount":      r.TaxAmount,
		"discount_amount": r.DiscountAmount,
		"total_amount":    r.TotalAmount,
	} {
		if amount.IsNegative() {
			problems = append(problems, name+" must not be negative")
		}
	}

	switch r.PaymentStatus {
	case "", PaymentPending, PaymentPaid:
	default:
		problems = append(problems, "payment_status must be pending or paid")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// ProductIDs returns the distinct product ids of the cart in first-seen order.
func (r *PlaceOrderRequest) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Items))
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CatalogEntry is the authoritative view of a product at intake time.
type CatalogEntry struct {
	Name  string
	Price decimal.Decimal
}

// PriceLines builds line items from authoritative prices, ignoring client prices.
func PriceLines(items []RequestedItem, catalog map[string]CatalogEntry) ([]LineItem, error) {
	lines := make([]LineItem, 0, len(items))
	var missing []string

	for _, item := range items {
		entry, ok := catalog[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		lines = append(lines, LineItem{
			ProductID:   item.ProductID,
			ProductName: entry.Name,
			Quantity:    item.Quantity,
			UnitPrice:   entry.Price,
			TotalPrice:  entry.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, strings.Join(missing, ", "))
	}
	return lines, nil
}

// Subtotal sums the line totals.
func Subtotal(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.TotalPrice)
	}
	return sum
}

// ExpectedTotal is subtotal + shipping + tax - discount.
func ExpectedTotal(subtotal, shipping, tax, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(shipping).Add(tax).Sub(discount)
}

// CheckTotal fails with ErrTotalMismatch when submitted and expected differ by more than TotalTolerance.
func CheckTotal(submitted, expected decimal.Decimal) error {
	if submitted.Sub(expected).Abs().GreaterThan(TotalTolerance) {
		return fmt.Errorf("%w: submitted %s, expected %s", ErrTotalMismatch, submitted.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}

// NewOrderNumber returns "ORD-<unix millis>-<6 random chars>".
// Uniqueness is enforced by the store, not by this function.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[rand.IntN(len(orderNumberAlphabet))]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

// NewOrder builds a pending order from a validated request and priced lines.
func NewOrder(req PlaceOrderRequest, lines []LineItem, localZones []string, now time.Time) *Order {
	billing := req.BillingAddress
	if billing.IsZero() {
		billing = req.ShippingAddress
	}

	distance, quote := ClassifyDelivery(req.ShippingAddress, localZones)

	return &Order{
		ID:                    uuid.NewString(),
		OrderNumber:           NewOrderNumber(now),
		Customer:              req.Customer,
		ShippingAddress:       req.ShippingAddress,
		BillingAddress:        billing,
		Items:                 lines,
		Subtotal:              Subtotal(lines),
		TaxAmount:             req.TaxAmount,
		ShippingAmount:        req.ShippingAmount,
		DiscountAmount:        req.DiscountAmount,
		TotalAmount:           req.TotalAmount,
		PaymentStatus:         PaymentPending,
		OrderStatus:           OrderPending,
		PaymentReference:      strings.TrimSpace(req.PaymentReference),
		DeliveryQuoteRequired: quote,
		DeliveryDistance:      distance,
		PaidNoticeSent:        req.PaymentStatus == PaymentPaid,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// ClassifyDelivery derives the delivery band from the shipping postcode.
// A zone matches either the full outward code ("SW1A") or its letter area ("SW").
func ClassifyDelivery(addr Address, localZones []string) (DeliveryDistance, bool) {
	outward := outwardCode(addr.Postcode)
	if outward == "" {
		return DeliveryUnknown, true
	}

	area := outward
	if i := strings.IndexFunc(outward, unicode.IsDigit); i > 0 {
		area = outward[:i]
	}

	for _, zone := range localZones {
		zone = strings.ToUpper(strings.TrimSpace(zone))
		if zone != "" && (zone == outward || zone == area) {
			return DeliveryLocal, false
		}
	}
	return DeliveryNational, true
}

func outwardCode(postcode string) string {
	pc := strings.ToUpper(strings.TrimSpace(postcode))
	if pc == "" {
		return ""
	}
	if i := strings.IndexByte(pc, ' '); i > 0 {
		return pc[:i]
	}
	if len(pc) > 3 {
		return pc[:len(pc)-3]
	}
	return pc
}
