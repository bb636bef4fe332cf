package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the gateway side of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// OrderStatus tracks fulfilment.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// DeliveryDistance is the coarse delivery band derived from the shipping postcode.
type DeliveryDistance string

const (
	DeliveryLocal    DeliveryDistance = "local"
	DeliveryNational DeliveryDistance = "national"
	DeliveryUnknown  DeliveryDistance = "unknown"
)

// Customer identifies the buyer. Email is the only addressing key for notifications.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Address is a structured postal address.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country,omitempty"`
}

// String renders the address on one line for notification bodies.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, strings.ToUpper(a.Postcode), a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// IsZero reports whether no address field was provided.
func (a Address) IsZero() bool {
	return a.String() == ""
}

// LineItem is one priced row of an order. It is immutable after creation.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Order is the durable record shared by intake and reconciliation.
type Order struct {
	ID              string     `json:"id"`
	OrderNumber     string     `json:"order_number"`
	Customer        Customer   `json:"customer"`
	ShippingAddress Address    `json:"shipping_address"`
	BillingAddress  Address    `json:"billing_address"`
	Items           []LineItem `json:"line_items"`

	// Amounts are in major currency units.
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	PaymentStatus     PaymentStatus       `json:"payment_status"`
	OrderStatus       OrderStatus         `json:"order_status"`
	PaymentReference  string              `json:"gateway_payment_reference,omitempty"`
	NetAmountReceived decimal.NullDecimal `json:"net_amount_received"`
	ProcessorFee      decimal.NullDecimal `json:"processor_fee"`

	DeliveryQuoteRequired bool             `json:"delivery_quote_required"`
	DeliveryDistance      DeliveryDistance `json:"delivery_distance"`

	// PaidNoticeSent marks orders whose confirmation and merchant messages went out at intake.
	PaidNoticeSent bool `json:"-"`

	// Version guards status writes against concurrent updates.
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
