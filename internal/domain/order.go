package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentOnline         PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentOnline
}

func (m PaymentMethod) DisplayName() string {
	switch m {
	case PaymentCashOnDelivery:
		return "Cash on Delivery"
	case PaymentOnline:
		return "Online Payment"
	}
	return string(m)
}

// OrderLine is a snapshot of a cart line taken when the order was placed.
type OrderLine struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Cost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Email           string          `json:"email"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentID       string          `json:"payment_id,omitempty"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCharge  decimal.Decimal `json:"shipping_charge"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Lines           []OrderLine     `json:"lines"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("ORD-%06d", seq)
}

// ShippingDetails is the typed checkout form. Address fields are required;
// AddressLine2 is optional.
type ShippingDetails struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=15"`
	AddressLine1 string `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=10"`
	Country      string `json:"country" validate:"required,max=100"`
}

func (d ShippingDetails) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Text renders the address block stored on the order.
func (d ShippingDetails) Text() string {
	var b strings.Builder
	b.WriteString(d.FullName() + "\n")
	b.WriteString(d.AddressLine1 + "\n")
	if d.AddressLine2 != "" {
		b.WriteString(d.AddressLine2 + "\n")
	}
	fmt.Fprintf(&b, "%s, %s - %s\n", d.City, d.State, d.PostalCode)
	b.WriteString(d.Country)
	return b.String()
}

type CheckoutRequest struct {
	Shipping      ShippingDetails `json:"shipping" validate:"required"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=cod online"`
	CouponCode    string          `json:"coupon_code" validate:"max=50"`
	SaveAddress   bool            `json:"save_address"`
}

type Address struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"address_line1"`
	Line2      string `json:"address_line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
