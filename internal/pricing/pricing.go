// Package pricing computes cart totals and coupon discounts. It performs no
// I/O; callers load carts and coupons and persist the results.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

var (
	TaxRate               = decimal.RequireFromString("0.18")
	ShippingFee           = decimal.NewFromInt(50)
	FreeShippingThreshold = decimal.NewFromInt(1000)
)

const moneyPlaces = 2

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(moneyPlaces)
}

func ComputeTotals(lines []domain.CartLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Cost())
	}
	subtotal = round(subtotal)

	shipping := decimal.Zero
	if subtotal.IsPositive() && subtotal.LessThan(FreeShippingThreshold) {
		shipping = ShippingFee
	}

	tax := round(subtotal.Mul(TaxRate))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: decimal.Zero,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// CouponDiscount returns the discount the coupon grants on subtotal. ok is
// false when the coupon cannot be applied at now.
func CouponDiscount(c domain.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, bool) {
	if !c.Applicable(now, subtotal) {
		return decimal.Zero, false
	}

	discount := decimal.NewFromInt(int64(c.DiscountPercent)).
		Div(decimal.NewFromInt(100)).
		Mul(subtotal)
	if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
		discount = *c.MaxDiscount
	}
	return round(discount), true
}

// ApplyDiscount subtracts discount from the totals. The discount never exceeds
// subtotal plus shipping.
func ApplyDiscount(t Totals, discount decimal.Decimal) Totals {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if ceiling := t.Subtotal.Add(t.Shipping); discount.GreaterThan(ceiling) {
		discount = ceiling
	}
	t.Discount = discount
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping).Sub(discount)
	return t
}
