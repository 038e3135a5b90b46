package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	Code            string           `json:"code"`
	Description     string           `json:"description"`
	DiscountPercent int              `json:"discount_percent"`
	MaxDiscount     *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrderAmount  decimal.Decimal  `json:"min_order_amount"`
	ValidFrom       time.Time        `json:"valid_from"`
	ValidTo         time.Time        `json:"valid_to"`
	MaxUses         int              `json:"max_uses"`
	UsedCount       int              `json:"used_count"`
	Active          bool             `json:"active"`
}

func (c Coupon) IsValid(now time.Time) bool {
	return c.Active &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidTo) &&
		c.UsedCount < c.MaxUses
}

// Applicable reports whether the coupon may discount an order with the given
// subtotal at time now.
func (c Coupon) Applicable(now time.Time, subtotal decimal.Decimal) bool {
	return c.IsValid(now) && subtotal.GreaterThanOrEqual(c.MinOrderAmount)
}
