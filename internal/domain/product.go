package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Stock         int              `json:"stock"`
	Active        bool             `json:"active"`
}

// EffectivePrice is the discount price when it is set and below the list
// price, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.LessThan(p.Price) {
		return *p.DiscountPrice
	}
	return p.Price
}

func (p Product) InStock() bool {
	return p.Stock > 0
}
