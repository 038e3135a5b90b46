package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProduct_EffectivePrice(t *testing.T) {
	price := decimal.RequireFromString("999.00")
	lower := decimal.RequireFromString("799.00")
	higher := decimal.RequireFromString("1299.00")

	tests := []struct {
		name     string
		discount *decimal.Decimal
		want     string
	}{
		{"no discount", nil, "999"},
		{"lower discount", &lower, "799"},
		{"discount above list price ignored", &higher, "999"},
		{"equal discount ignored", &price, "999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: price, DiscountPrice: tt.discount}
			if got := p.EffectivePrice(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
