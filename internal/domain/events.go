package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventConfirmed OrderEventType = "order.confirmed"
	OrderEventCancelled OrderEventType = "order.cancelled"
)

// OrderEvent is published on the order events topic after an order
// transaction commits.
type OrderEvent struct {
	Type          OrderEventType  `json:"type"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	Email         string          `json:"email"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewOrderEvent(t OrderEventType, order *Order, at time.Time) OrderEvent {
	count := 0
	for _, l := range order.Lines {
		count += l.Quantity
	}
	return OrderEvent{
		Type:          t,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Email:         order.Email,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     count,
		Timestamp:     at,
	}
}

func (e OrderEvent) EventType() string {
	return string(e.Type)
}
