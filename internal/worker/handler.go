// Package worker reacts to order events by emailing the customer.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type NotificationHandler struct {
	emailServiceURL string
	siteURL         string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, siteURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		siteURL:         strings.TrimRight(siteURL, "/"),
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle processes one order event. Emails are best effort: a failed send is
// logged and the event is still acknowledged. Undecodable payloads are
// dropped so they cannot block the partition.
func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed order event", "error", err)
		return nil
	}

	var msg emailMessage
	switch event.Type {
	case domain.OrderEventConfirmed:
		msg = h.confirmationEmail(event)
	case domain.OrderEventCancelled:
		msg = h.cancellationEmail(event)
	default:
		h.logger.Warn("ignoring unknown order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	if msg.To == "" {
		h.logger.Warn("order has no email address, skipping notification", "order_id", event.OrderID)
		return nil
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send order email",
			"error", err,
			"type", event.Type,
			"order_id", event.OrderID,
		)
		return nil
	}

	h.logger.Info("order email sent", "type", event.Type, "order_id", event.OrderID, "order_number", event.OrderNumber)
	return nil
}

func (h *NotificationHandler) trackingURL(orderID string) string {
	return h.siteURL + "/orders/" + orderID
}

func (h *NotificationHandler) confirmationEmail(event domain.OrderEvent) emailMessage {
	body := fmt.Sprintf(`Hello,

Your order has been confirmed successfully!

Order Number: %s
Items: %d
Total Amount: ₹%s
Payment Method: %s

You can track your order here:
%s

Thank you for shopping with us!`,
		event.OrderNumber,
		event.ItemCount,
		event.Total.StringFixed(2),
		event.PaymentMethod.DisplayName(),
		h.trackingURL(event.OrderID),
	)

	return emailMessage{
		To:      event.Email,
		Subject: "Order Confirmed! #" + event.OrderNumber,
		Body:    body,
	}
}

func (h *NotificationHandler) cancellationEmail(event domain.OrderEvent) emailMessage {
	body := fmt.Sprintf(`Hello,

Your order %s has been cancelled.

Order Total: ₹%s

Order details:
%s`,
		event.OrderNumber,
		event.Total.StringFixed(2),
		h.trackingURL(event.OrderID),
	)

	return emailMessage{
		To:      event.Email,
		Subject: "Order Cancelled #" + event.OrderNumber,
		Body:    body,
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
