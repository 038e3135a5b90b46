package orders

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/storage"
)

// History lists the user's orders, newest first.
func (s *CheckoutService) History(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}
	return s.orders.ListByUser(ctx, userID)
}

// Detail returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *CheckoutService) Detail(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}

	order, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// CancelOrder cancels a pending order and returns its units to stock, all in
// one transaction.
func (s *CheckoutService) CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}

	var order *domain.Order
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.LockForUser(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		if !order.Status.Cancellable() {
			return fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, domain.ErrCannotCancel)
		}

		lines := append([]domain.OrderLine(nil), order.Lines...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		for _, l := range lines {
			if err := s.products.RestoreStock(ctx, tx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, tx, order.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, nil, domain.OrderEventCancelled, order)

	s.logger.Info("order cancelled", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", userID)
	return order, nil
}

// UpdateStatus moves an order along the fulfilment states. Cancellation goes
// through CancelOrder so stock is restored; cancelled and delivered orders
// are final.
func (s *CheckoutService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "is invalid")
	}
	if status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("use cancel to cancel order %s: %w", orderID, domain.ErrInvalidTransition)
	}

	var order *domain.Order
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		if order.Status == status {
			return nil
		}
		if order.Status.Terminal() {
			return fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, domain.ErrInvalidTransition)
		}

		if err := s.orders.UpdateStatus(ctx, tx, order.ID, status); err != nil {
			return err
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}
