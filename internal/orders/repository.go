package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/storage"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order header and its lines inside tx. It assigns the
// order id, the order number and the timestamps.
func (r *OrderRepository) Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return err
	}

	order.ID = uuid.New().String()
	order.OrderNumber = domain.FormatOrderNumber(seq)
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, email, status, payment_method, payment_id,
			shipping_address, billing_address, subtotal, tax, shipping_charge,
			discount, total, coupon_code, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''), $16, $16)
	`, order.ID, order.OrderNumber, order.UserID, order.Email, order.Status, order.PaymentMethod, order.PaymentID,
		order.ShippingAddress, order.BillingAddress, order.Subtotal, order.Tax, order.ShippingCharge,
		order.Discount, order.Total, order.CouponCode, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		line.ID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, line.ID, order.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice)
		if err != nil {
			return err
		}
	}

	return nil
}

const orderColumns = `
	id, order_number, user_id, email, status, payment_method, COALESCE(payment_id, ''),
	shipping_address, billing_address, subtotal, tax, shipping_charge, discount, total,
	COALESCE(coupon_code, ''), created_at, updated_at
`

func scanOrder(row interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Email, &o.Status, &o.PaymentMethod, &o.PaymentID,
		&o.ShippingAddress, &o.BillingAddress, &o.Subtotal, &o.Tax, &o.ShippingCharge, &o.Discount, &o.Total,
		&o.CouponCode, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// getOrder loads a single order with its lines, or nil when the query matches
// nothing.
func (r *OrderRepository) getOrder(ctx context.Context, q storage.DBTX, query string, args ...any) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	lines, err := r.loadLines(ctx, q, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[order.ID]

	return &order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUser returns the order only when it belongs to userID.
func (r *OrderRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Order, error) {
	return r.getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
}

// LockByID loads the order and holds its row lock until tx ends.
func (r *OrderRepository) LockByID(ctx context.Context, tx *sql.Tx, id string) (*domain.Order, error) {
	return r.getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) LockForUser(ctx context.Context, tx *sql.Tx, userID, id string) (*domain.Order, error) {
	return r.getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.OrderStatus) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ListByUser returns the user's orders newest first. Lines for all orders are
// fetched with a single query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, order_number DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		orders   []domain.Order
		orderIDs []string
	)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	lines, err := r.loadLines(ctx, r.db, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}

	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, q storage.DBTX, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := make(map[string][]domain.OrderLine, len(orderIDs))
	for _, id := range orderIDs {
		lines[id] = []domain.OrderLine{}
	}

	for rows.Next() {
		var (
			orderID string
			line    domain.OrderLine
		)
		if err := rows.Scan(&orderID, &line.ID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines[orderID] = append(lines[orderID], line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// SaveAddress stores a shipping address in the user's address book.
func (r *OrderRepository) SaveAddress(ctx context.Context, tx *sql.Tx, addr *domain.Address) error {
	addr.ID = uuid.New().String()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, full_name, phone, address_line1, address_line2, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
	`, addr.ID, addr.UserID, addr.FullName, addr.Phone, addr.Line1, addr.Line2,
		addr.City, addr.State, addr.PostalCode, addr.Country)
	return err
}
