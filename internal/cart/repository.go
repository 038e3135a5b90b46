package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/storage"
)

// CartRepository persists carts and their lines. Lines are always read joined
// with the product they reference so prices and stock are never stale.
type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func ownerArgs(o domain.Owner) (any, any) {
	var userID, sessionID any
	if o.UserID != "" {
		userID = o.UserID
	}
	if o.SessionID != "" {
		sessionID = o.SessionID
	}
	return userID, sessionID
}

// FindCartID returns the id of the owner's cart, or "" when it has none.
func (r *CartRepository) FindCartID(ctx context.Context, q storage.DBTX, owner domain.Owner) (string, error) {
	query, key := `SELECT id FROM carts WHERE session_id = $1`, owner.SessionID
	if owner.Authenticated() {
		query, key = `SELECT id FROM carts WHERE user_id = $1`, owner.UserID
	}

	var id string
	if err := q.QueryRowContext(ctx, query, key).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// GetOrCreateCart returns the owner's cart id, creating the cart on first use.
// Concurrent creators converge on the same row through the unique owner
// indexes.
func (r *CartRepository) GetOrCreateCart(ctx context.Context, tx *sql.Tx, owner domain.Owner) (string, error) {
	userID, sessionID := ownerArgs(owner)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, session_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, uuid.New().String(), userID, sessionID)
	if err != nil {
		return "", err
	}

	id, err := r.FindCartID(ctx, tx, owner)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("cart vanished after insert")
	}
	return id, nil
}

const lineSelect = `
	SELECT ci.id, ci.cart_id, ci.product_id, p.name,
	       COALESCE(p.discount_price, p.price), p.stock, p.is_active, ci.quantity
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
`

func scanLine(row interface{ Scan(dest ...any) error }) (domain.CartLine, error) {
	var l domain.CartLine
	err := row.Scan(&l.ID, &l.CartID, &l.ProductID, &l.ProductName,
		&l.UnitPrice, &l.Stock, &l.Active, &l.Quantity)
	return l, err
}

func (r *CartRepository) queryLines(ctx context.Context, q storage.DBTX, query string, args ...any) ([]domain.CartLine, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Lines returns the cart's lines in the order they were added.
func (r *CartRepository) Lines(ctx context.Context, q storage.DBTX, cartID string) ([]domain.CartLine, error) {
	return r.queryLines(ctx, q, lineSelect+`
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`, cartID)
}

// LockLines is Lines with row locks on the cart items, so nothing edits the
// cart while a checkout reads it.
func (r *CartRepository) LockLines(ctx context.Context, tx *sql.Tx, cartID string) ([]domain.CartLine, error) {
	return r.queryLines(ctx, tx, lineSelect+`
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
		FOR UPDATE OF ci
	`, cartID)
}

// GetLine returns a line of the given cart, or nil when it does not exist.
func (r *CartRepository) GetLine(ctx context.Context, q storage.DBTX, cartID, lineID string) (*domain.CartLine, error) {
	l, err := scanLine(q.QueryRowContext(ctx, lineSelect+`
		WHERE ci.cart_id = $1 AND ci.id = $2
	`, cartID, lineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// LineQuantity returns how many units of productID the cart holds already.
func (r *CartRepository) LineQuantity(ctx context.Context, tx *sql.Tx, cartID, productID string) (int, error) {
	var qty int
	err := tx.QueryRowContext(ctx, `
		SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`, cartID, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

// UpsertLine adds quantity units of productID, merging into an existing line
// for the same product. It returns the line id.
func (r *CartRepository) UpsertLine(ctx context.Context, tx *sql.Tx, cartID, productID string, quantity int) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id
	`, uuid.New().String(), cartID, productID, quantity).Scan(&id)
	return id, err
}

func (r *CartRepository) SetQuantity(ctx context.Context, tx *sql.Tx, lineID string, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, lineID, quantity)
	return err
}

// MoveLine reassigns a line to another cart.
func (r *CartRepository) MoveLine(ctx context.Context, tx *sql.Tx, lineID, cartID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET cart_id = $2, updated_at = NOW() WHERE id = $1
	`, lineID, cartID)
	return err
}

// DeleteLine removes a line from the cart, reporting whether it existed.
func (r *CartRepository) DeleteLine(ctx context.Context, q storage.DBTX, cartID, lineID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND id = $2
	`, cartID, lineID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *CartRepository) ClearLines(ctx context.Context, q storage.DBTX, cartID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// DeleteCart removes the cart and, through the foreign key, its lines.
func (r *CartRepository) DeleteCart(ctx context.Context, tx *sql.Tx, cartID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}
