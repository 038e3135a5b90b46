package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/storage"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, price, discount_price, stock, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		discount decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &discount, &p.Stock, &p.Active); err != nil {
		return domain.Product{}, err
	}
	if discount.Valid {
		p.DiscountPrice = &discount.Decimal
	}
	return p, nil
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Get returns the product with id, or nil when it does not exist. Inactive
// products are returned too; callers decide whether they may be sold.
func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, r.db, id)
}

func (r *ProductRepository) GetTx(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error) {
	return r.get(ctx, tx, id)
}

func (r *ProductRepository) get(ctx context.Context, q storage.DBTX, id string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// LockForUpdate takes row locks on the given products in id order, which keeps
// concurrent checkouts from deadlocking on each other.
func (r *ProductRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Product, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	locked := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		locked[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locked, nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, tx *sql.Tx, id string, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrInsufficientStock)
	}

	return nil
}

func (r *ProductRepository) RestoreStock(ctx context.Context, tx *sql.Tx, id string, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("restore stock for product %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
