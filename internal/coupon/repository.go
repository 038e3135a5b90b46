package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindByCodeForUpdate loads and row-locks the coupon so the usage counter can
// be checked and incremented within the same transaction. It returns nil when
// no coupon has that code.
func (r *CouponRepository) FindByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*domain.Coupon, error) {
	var (
		c           domain.Coupon
		maxDiscount decimal.NullDecimal
	)

	err := tx.QueryRowContext(ctx, `
		SELECT code, description, discount_percent, max_discount_amount, min_order_amount,
		       valid_from, valid_to, max_uses, used_count, is_active
		FROM coupons
		WHERE code = $1
		FOR UPDATE
	`, normalize(code)).Scan(
		&c.Code, &c.Description, &c.DiscountPercent, &maxDiscount, &c.MinOrderAmount,
		&c.ValidFrom, &c.ValidTo, &c.MaxUses, &c.UsedCount, &c.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}
	return &c, nil
}

func (r *CouponRepository) IncrementUsage(ctx context.Context, tx *sql.Tx, code string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE code = $1 AND used_count < max_uses
	`, normalize(code))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("coupon %s usage limit reached", normalize(code))
	}

	return nil
}
