// Package cart keeps each shopper's cart: one line per product, quantities
// bounded by stock, and totals computed from live product prices.
package cart

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/pricing"
	"github.com/joao-fontenele/shopflow/internal/storage"
)

type ProductLookup interface {
	GetTx(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error)
}

type Service struct {
	db       *sql.DB
	carts    *CartRepository
	products ProductLookup
	logger   *slog.Logger
}

func NewService(db *sql.DB, carts *CartRepository, products ProductLookup, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

// Summary is a priced snapshot of a cart.
type Summary struct {
	CartID    string            `json:"cart_id,omitempty"`
	Lines     []domain.CartLine `json:"lines"`
	LineCount int               `json:"line_count"`
	ItemCount int               `json:"item_count"`
	Totals    pricing.Totals    `json:"totals"`
}

func summarize(cartID string, lines []domain.CartLine) *Summary {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return &Summary{
		CartID:    cartID,
		Lines:     lines,
		LineCount: len(lines),
		ItemCount: count,
		Totals:    pricing.ComputeTotals(lines),
	}
}

// AddItem puts quantity units of productID in the owner's cart, creating the
// cart if needed. The cumulative quantity for the product may not exceed its
// stock.
func (s *Service) AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int) (*domain.CartLine, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}

	var line *domain.CartLine
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		product, err := s.products.GetTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil || !product.Active {
			return fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}

		cartID, err := s.carts.GetOrCreateCart(ctx, tx, owner)
		if err != nil {
			return err
		}

		existing, err := s.carts.LineQuantity(ctx, tx, cartID, productID)
		if err != nil {
			return err
		}
		if existing+quantity > product.Stock {
			return fmt.Errorf("product %s has %d in stock, cart would hold %d: %w",
				productID, product.Stock, existing+quantity, domain.ErrInsufficientStock)
		}

		lineID, err := s.carts.UpsertLine(ctx, tx, cartID, productID, quantity)
		if err != nil {
			return err
		}

		line, err = s.carts.GetLine(ctx, tx, cartID, lineID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart item added",
		"owner", owner.String(),
		"product_id", productID,
		"quantity", line.Quantity,
	)
	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line, in which case the returned line is nil.
func (s *Service) UpdateQuantity(ctx context.Context, owner domain.Owner, lineID string, quantity int) (*domain.CartLine, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var line *domain.CartLine
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		cartID, err := s.carts.FindCartID(ctx, tx, owner)
		if err != nil {
			return err
		}
		if cartID == "" {
			return fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
		}

		current, err := s.carts.GetLine(ctx, tx, cartID, lineID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
		}

		if quantity <= 0 {
			_, err := s.carts.DeleteLine(ctx, tx, cartID, lineID)
			return err
		}

		if quantity > current.Stock {
			return fmt.Errorf("product %s has %d in stock, requested %d: %w",
				current.ProductID, current.Stock, quantity, domain.ErrInsufficientStock)
		}

		if err := s.carts.SetQuantity(ctx, tx, lineID, quantity); err != nil {
			return err
		}
		current.Quantity = quantity
		line = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart item updated", "owner", owner.String(), "line_id", lineID, "quantity", quantity)
	return line, nil
}

func (s *Service) RemoveItem(ctx context.Context, owner domain.Owner, lineID string) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	cartID, err := s.carts.FindCartID(ctx, s.db, owner)
	if err != nil {
		return err
	}
	if cartID == "" {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}

	removed, err := s.carts.DeleteLine(ctx, s.db, cartID, lineID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}

	s.logger.Info("cart item removed", "owner", owner.String(), "line_id", lineID)
	return nil
}

// Clear empties the owner's cart. Clearing a missing cart is a no-op.
func (s *Service) Clear(ctx context.Context, owner domain.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	cartID, err := s.carts.FindCartID(ctx, s.db, owner)
	if err != nil || cartID == "" {
		return err
	}

	if err := s.carts.ClearLines(ctx, s.db, cartID); err != nil {
		return err
	}

	s.logger.Info("cart cleared", "owner", owner.String())
	return nil
}

// Merge folds the src cart into dst, summing quantities of shared products,
// and deletes src. Used when an anonymous shopper signs in.
func (s *Service) Merge(ctx context.Context, dst, src domain.Owner) error {
	if err := dst.Validate(); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if dst == src {
		return nil
	}

	moved := 0
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		srcID, err := s.carts.FindCartID(ctx, tx, src)
		if err != nil || srcID == "" {
			return err
		}

		srcLines, err := s.carts.LockLines(ctx, tx, srcID)
		if err != nil {
			return err
		}

		dstID, err := s.carts.GetOrCreateCart(ctx, tx, dst)
		if err != nil {
			return err
		}

		for _, l := range srcLines {
			existing, err := s.carts.LineQuantity(ctx, tx, dstID, l.ProductID)
			if err != nil {
				return err
			}
			if existing > 0 {
				if _, err := s.carts.UpsertLine(ctx, tx, dstID, l.ProductID, l.Quantity); err != nil {
					return err
				}
			} else if err := s.carts.MoveLine(ctx, tx, l.ID, dstID); err != nil {
				return err
			}
			moved++
		}

		return s.carts.DeleteCart(ctx, tx, srcID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("carts merged", "from", src.String(), "into", dst.String(), "lines", moved)
	return nil
}

// Summary prices the owner's cart. An owner without a cart gets an empty
// summary.
func (s *Service) Summary(ctx context.Context, owner domain.Owner) (*Summary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cartID, err := s.carts.FindCartID(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}
	if cartID == "" {
		return summarize("", []domain.CartLine{}), nil
	}

	lines, err := s.carts.Lines(ctx, s.db, cartID)
	if err != nil {
		return nil, err
	}
	return summarize(cartID, lines), nil
}
