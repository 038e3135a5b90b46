// Package orders turns carts into orders and manages them afterwards.
package orders

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/shopflow/internal/cart"
	"github.com/joao-fontenele/shopflow/internal/catalog"
	"github.com/joao-fontenele/shopflow/internal/coupon"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/pricing"
	"github.com/joao-fontenele/shopflow/internal/storage"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

var tracer = otel.Tracer("orders/checkout")

// Checkout stages, in order. A failed checkout reports the last stage it
// reached.
const (
	StageInitiated     = "initiated"
	StageValidated     = "validated"
	StagePriced        = "priced"
	StagePersisted     = "persisted"
	StageStockAdjusted = "stock_adjusted"
	StageCleared       = "cleared"
	StageNotified      = "notified"
	StageNotifySkipped = "notify_skipped"
	StageComplete      = "complete"
)

// defaultPublishTimeout bounds how long a committed order waits on the broker.
const defaultPublishTimeout = 2 * time.Second

// EventPublisher delivers order events after the order transaction commits.
// *messaging.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type CheckoutResult struct {
	Order    *domain.Order `json:"order"`
	Warnings []string      `json:"warnings,omitempty"`
}

type CheckoutService struct {
	db        *sql.DB
	orders    *OrderRepository
	carts     *cart.CartRepository
	products  *catalog.ProductRepository
	coupons   *coupon.CouponRepository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	publishTimeout time.Duration

	completed      metric.Int64Counter
	failed         metric.Int64Counter
	couponRejected metric.Int64Counter
}

// NewCheckoutService wires the checkout. publisher may be nil, in which case
// no events are sent.
func NewCheckoutService(
	db *sql.DB,
	orders *OrderRepository,
	carts *cart.CartRepository,
	products *catalog.ProductRepository,
	coupons *coupon.CouponRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) (*CheckoutService, error) {
	meter := otel.Meter("orders/checkout")

	completed, err := meter.Int64Counter("shop.checkout.completed",
		metric.WithDescription("Orders placed successfully"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("shop.checkout.failed",
		metric.WithDescription("Checkouts that did not produce an order, by stage reached"))
	if err != nil {
		return nil, err
	}
	couponRejected, err := meter.Int64Counter("shop.coupon.rejected",
		metric.WithDescription("Coupon codes that could not be applied"))
	if err != nil {
		return nil, err
	}

	return &CheckoutService{
		db:             db,
		orders:         orders,
		carts:          carts,
		products:       products,
		coupons:        coupons,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
		completed:      completed,
		failed:         failed,
		couponRejected: couponRejected,
	}, nil
}

// checkoutRun tracks one checkout attempt through its stages.
type checkoutRun struct {
	ctx   context.Context
	span  trace.Span
	stage string
}

func (c *checkoutRun) advance(stage string) {
	c.stage = stage
	c.span.AddEvent(stage)
}

// Checkout converts the owner's cart into a confirmed order. Validation,
// pricing, persistence, stock adjustment and cart clearing happen in one
// transaction; the confirmation event is sent after commit and its failure
// does not fail the checkout.
func (s *CheckoutService) Checkout(ctx context.Context, owner domain.Owner, req domain.CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "checkout",
		trace.WithAttributes(attribute.String("shop.user_id", owner.UserID)))
	defer span.End()

	run := &checkoutRun{ctx: ctx, span: span}
	run.advance(StageInitiated)

	if !owner.Authenticated() {
		return nil, s.fail(run, domain.ErrAuthRequired)
	}
	if err := validation.Struct(req); err != nil {
		return nil, s.fail(run, err)
	}

	result := &CheckoutResult{}
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		lines, cartID, err := s.lockCart(ctx, tx, owner)
		if err != nil {
			return err
		}
		run.advance(StageValidated)

		totals := pricing.ComputeTotals(lines)
		couponCode := ""
		if req.CouponCode != "" {
			discount, code, warning, err := s.applyCoupon(ctx, tx, req.CouponCode, totals.Subtotal)
			if err != nil {
				return err
			}
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
			totals = pricing.ApplyDiscount(totals, discount)
			couponCode = code
		}
		run.advance(StagePriced)

		address := req.Shipping.Text()
		order := &domain.Order{
			UserID:          owner.UserID,
			Email:           req.Shipping.Email,
			Status:          domain.OrderStatusConfirmed,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: address,
			BillingAddress:  address,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			ShippingCharge:  totals.Shipping,
			Discount:        totals.Discount,
			Total:           totals.Total,
			CouponCode:      couponCode,
			Lines:           make([]domain.OrderLine, 0, len(lines)),
		}
		for _, l := range lines {
			order.Lines = append(order.Lines, domain.OrderLine{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
			})
		}

		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if couponCode != "" {
			if err := s.coupons.IncrementUsage(ctx, tx, couponCode); err != nil {
				return err
			}
		}
		if req.SaveAddress {
			if err := s.orders.SaveAddress(ctx, tx, addressFrom(owner.UserID, req.Shipping)); err != nil {
				return fmt.Errorf("save address: %w", err)
			}
		}
		run.advance(StagePersisted)

		for _, l := range lines {
			if err := s.products.DecrementStock(ctx, tx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		run.advance(StageStockAdjusted)

		if err := s.carts.ClearLines(ctx, tx, cartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		run.advance(StageCleared)

		result.Order = order
		return nil
	})
	if err != nil {
		return nil, s.fail(run, err)
	}

	span.SetAttributes(
		attribute.String("shop.order_id", result.Order.ID),
		attribute.String("shop.order_number", result.Order.OrderNumber),
	)

	s.notify(ctx, run, domain.OrderEventConfirmed, result.Order)
	run.advance(StageComplete)
	s.completed.Add(ctx, 1)

	s.logger.Info("order placed",
		"order_id", result.Order.ID,
		"order_number", result.Order.OrderNumber,
		"user_id", owner.UserID,
		"total", result.Order.Total.StringFixed(2),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// lockCart loads the owner's cart lines and locks the products they reference
// in id order. Prices, names and stock come from the locked product rows.
func (s *CheckoutService) lockCart(ctx context.Context, tx *sql.Tx, owner domain.Owner) ([]domain.CartLine, string, error) {
	cartID, err := s.carts.FindCartID(ctx, tx, owner)
	if err != nil {
		return nil, "", err
	}
	if cartID == "" {
		return nil, "", domain.ErrEmptyCart
	}

	lines, err := s.carts.LockLines(ctx, tx, cartID)
	if err != nil {
		return nil, "", err
	}

	units := 0
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		units += l.Quantity
		ids = append(ids, l.ProductID)
	}
	if units == 0 {
		return nil, "", domain.ErrEmptyCart
	}
	sort.Strings(ids)

	products, err := s.products.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, "", err
	}

	for i := range lines {
		p, ok := products[lines[i].ProductID]
		if !ok || !p.Active {
			return nil, "", fmt.Errorf("product %s is no longer available: %w", lines[i].ProductID, domain.ErrNotFound)
		}
		if lines[i].Quantity > p.Stock {
			return nil, "", fmt.Errorf("product %s has %d in stock, cart holds %d: %w",
				p.ID, p.Stock, lines[i].Quantity, domain.ErrInsufficientStock)
		}
		lines[i].ProductName = p.Name
		lines[i].UnitPrice = p.EffectivePrice()
		lines[i].Stock = p.Stock
		lines[i].Active = p.Active
	}

	return lines, cartID, nil
}

// applyCoupon resolves a coupon code against the subtotal. A coupon that does
// not exist or does not apply yields a zero discount and a warning for the
// shopper rather than an error.
func (s *CheckoutService) applyCoupon(ctx context.Context, tx *sql.Tx, code string, subtotal decimal.Decimal) (decimal.Decimal, string, string, error) {
	c, err := s.coupons.FindByCodeForUpdate(ctx, tx, code)
	if err != nil {
		return decimal.Zero, "", "", err
	}

	if c == nil {
		s.couponRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown")))
		return decimal.Zero, "", fmt.Sprintf("Coupon %q does not exist and was not applied", code), nil
	}

	discount, ok := pricing.CouponDiscount(*c, subtotal, s.now())
	if !ok {
		s.couponRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "not_applicable")))
		return decimal.Zero, "", fmt.Sprintf("Coupon %q is not valid for this order and was not applied", c.Code), nil
	}

	return discount, c.Code, "", nil
}

func addressFrom(userID string, d domain.ShippingDetails) *domain.Address {
	return &domain.Address{
		UserID:     userID,
		FullName:   d.FullName(),
		Phone:      d.Phone,
		Line1:      d.AddressLine1,
		Line2:      d.AddressLine2,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		Country:    d.Country,
	}
}

func (s *CheckoutService) fail(run *checkoutRun, err error) error {
	run.span.RecordError(err)
	run.span.SetStatus(codes.Error, err.Error())
	s.failed.Add(run.ctx, 1, metric.WithAttributes(attribute.String("stage", run.stage)))
	s.logger.Warn("checkout failed", "stage", run.stage, "error", err)
	return err
}

// notify publishes an order event. Delivery problems are logged and never
// undo the committed order. The publish keeps ctx's values but not its
// cancellation, and gets its own short deadline.
func (s *CheckoutService) notify(ctx context.Context, run *checkoutRun, t domain.OrderEventType, order *domain.Order) {
	if s.publisher == nil {
		if run != nil {
			run.advance(StageNotifySkipped)
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	event := domain.NewOrderEvent(t, order, s.now().UTC())
	if err := s.publisher.Publish(pubCtx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order event",
			"error", err,
			"type", t,
			"order_id", order.ID,
		)
		if run != nil {
			run.advance(StageNotifySkipped)
		}
		return
	}

	if run != nil {
		run.advance(StageNotified)
	}
}
