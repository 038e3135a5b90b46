package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

type fakeOrderService struct {
	orders    map[string]*domain.Order
	warnings  []string
	lastOwner domain.Owner
	lastReq   domain.CheckoutRequest
}

func newFakeOrderService() *fakeOrderService {
	return &fakeOrderService{orders: map[string]*domain.Order{
		"order-1": {
			ID:          "order-1",
			OrderNumber: "ORD-000001",
			UserID:      "user-1",
			Status:      domain.OrderStatusPending,
			Total:       decimal.NewFromInt(994),
		},
	}}
}

func (f *fakeOrderService) Checkout(ctx context.Context, owner domain.Owner, req domain.CheckoutRequest) (*CheckoutResult, error) {
	f.lastOwner = owner
	f.lastReq = req
	if !owner.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	order := &domain.Order{ID: "order-2", OrderNumber: "ORD-000002", UserID: owner.UserID, Status: domain.OrderStatusConfirmed}
	f.orders[order.ID] = order
	return &CheckoutResult{Order: order, Warnings: f.warnings}, nil
}

func (f *fakeOrderService) History(ctx context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderService) Detail(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderService) CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := f.Detail(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, domain.ErrCannotCancel
	}
	o.Status = domain.OrderStatusCancelled
	return o, nil
}

func (f *fakeOrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "is invalid")
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status.Terminal() || status == domain.OrderStatusCancelled {
		return nil, domain.ErrInvalidTransition
	}
	o.Status = status
	return o, nil
}

func newTestMux(svc OrderService) *http.ServeMux {
	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", h.HandleCheckout)
	mux.HandleFunc("GET /orders", h.HandleList)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("POST /orders/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("PATCH /orders/{id}/status", h.HandleUpdateStatus)
	return mux
}

func checkoutForm() url.Values {
	return url.Values{
		"first_name":     {"Asha"},
		"last_name":      {"Rao"},
		"email":          {"asha@example.com"},
		"phone":          {"9876543210"},
		"address_line1":  {"12 MG Road"},
		"city":           {"Pune"},
		"state":          {"MH"},
		"postal_code":    {"411001"},
		"country":        {"India"},
		"payment_method": {"cod"},
		"save_address":   {"on"},
	}
}

func TestHandler_HandleCheckout(t *testing.T) {
	t.Run("form checkout redirects to the order", func(t *testing.T) {
		svc := newFakeOrderService()
		mux := newTestMux(svc)

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutForm().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected status 303, got %d: %s", rec.Code, rec.Body.String())
		}
		loc, _ := url.Parse(rec.Header().Get("Location"))
		if loc.Path != "/orders/order-2" {
			t.Errorf("expected redirect to /orders/order-2, got %s", loc.Path)
		}
		if !strings.Contains(loc.Query().Get("message"), "ORD-000002") {
			t.Errorf("expected order number in message, got %q", loc.Query().Get("message"))
		}
		if !svc.lastReq.SaveAddress {
			t.Error("expected save_address to be parsed")
		}
		if svc.lastReq.Shipping.City != "Pune" {
			t.Errorf("expected city Pune, got %q", svc.lastReq.Shipping.City)
		}
	})

	t.Run("json checkout returns created order and warnings", func(t *testing.T) {
		svc := newFakeOrderService()
		svc.warnings = []string{`Coupon "NOPE" does not exist and was not applied`}
		mux := newTestMux(svc)

		body, _ := json.Marshal(map[string]any{
			"shipping": map[string]string{
				"first_name": "Asha", "last_name": "Rao", "email": "asha@example.com",
				"phone": "9876543210", "address_line1": "12 MG Road", "city": "Pune",
				"state": "MH", "postal_code": "411001", "country": "India",
			},
			"payment_method": "online",
			"coupon_code":    "NOPE",
		})
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Order == nil || resp.Order.OrderNumber != "ORD-000002" {
			t.Errorf("unexpected order %+v", resp.Order)
		}
		if len(resp.Warnings) != 1 {
			t.Errorf("expected one warning, got %v", resp.Warnings)
		}
	})

	t.Run("anonymous session cannot check out", func(t *testing.T) {
		mux := newTestMux(newFakeOrderService())

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutForm().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Session-ID", "sess-1")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("missing fields redirect back with an error", func(t *testing.T) {
		mux := newTestMux(newFakeOrderService())

		form := checkoutForm()
		form.Del("city")
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected status 303, got %d", rec.Code)
		}
		loc, _ := url.Parse(rec.Header().Get("Location"))
		if loc.Path != "/checkout" || loc.Query().Get("level") != "error" {
			t.Errorf("unexpected redirect %s", loc.String())
		}
	})
}

func TestHandler_HandleGet(t *testing.T) {
	mux := newTestMux(newFakeOrderService())

	t.Run("owner sees the order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("other users get 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
		req.Header.Set("X-User-ID", "user-2")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleCancel(t *testing.T) {
	svc := newFakeOrderService()
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/cancel", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.orders["order-1"].Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", svc.orders["order-1"].Status)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected second cancel to conflict, got %d", rec.Code)
	}
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "valid transition", body: `{"status":"shipped"}`, status: http.StatusOK},
		{name: "unknown status", body: `{"status":"teleported"}`, status: http.StatusBadRequest},
		{name: "cancel is not an admin transition", body: `{"status":"cancelled"}`, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(newFakeOrderService())

			req := httptest.NewRequest(http.MethodPatch, "/orders/order-1/status", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}
