package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testUserHeader = "X-Authenticated-User"

func newTestGateway(upstreamURL string, client *http.Client) *Handler {
	return NewHandler(
		NewServiceProxy(upstreamURL, client),
		NewSessions(false),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithUserHeader(testUserHeader),
	)
}

func TestHandler_HandleShop(t *testing.T) {
	t.Run("issues a session and forwards it upstream", func(t *testing.T) {
		var gotSession string
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/cart" {
				t.Errorf("expected /cart, got %s", r.URL.Path)
			}
			gotSession = r.Header.Get("X-Session-ID")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"item_count":0}`))
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("X-Session-ID", "spoofed")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if gotSession == "" || gotSession == "spoofed" {
			t.Errorf("expected gateway-issued session, got %q", gotSession)
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
			t.Fatalf("expected session cookie, got %v", cookies)
		}
		if cookies[0].Value != gotSession {
			t.Errorf("cookie %q does not match forwarded session %q", cookies[0].Value, gotSession)
		}
		if !cookies[0].HttpOnly {
			t.Error("expected HttpOnly session cookie")
		}
	})

	t.Run("drops a client-supplied user id", func(t *testing.T) {
		var gotUser string
		var sawUser bool
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = r.Header.Get("X-User-ID")
			_, sawUser = r.Header["X-User-Id"]
			w.WriteHeader(http.StatusOK)
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-User-ID", "victim-user")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if sawUser {
			t.Errorf("expected no X-User-ID upstream, got %q", gotUser)
		}
	})

	t.Run("trusted user header wins over a spoofed one", func(t *testing.T) {
		var gotUser string
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = r.Header.Get("X-User-ID")
			w.WriteHeader(http.StatusOK)
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-User-ID", "victim-user")
		req.Header.Set(testUserHeader, "user-7")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if gotUser != "user-7" {
			t.Errorf("expected X-User-ID user-7, got %q", gotUser)
		}
	})

	t.Run("without a configured user header everyone is a guest", func(t *testing.T) {
		var gotUser string
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = r.Header.Get("X-User-ID")
			w.WriteHeader(http.StatusOK)
		}))
		defer shop.Close()

		handler := NewHandler(
			NewServiceProxy(shop.URL, shop.Client()),
			NewSessions(false),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set(testUserHeader, "user-7")
		req.Header.Set("X-User-ID", "user-7")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if gotUser != "" {
			t.Errorf("expected no user upstream, got %q", gotUser)
		}
	})

	t.Run("reuses an existing session cookie", func(t *testing.T) {
		const session = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-Session-ID"); got != session {
				t.Errorf("expected session %s, got %s", session, got)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if len(rec.Result().Cookies()) != 0 {
			t.Error("expected no new cookie")
		}
	})

	t.Run("passes redirects through instead of following them", func(t *testing.T) {
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/cart/items" {
				t.Errorf("expected /cart/items, got %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "product_id=PROD-001&quantity=1" {
				t.Errorf("unexpected body: %s", body)
			}
			if r.Header.Get("X-User-ID") != "user-1" {
				t.Errorf("expected X-User-ID user-1, got %q", r.Header.Get("X-User-ID"))
			}
			http.Redirect(w, r, "/cart?message=added&level=success", http.StatusSeeOther)
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("product_id=PROD-001&quantity=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(testUserHeader, "user-1")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected status 303, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/cart?message=added&level=success" {
			t.Errorf("unexpected location %q", loc)
		}
	})

	t.Run("preserves downstream error status", func(t *testing.T) {
		shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":"your cart is empty"}`))
		}))
		defer shop.Close()

		handler := newTestGateway(shop.URL, shop.Client())

		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("returns 502 when shop service unavailable", func(t *testing.T) {
		handler := newTestGateway("http://localhost:99999", &http.Client{})

		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		rec := httptest.NewRecorder()

		handler.HandleShop(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}
