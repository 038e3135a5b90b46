package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func TestOwnerFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		session string
		want    domain.Owner
		wantErr bool
	}{
		{name: "user wins over session", user: "u1", session: "s1", want: domain.UserOwner("u1")},
		{name: "session only", session: "s1", want: domain.SessionOwner("s1")},
		{name: "neither", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.user != "" {
				r.Header.Set(HeaderUserID, tt.user)
			}
			if tt.session != "" {
				r.Header.Set(HeaderSessionID, tt.session)
			}

			got, err := OwnerFromRequest(r)
			if tt.wantErr {
				if err != domain.ErrAuthRequired {
					t.Fatalf("expected ErrAuthRequired, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	if WantsJSON(r) {
		t.Error("plain form post should not want json")
	}

	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	if !WantsJSON(r) {
		t.Error("xhr should want json")
	}

	r = httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	r.Header.Set("Accept", "application/json, text/plain")
	if !WantsJSON(r) {
		t.Error("accept header should want json")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		ok     bool
	}{
		{domain.NewValidationError("quantity", "must be at least 1"), http.StatusBadRequest, true},
		{fmt.Errorf("product x: %w", domain.ErrInsufficientStock), http.StatusConflict, true},
		{fmt.Errorf("line: %w", domain.ErrNotFound), http.StatusNotFound, true},
		{domain.ErrAuthRequired, http.StatusUnauthorized, true},
		{domain.ErrEmptyCart, http.StatusConflict, true},
		{fmt.Errorf("dial tcp: refused"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		status, message, ok := Classify(tt.err)
		if status != tt.status || ok != tt.ok {
			t.Errorf("Classify(%v) = %d, %v; want %d, %v", tt.err, status, ok, tt.status, tt.ok)
		}
		if strings.Contains(message, "refused") {
			t.Errorf("message leaks error text: %q", message)
		}
	}
}

func TestRedirect(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	rec := httptest.NewRecorder()

	Redirect(rec, r, "/cart", "error", "not enough stock")

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Query().Get("message") != "not enough stock" || loc.Query().Get("level") != "error" {
		t.Errorf("unexpected query %q", loc.RawQuery)
	}
}

func TestFormInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("quantity=abc"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := FormInt(r, "quantity", 1); err == nil {
		t.Error("expected error for non-numeric quantity")
	}
	if n, err := FormInt(r, "missing", 1); err != nil || n != 1 {
		t.Errorf("expected default 1, got %d, %v", n, err)
	}
}

func TestRequiredFormInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("quantity=0"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if n, err := RequiredFormInt(r, "quantity"); err != nil || n != 0 {
		t.Errorf("expected explicit 0, got %d, %v", n, err)
	}

	_, err := RequiredFormInt(r, "missing")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["missing"] == "" {
		t.Errorf("expected validation error for missing field, got %v", err)
	}
}
