package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// WantsJSON reports whether the caller expects a structured response instead
// of a redirect.
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return IsJSONBody(r)
}

func IsJSONBody(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Redirect sends a 303 to target carrying a flash message for the page that
// renders it.
func Redirect(w http.ResponseWriter, r *http.Request, target, level, message string) {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	if message != "" {
		q.Set("message", message)
		q.Set("level", level)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// Classify maps a service error to an HTTP status and a message that is safe
// to show to the end user. ok is false for unexpected errors.
func Classify(err error) (status int, message string, ok bool) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "please correct the highlighted fields", true
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized, "please sign in to continue", true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "the requested item no longer exists", true
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "not enough stock for the requested quantity", true
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict, "your cart is empty", true
	case errors.Is(err, domain.ErrCannotCancel):
		return http.StatusConflict, "this order can no longer be cancelled", true
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "the order cannot move to that status", true
	}
	return http.StatusInternalServerError, "something went wrong, please try again", false
}

// WriteError answers a failed request. Business-rule errors become a user
// message; anything else is logged and hidden behind a generic message.
// fallback is the redirect target for non-JSON callers.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string, attrs ...any) {
	status, message, ok := Classify(err)
	if !ok {
		logger.Error("request failed", append([]any{"error", err, "method", r.Method, "path", r.URL.Path}, attrs...)...)
	}

	if !WantsJSON(r) {
		Redirect(w, r, fallback, "error", message)
		return
	}

	resp := errorResponse{Success: false, Error: message}
	if !ok {
		resp.Error = "internal server error"
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	WriteJSON(w, logger, status, resp)
}
