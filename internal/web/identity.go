// Package web holds request-boundary helpers shared by the storefront
// handlers: identity headers, response negotiation and error mapping.
package web

import (
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// Identity headers are set by the gateway. Clients never set them directly.
const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

// OwnerFromRequest resolves the cart owner for r. An authenticated user wins
// over the anonymous session.
func OwnerFromRequest(r *http.Request) (domain.Owner, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID != "" {
		return domain.UserOwner(userID), nil
	}

	sessionID := strings.TrimSpace(r.Header.Get(HeaderSessionID))
	if sessionID != "" {
		return domain.SessionOwner(sessionID), nil
	}

	return domain.Owner{}, domain.ErrAuthRequired
}

// UserFromRequest returns the authenticated user id or ErrAuthRequired.
func UserFromRequest(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return "", domain.ErrAuthRequired
	}
	return userID, nil
}

func SessionFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderSessionID))
}
