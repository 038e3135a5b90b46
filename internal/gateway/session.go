package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "sessionid"
	sessionMaxAge     = 14 * 24 * time.Hour
)

// Sessions hands out the anonymous session cookie that keys guest carts.
type Sessions struct {
	secure bool
}

func NewSessions(secure bool) *Sessions {
	return &Sessions{secure: secure}
}

// Ensure returns the caller's session id, issuing a new cookie on w when the
// request carries none.
func (s *Sessions) Ensure(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
