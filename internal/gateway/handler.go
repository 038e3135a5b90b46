// Package gateway is the public edge: it issues guest session cookies and
// proxies storefront routes to the shop service.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/web"
)

// Response headers copied back from upstream.
var returnedHeaders = []string{
	"Content-Type",
	"Location",
	"Set-Cookie",
}

type Handler struct {
	shopProxy  *ServiceProxy
	sessions   *Sessions
	userHeader string
	logger     *slog.Logger
}

type HandlerOption func(*Handler)

// WithUserHeader names the request header carrying the signed-in user id, as
// set by the authenticating proxy in front of the gateway. Without it every
// request reaches the shop as a guest.
func WithUserHeader(name string) HandlerOption {
	return func(h *Handler) {
		h.userHeader = http.CanonicalHeaderKey(name)
	}
}

func NewHandler(shopProxy *ServiceProxy, sessions *Sessions, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		shopProxy: shopProxy,
		sessions:  sessions,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleShop forwards the request unchanged in path, attaching the session
// and user identity. Client-supplied X-Session-ID and X-User-ID headers are
// never trusted.
func (h *Handler) HandleShop(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.Ensure(w, r)

	headers := http.Header{}
	headers.Set(web.HeaderSessionID, sessionID)
	if h.userHeader != "" {
		if userID := strings.TrimSpace(r.Header.Get(h.userHeader)); userID != "" {
			headers.Set(web.HeaderUserID, userID)
		}
	}

	h.proxyRequest(w, r, h.shopProxy, r.URL.Path, headers)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string, headers http.Header) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path, headers)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		for _, v := range resp.Header.Values(name) {
			w.Header().Add(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
