package gateway

import (
	"context"
	"net/http"
)

// Request headers passed through to the upstream service. Identity headers
// are never among them: the gateway sets those itself.
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	"X-Requested-With",
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

// NewServiceProxy forwards to baseURL. Redirects from upstream are returned
// to the caller instead of being followed.
func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &ServiceProxy{
		baseURL: baseURL,
		client:  &c,
	}
}

// ForwardRequest replays r against path on the upstream, keeping the query
// string. headers are added on top of the passed-through ones.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string, headers http.Header) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	for name, values := range headers {
		req.Header[name] = values
	}

	return p.client.Do(req)
}
