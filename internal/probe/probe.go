package probe

import (
	"context"

	"github.com/hamed0406/watchmen/internal/domain"
)

// Response is the raw outcome of one probe attempt. A non-nil Err marks the
// service as failing; the engine measures latency itself.
type Response struct {
	Err        error
	Body       string
	StatusCode int
}

// Prober performs a single health check against a service.
//
// Timeouts are the prober's business: the engine waits for Check to return.
type Prober interface {
	Check(ctx context.Context, svc domain.Service) Response
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, svc domain.Service) Response

func (f ProberFunc) Check(ctx context.Context, svc domain.Service) Response { return f(ctx, svc) }

// ForKind returns the prober for a service kind, or nil if the kind is unknown.
func ForKind(kind string, h *HTTPProber) Prober {
	switch kind {
	case "", "http", "https":
		return h
	case "dns":
		return NewDNSProber()
	case "http+dns":
		return NewAll(h, NewDNSProber())
	}
	return nil
}
