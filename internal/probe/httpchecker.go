package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
)

// bodyLimit caps how much of a response body is kept for events.
const bodyLimit = 4 << 10

type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{Timeout: timeout},
	}
}

// Check issues a GET against svc.Target. Any transport error or a status
// outside 2xx/3xx is reported as a failure.
func (h *HTTPProber) Check(ctx context.Context, svc domain.Service) Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.Target, nil)
	if err != nil {
		return Response{Err: err}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Response{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	out := Response{Body: string(body), StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		out.Err = fmt.Errorf("unexpected status %s", resp.Status)
	}
	return out
}
