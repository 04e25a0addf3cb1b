package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
)

// Retry re-runs Inner until it passes or Attempts is exhausted. This is a
// prober policy; the engine itself never retries a check.
type Retry struct {
	Inner    Prober
	Attempts int
	Backoff  time.Duration
}

func NewRetry(inner Prober, attempts int, backoff time.Duration) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	return &Retry{Inner: inner, Attempts: attempts, Backoff: backoff}
}

func (r *Retry) Check(ctx context.Context, svc domain.Service) Response {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Response
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, svc)
		if last.Err == nil {
			return last
		}
		if i < attempts-1 && r.Backoff > 0 {
			select {
			case <-ctx.Done():
				last.Err = fmt.Errorf("%w (retry aborted: %v)", last.Err, ctx.Err())
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		last.Err = fmt.Errorf("%w (after %d attempts)", last.Err, attempts)
	}
	return last
}
