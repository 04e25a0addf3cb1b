// Package history persists ping events as check results.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/repo"
)

type Subscriber interface {
	On(kind events.Kind, l events.Listener)
}

// Recorder appends one CheckResult per ping event.
type Recorder struct {
	Results repo.ResultStore
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewRecorder(rs repo.ResultStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{Results: rs, Logger: logger, Timeout: 5 * time.Second}
}

func (r *Recorder) Register(s Subscriber) {
	s.On(events.Ping, r.onPing)
}

func (r *Recorder) onPing(svc domain.Service, p events.Payload) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	cr := domain.NewCheckResult(svc.ID, domain.ProbeResult{
		Err:        p.Error,
		StatusCode: p.StatusCode,
		Latency:    p.ElapsedTime,
		Timestamp:  p.Timestamp,
	})
	if err := r.Results.Append(ctx, &cr); err != nil {
		r.Logger.Warn("history_append_error",
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
