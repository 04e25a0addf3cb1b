package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
)

type AlertKind string

const (
	AlertDown      AlertKind = "down"
	AlertRecovered AlertKind = "recovered"
)

// Alert is one outage notification. Since is when the outage started;
// Downtime is only set on recovery.
type Alert struct {
	Kind     AlertKind
	Service  domain.Service
	Error    string
	Since    time.Time
	Downtime time.Duration
}

func (a Alert) Title() string {
	if a.Kind == AlertRecovered {
		return "🟢 Service RECOVERED"
	}
	return "🔴 Service DOWN"
}

// Text is the plain-text body used by channels without rich formatting.
func (a Alert) Text() string {
	since := "unknown"
	if !a.Since.IsZero() {
		since = a.Since.UTC().Format(time.RFC3339)
	}
	if a.Kind == AlertRecovered {
		return fmt.Sprintf("Service: %s\nTarget: %s\nDown since: %s\nDowntime: %s",
			displayName(a.Service), a.Service.Target, since, a.downtime())
	}
	return fmt.Sprintf("Service: %s\nTarget: %s\nError: %s\nSince: %s",
		displayName(a.Service), a.Service.Target, a.Error, since)
}

func (a Alert) downtime() string {
	if a.Downtime <= 0 {
		return "n/a"
	}
	return a.Downtime.Round(time.Second).String()
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Notify(ctx, a))
	}
	return errs
}

// Log writes alerts to a logger. It is the fallback when no other
// channel is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("alert", string(a.Kind)),
		zap.String("service_id", string(a.Service.ID)),
		zap.String("target", a.Service.Target),
		zap.Time("since", a.Since),
	}
	if a.Kind == AlertRecovered {
		fields = append(fields, zap.Duration("downtime", a.Downtime))
	} else {
		fields = append(fields, zap.String("error", a.Error))
	}
	l.Logger.Info("outage_alert", fields...)
	return nil
}

func displayName(svc domain.Service) string {
	if svc.Name != "" {
		return svc.Name
	}
	return string(svc.ID)
}
