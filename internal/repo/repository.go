package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
)

// ErrNoOpenOutage is returned by UpdateOutage and CloseOutage when the service
// has no open outage.
var ErrNoOpenOutage = errors.New("no open outage")

// OutageStore is the engine's only persistence dependency. It is the source of
// truth for whether a service has an open outage. Implementations must be safe
// for concurrent calls on different service ids.
type OutageStore interface {
	// ReadOpenOutage returns nil, nil when no outage is open.
	ReadOpenOutage(ctx context.Context, id domain.ServiceID) (*domain.Outage, error)
	OpenOutage(ctx context.Context, id domain.ServiceID, start time.Time, errText string) error
	UpdateOutage(ctx context.Context, id domain.ServiceID, errText string) error
	// CloseOutage records downtime, marks the outage closed and returns it.
	CloseOutage(ctx context.Context, id domain.ServiceID, downtime time.Duration) (*domain.Outage, error)
}

// OutageLister is implemented by stores that keep closed outages.
type OutageLister interface {
	ListOutages(ctx context.Context, id domain.ServiceID, limit int) ([]domain.Outage, error)
}

// ResultStore keeps ping history.
type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// Latest returns the most recent result per service.
	Latest(ctx context.Context) ([]domain.CheckResult, error)
}

// Nop is an OutageStore with no backing store: no outage is ever open.
type Nop struct{}

func (Nop) ReadOpenOutage(context.Context, domain.ServiceID) (*domain.Outage, error) {
	return nil, nil
}

func (Nop) OpenOutage(context.Context, domain.ServiceID, time.Time, string) error { return nil }

func (Nop) UpdateOutage(context.Context, domain.ServiceID, string) error { return nil }

func (Nop) CloseOutage(context.Context, domain.ServiceID, time.Duration) (*domain.Outage, error) {
	return nil, ErrNoOpenOutage
}
