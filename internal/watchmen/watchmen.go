// Package watchmen is the monitoring engine: it owns the service registry,
// runs check cycles on a per-service schedule and broadcasts the outcome of
// every check as events.
package watchmen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/outage"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/repo"
	"github.com/hamed0406/watchmen/internal/scheduler"
)

var (
	// ErrInvalidServiceID is returned when a lifecycle call names a missing,
	// empty or unknown service.
	ErrInvalidServiceID   = errors.New("invalid service id")
	ErrDuplicateServiceID = errors.New("duplicate service id")
	ErrInvalidService     = errors.New("invalid service")
	// ErrClosed is returned by Start and StartAll once Close has been called.
	ErrClosed = errors.New("watchmen closed")
)

// Service is a monitored service together with the prober that checks it.
type Service struct {
	domain.Service
	Prober probe.Prober
}

// Task asks for one check. A non-zero Timestamp overrides the recorded check
// start time.
type Task struct {
	ServiceID domain.ServiceID
	Timestamp time.Time
}

type Option func(*Watchmen)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watchmen) {
		if l != nil {
			w.log = l
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(w *Watchmen) {
		if c != nil {
			w.clock = c
		}
	}
}

type Watchmen struct {
	log     *zap.Logger
	clock   clock.Clock
	tracker *outage.Tracker
	sched   *scheduler.Scheduler
	bus     *events.Bus

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	order    []domain.ServiceID
	services map[domain.ServiceID]*entry
}

// entry is the engine-side record of a service. state and gen are only
// changed by the lifecycle methods.
type entry struct {
	svc    domain.Service
	prober probe.Prober

	mu        sync.Mutex
	state     domain.State
	gen       uint64
	last      *domain.ProbeResult
	lastEvent events.Kind

	// cycle serialises check cycles so a service never has two checks in
	// flight, even across Stop and Start.
	cycle sync.Mutex
}

// New indexes services by id and wires the outage store. Nothing is started.
// A nil store behaves as if no outage is ever open.
func New(services []Service, store repo.OutageStore, opts ...Option) (*Watchmen, error) {
	w := &Watchmen{
		log:      zap.NewNop(),
		clock:    clock.New(),
		services: make(map[domain.ServiceID]*entry, len(services)),
	}
	for _, o := range opts {
		o(w)
	}
	w.tracker = outage.NewTracker(store, w.clock)
	w.sched = scheduler.New(w.log, w.clock)
	w.bus = events.NewBus(w.log)
	w.ctx, w.cancel = context.WithCancel(context.Background())

	for _, s := range services {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := w.services[s.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateServiceID, s.ID)
		}
		svc := s.Service
		if svc.FailureInterval <= 0 {
			svc.FailureInterval = svc.Interval
		}
		w.services[s.ID] = &entry{svc: svc, prober: s.Prober}
		w.order = append(w.order, s.ID)
	}
	return w, nil
}

func validate(s Service) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidServiceID)
	case s.Prober == nil:
		return fmt.Errorf("%w %q: no prober", ErrInvalidService, s.ID)
	case s.Interval <= 0:
		return fmt.Errorf("%w %q: interval must be positive", ErrInvalidService, s.ID)
	case s.FailureInterval < 0 || s.WarningThreshold < 0:
		return fmt.Errorf("%w %q: negative duration", ErrInvalidService, s.ID)
	}
	return nil
}

// On subscribes l to events of kind. Listeners run synchronously on the check
// cycle; failures and panics are logged and isolated.
func (w *Watchmen) On(kind events.Kind, l events.Listener) {
	w.bus.On(kind, l)
}

// OnAny subscribes f to every event kind until remove is called.
func (w *Watchmen) OnAny(f func(events.Event)) (remove func()) {
	return w.bus.OnAny(f)
}

// Close stops every service and cancels in-flight checks. The engine cannot
// be started again; Ping keeps working with the caller's context.
func (w *Watchmen) Close() error {
	w.closed.Store(true)
	err := w.StopAll()
	w.cancel()
	return err
}

func (w *Watchmen) lookup(id domain.ServiceID) (*entry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidServiceID)
	}
	e, ok := w.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceID, id)
	}
	return e, nil
}
