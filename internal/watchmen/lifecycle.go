package watchmen

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
)

// Start marks the service running and schedules its first check with no
// delay. Starting a running service is a no-op.
func (w *Watchmen) Start(id domain.ServiceID) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Close sets closed before stopping services, so either this check fails
	// or Close's StopAll stops what is scheduled here.
	if w.closed.Load() {
		return fmt.Errorf("%w: start %q", ErrClosed, id)
	}
	if e.state == domain.StateRunning {
		return nil
	}
	e.state = domain.StateRunning
	e.gen++
	gen := e.gen
	w.sched.Schedule(id, 0, func() { w.launch(e, gen) })

	w.log.Info("watchmen_service_started", zap.String("service_id", string(id)))
	return nil
}

// Stop marks the service stopped and cancels its pending check. A check that
// is already in flight completes but is not rescheduled.
func (w *Watchmen) Stop(id domain.ServiceID) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.StateStopped {
		return nil
	}
	e.state = domain.StateStopped
	w.sched.Cancel(id)

	w.log.Info("watchmen_service_stopped", zap.String("service_id", string(id)))
	return nil
}

// StartAll starts every registered service.
func (w *Watchmen) StartAll() error {
	var errs error
	for _, id := range w.order {
		errs = multierr.Append(errs, w.Start(id))
	}
	return errs
}

// StopAll stops every registered service.
func (w *Watchmen) StopAll() error {
	var errs error
	for _, id := range w.order {
		errs = multierr.Append(errs, w.Stop(id))
	}
	return errs
}

// Running reports whether the service is running.
func (w *Watchmen) Running(id domain.ServiceID) (bool, error) {
	e, err := w.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == domain.StateRunning, nil
}
