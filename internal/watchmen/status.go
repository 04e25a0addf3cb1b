package watchmen

import (
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
)

// Status is a point-in-time view of one service.
type Status struct {
	Service   domain.Service      `json:"service"`
	State     domain.State        `json:"state"`
	NextCheck *time.Time          `json:"next_check,omitempty"`
	LastCheck *domain.ProbeResult `json:"last_check,omitempty"`
	LastEvent events.Kind         `json:"last_event,omitempty"`
}

func (w *Watchmen) Status(id domain.ServiceID) (Status, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return w.status(e), nil
}

// Services returns the status of every service in registration order.
func (w *Watchmen) Services() []Status {
	out := make([]Status, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.status(w.services[id]))
	}
	return out
}

func (w *Watchmen) status(e *entry) Status {
	e.mu.Lock()
	st := Status{
		Service:   e.svc,
		State:     e.state,
		LastEvent: e.lastEvent,
	}
	if e.last != nil {
		last := *e.last
		st.LastCheck = &last
	}
	e.mu.Unlock()

	if due, ok := w.sched.Due(e.svc.ID); ok {
		st.NextCheck = &due
	}
	return st
}
