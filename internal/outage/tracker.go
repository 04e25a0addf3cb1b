// Package outage classifies check results against the open outage of a
// service and drives the open/update/close lifecycle in storage.
package outage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/repo"
)

type Mutation int

const (
	MutationNone Mutation = iota
	MutationOpen
	MutationUpdate
	MutationClose
)

func (m Mutation) String() string {
	switch m {
	case MutationOpen:
		return "open"
	case MutationUpdate:
		return "update"
	case MutationClose:
		return "close"
	default:
		return "none"
	}
}

// Emission is one event the engine must broadcast.
type Emission struct {
	Kind    events.Kind
	Payload events.Payload
}

// Decision is the outcome of classifying one check. Events are in emission
// order and always end with the ping event.
type Decision struct {
	Class    events.Kind
	Mutation Mutation
	Downtime time.Duration
	Warning  bool
	Events   []Emission
}

// Decide classifies res given the currently open outage (nil if none). It has
// no side effects.
func Decide(svc domain.Service, res domain.ProbeResult, current *domain.Outage, now time.Time) Decision {
	var d Decision

	switch {
	case res.Failed() && current == nil:
		d.Class = events.NewOutage
		d.Mutation = MutationOpen
		d.Events = append(d.Events, Emission{events.NewOutage, events.Payload{
			Error:     res.Err,
			Timestamp: res.Timestamp,
		}})

	case res.Failed():
		d.Class = events.CurrentOutage
		d.Mutation = MutationUpdate
		d.Events = append(d.Events, Emission{events.CurrentOutage, events.Payload{
			Error:     res.Err,
			Timestamp: current.Timestamp,
		}})

	case current != nil:
		d.Class = events.ServiceBack
		d.Mutation = MutationClose
		d.Downtime = now.Sub(current.Timestamp)
		closed := *current
		closedAt := now
		closed.Downtime = d.Downtime
		closed.ClosedAt = &closedAt
		d.Events = append(d.Events, Emission{events.ServiceBack, events.Payload{
			Error:     closed.Error,
			Timestamp: closed.Timestamp,
			Outage:    &closed,
		}})

	default:
		d.Class = events.ServiceOK
		d.Events = append(d.Events, Emission{events.ServiceOK, events.Payload{
			ElapsedTime: res.Latency,
			Body:        res.Body,
		}})
	}

	// Latency warnings only apply to successful checks.
	if !res.Failed() && res.Latency > svc.WarningThreshold {
		d.Warning = true
		d.Events = append(d.Events, Emission{events.LatencyWarning, events.Payload{
			ElapsedTime: res.Latency,
		}})
	}

	d.Events = append(d.Events, pingEmission(res))
	return d
}

func pingEmission(res domain.ProbeResult) Emission {
	return Emission{events.Ping, events.Payload{
		ElapsedTime: res.Latency,
		Error:       res.Err,
		Body:        res.Body,
		StatusCode:  res.StatusCode,
		Timestamp:   res.Timestamp,
	}}
}

// Outcome is a Decision after storage has been consulted and mutated.
type Outcome struct {
	Decision
	// OutageOpen reports whether the service should be treated as in outage
	// for scheduling purposes.
	OutageOpen bool
	// Err holds storage failures. The events are still valid to emit.
	Err error
}

// Tracker applies decisions against an OutageStore. It keeps no outage state
// of its own; every call round-trips through the store.
type Tracker struct {
	Store repo.OutageStore
	Clock clock.Clock
}

func NewTracker(store repo.OutageStore, clk clock.Clock) *Tracker {
	if store == nil {
		store = repo.Nop{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{Store: store, Clock: clk}
}

// Apply reads the open outage for svc, classifies res and performs the
// required storage mutation. If the open outage cannot be read, only the ping
// event is produced and the service is treated as in outage, since its state
// is unknown.
func (t *Tracker) Apply(ctx context.Context, svc domain.Service, res domain.ProbeResult) Outcome {
	current, err := t.Store.ReadOpenOutage(ctx, svc.ID)
	if err != nil {
		return Outcome{
			Decision:   Decision{Events: []Emission{pingEmission(res)}},
			OutageOpen: true,
			Err:        fmt.Errorf("read open outage %s: %w", svc.ID, err),
		}
	}

	d := Decide(svc, res, current, t.Clock.Now())
	out := Outcome{Decision: d, OutageOpen: res.Failed()}

	switch d.Mutation {
	case MutationOpen:
		if err := t.Store.OpenOutage(ctx, svc.ID, res.Timestamp, res.Err); err != nil {
			out.Err = multierr.Append(out.Err, fmt.Errorf("open outage %s: %w", svc.ID, err))
		}
	case MutationUpdate:
		if err := t.Store.UpdateOutage(ctx, svc.ID, res.Err); err != nil {
			out.Err = multierr.Append(out.Err, fmt.Errorf("update outage %s: %w", svc.ID, err))
		}
	case MutationClose:
		closed, err := t.Store.CloseOutage(ctx, svc.ID, d.Downtime)
		if err != nil {
			out.Err = multierr.Append(out.Err, fmt.Errorf("close outage %s: %w", svc.ID, err))
			// The close did not stick, so the outage is still open.
			out.OutageOpen = true
			break
		}
		if closed != nil {
			out.Events[0].Payload.Outage = closed
			out.Events[0].Payload.Timestamp = closed.Timestamp
		}
	}
	return out
}
