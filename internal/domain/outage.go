package domain

import "time"

// Outage is one continuous failure episode for a service.
//
// Timestamp is the start of the episode (the first failing check), Error is the
// last observed error and Downtime is only set once the outage is closed.
type Outage struct {
	ID        string        `json:"id"`
	ServiceID ServiceID     `json:"service_id"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error"`
	Downtime  time.Duration `json:"downtime,omitempty"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty"`
}

func (o *Outage) Open() bool { return o != nil && o.ClosedAt == nil }
