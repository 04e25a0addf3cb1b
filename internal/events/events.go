package events

import (
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
)

type Kind string

const (
	Ping           Kind = "ping"
	NewOutage      Kind = "new-outage"
	CurrentOutage  Kind = "current-outage"
	ServiceOK      Kind = "service-ok"
	ServiceBack    Kind = "service-back"
	LatencyWarning Kind = "latency-warning"
)

// Kinds lists every event kind in emission-priority order.
var Kinds = []Kind{NewOutage, CurrentOutage, ServiceBack, ServiceOK, LatencyWarning, Ping}

// Payload is the data attached to an event. Which fields are set depends on
// the kind:
//
//	new-outage, current-outage  Error, Timestamp (start of the outage)
//	service-back                Outage (the closed record), Timestamp
//	service-ok                  ElapsedTime, Body
//	latency-warning             ElapsedTime
//	ping                        ElapsedTime, Error, Body, StatusCode, Timestamp (check start)
type Payload struct {
	Error       string         `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	ElapsedTime time.Duration  `json:"elapsed_time,omitempty"`
	Body        string         `json:"body,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	Outage      *domain.Outage `json:"outage,omitempty"`
}

// Event is a kind plus its payload, addressed to one service.
type Event struct {
	Kind    Kind           `json:"kind"`
	Service domain.Service `json:"service"`
	Payload Payload        `json:"payload"`
}

// Listener observes events. A returned error is logged and does not affect
// other listeners.
type Listener func(svc domain.Service, p Payload) error
