package domain

import "time"

type ServiceID string

// Service is the configuration of one monitored target. Target is opaque to the
// engine; Kind picks a prober when services are wired from config.
type Service struct {
	ID               ServiceID     `json:"id" yaml:"id"`
	Name             string        `json:"name,omitempty" yaml:"name"`
	Target           string        `json:"target" yaml:"target"`
	Kind             string        `json:"kind,omitempty" yaml:"kind"`
	Interval         time.Duration `json:"interval" yaml:"interval"`
	FailureInterval  time.Duration `json:"failure_interval" yaml:"failure_interval"`
	WarningThreshold time.Duration `json:"warning_threshold" yaml:"warning_threshold"`
}

// State is the lifecycle state of a service inside the engine.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
