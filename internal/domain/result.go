package domain

import "time"

// ProbeResult is the outcome of one check as seen by the engine. Latency is
// measured around the prober call, never taken from the prober itself.
type ProbeResult struct {
	Err        string        `json:"error,omitempty"`
	Body       string        `json:"body,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (r ProbeResult) Failed() bool { return r.Err != "" }

// CheckResult is one row of ping history.
type CheckResult struct {
	ServiceID  ServiceID `json:"service_id"`
	Up         bool      `json:"up"`
	HTTPStatus int       `json:"http_status,omitempty"`
	LatencyMS  float64   `json:"latency_ms"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// NewCheckResult flattens a probe result into a history row.
func NewCheckResult(id ServiceID, r ProbeResult) CheckResult {
	return CheckResult{
		ServiceID:  id,
		Up:         !r.Failed(),
		HTTPStatus: r.StatusCode,
		LatencyMS:  float64(r.Latency) / float64(time.Millisecond),
		Reason:     r.Err,
		CheckedAt:  r.Timestamp,
	}
}
