package watchmen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/outage"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/scheduler"
)

// Ping runs one check cycle for task.ServiceID and returns once its events
// have been emitted. It never schedules a follow-up check. The returned error
// reports storage failures; probe failures are delivered as events.
func (w *Watchmen) Ping(ctx context.Context, task Task) error {
	e, err := w.lookup(task.ServiceID)
	if err != nil {
		return err
	}
	out := w.check(ctx, e, task)
	return out.Err
}

// launch is the scheduled form of a check: it runs a cycle and, while the
// service is still running under the same start, arms the next one.
func (w *Watchmen) launch(e *entry, gen uint64) {
	if !e.current(gen) {
		return
	}
	out := w.check(w.ctx, e, Task{ServiceID: e.svc.ID})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.StateRunning || e.gen != gen {
		w.log.Debug("watchmen_reschedule_skipped", zap.String("service_id", string(e.svc.ID)))
		return
	}
	delay := scheduler.NextDelay(e.svc, out.OutageOpen)
	w.sched.Schedule(e.svc.ID, delay, func() { w.launch(e, gen) })
}

func (e *entry) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == domain.StateRunning && e.gen == gen
}

// check probes the service, classifies the result against storage and emits
// the resulting events. Latency is measured here, around the prober call.
func (w *Watchmen) check(ctx context.Context, e *entry, task Task) outage.Outcome {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	start := w.clock.Now()
	resp := w.probe(ctx, e)
	latency := w.clock.Now().Sub(start)

	res := domain.ProbeResult{
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Timestamp:  start,
	}
	if resp.Err != nil {
		res.Err = resp.Err.Error()
	}
	if !task.Timestamp.IsZero() {
		res.Timestamp = task.Timestamp
	}

	out := w.tracker.Apply(ctx, e.svc, res)
	if out.Err != nil {
		w.log.Warn("watchmen_storage_error",
			zap.String("service_id", string(e.svc.ID)),
			zap.Error(out.Err),
		)
	}

	e.mu.Lock()
	e.last = &res
	if out.Class != "" {
		e.lastEvent = out.Class
	}
	e.mu.Unlock()

	for _, em := range out.Events {
		// Listener failures are logged by the bus and never stop the cycle.
		_ = w.bus.Emit(em.Kind, e.svc, em.Payload)
	}

	w.log.Debug("watchmen_check",
		zap.String("service_id", string(e.svc.ID)),
		zap.String("class", string(out.Class)),
		zap.Bool("up", !res.Failed()),
		zap.Duration("latency", latency),
		zap.String("error", res.Err),
	)
	return out
}

// probe calls the prober, turning a panic into a failed check.
func (w *Watchmen) probe(ctx context.Context, e *entry) (resp probe.Response) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("watchmen_prober_panic",
				zap.String("service_id", string(e.svc.ID)),
				zap.Any("panic", r),
			)
			resp = probe.Response{Err: fmt.Errorf("prober panic: %v", r)}
		}
	}()
	return e.prober.Check(ctx, e.svc)
}
