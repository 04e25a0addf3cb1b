package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
)

// Scheduler owns the pending re-check timer of every service. Each service has
// at most one pending timer; scheduling again replaces it.
type Scheduler struct {
	Logger *zap.Logger
	Clock  clock.Clock

	mu     sync.Mutex
	timers map[domain.ServiceID]*pending
}

type pending struct {
	timer clock.Timer
	due   time.Time
}

func New(logger *zap.Logger, clk clock.Clock) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		Logger: logger,
		Clock:  clk,
		timers: make(map[domain.ServiceID]*pending),
	}
}

// NextDelay picks the cadence for the next check: FailureInterval while the
// service is failing or has an open outage, Interval otherwise.
func NextDelay(svc domain.Service, failing bool) time.Duration {
	if failing && svc.FailureInterval > 0 {
		return svc.FailureInterval
	}
	return svc.Interval
}

// Schedule runs fn once delay has elapsed, replacing any pending timer for id.
func (s *Scheduler) Schedule(id domain.ServiceID, delay time.Duration, fn func()) {
	p := &pending{due: s.Clock.Now().Add(delay)}

	s.mu.Lock()
	if old := s.timers[id]; old != nil {
		old.timer.Stop()
	}
	s.timers[id] = p
	// Hold the lock while arming so a zero-delay real timer cannot fire
	// before p.timer is set.
	p.timer = s.Clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[id] != p {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()

		s.Logger.Debug("scheduler_timer_fired", zap.String("service_id", string(id)))
		fn()
	})
	s.mu.Unlock()

	s.Logger.Debug("scheduler_scheduled",
		zap.String("service_id", string(id)),
		zap.Duration("delay", delay),
	)
}

// Cancel stops the pending timer for id. It reports whether one was pending.
func (s *Scheduler) Cancel(id domain.ServiceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.timers[id]
	if p == nil {
		return false
	}
	delete(s.timers, id)
	p.timer.Stop()
	return true
}

// CancelAll stops every pending timer and returns how many there were.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.timers)
	for id, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, id)
	}
	return n
}

// Due returns when the pending timer for id fires.
func (s *Scheduler) Due(id domain.ServiceID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.timers[id]
	if p == nil {
		return time.Time{}, false
	}
	return p.due, true
}

func (s *Scheduler) Pending(id domain.ServiceID) bool {
	_, ok := s.Due(id)
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
