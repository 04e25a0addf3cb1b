package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	// Cooldown suppresses repeated DOWN alerts for the same service.
	Cooldown    time.Duration
	SendTimeout time.Duration
	QueueSize   int
}

// Alerter turns outage events into notifications. Listeners only enqueue;
// Run does the sending so a slow notifier never delays a check cycle.
type Alerter struct {
	notifier Notifier
	cfg      AlerterConfig
	clock    clock.Clock
	log      *zap.Logger

	queue chan Alert

	mu       sync.Mutex
	lastDown map[domain.ServiceID]time.Time
}

func NewAlerter(n Notifier, cfg AlerterConfig, clk clock.Clock, log *zap.Logger) *Alerter {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		notifier: n,
		cfg:      cfg,
		clock:    clk,
		log:      log,
		queue:    make(chan Alert, cfg.QueueSize),
		lastDown: make(map[domain.ServiceID]time.Time),
	}
}

// Subscriber is the part of the engine the alerter listens on.
type Subscriber interface {
	On(kind events.Kind, l events.Listener)
}

func (a *Alerter) Register(s Subscriber) {
	s.On(events.NewOutage, a.onNewOutage)
	s.On(events.ServiceBack, a.onServiceBack)
}

func (a *Alerter) onNewOutage(svc domain.Service, p events.Payload) error {
	now := a.clock.Now()
	a.mu.Lock()
	last, seen := a.lastDown[svc.ID]
	cooled := !seen || now.Sub(last) >= a.cfg.Cooldown
	if cooled {
		a.lastDown[svc.ID] = now
	}
	a.mu.Unlock()
	if !cooled {
		a.log.Debug("alert_suppressed", zap.String("service_id", string(svc.ID)))
		return nil
	}

	return a.enqueue(Alert{Kind: AlertDown, Service: svc, Error: p.Error, Since: p.Timestamp})
}

func (a *Alerter) onServiceBack(svc domain.Service, p events.Payload) error {
	if !a.cfg.AlertOnRecovery {
		return nil
	}
	al := Alert{Kind: AlertRecovered, Service: svc, Since: p.Timestamp}
	if p.Outage != nil {
		al.Since = p.Outage.Timestamp
		al.Downtime = p.Outage.Downtime
	}
	return a.enqueue(al)
}

func (a *Alerter) enqueue(al Alert) error {
	select {
	case a.queue <- al:
		return nil
	default:
		return fmt.Errorf("alert queue full, dropping %s alert for %s", al.Kind, al.Service.ID)
	}
}

// Run sends queued alerts until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case al := <-a.queue:
			a.send(ctx, al)
		}
	}
}

// Flush sends everything currently queued and returns how many were sent. Use it
// after Run returns to deliver alerts raised during shutdown.
func (a *Alerter) Flush(ctx context.Context) int {
	n := 0
	for {
		select {
		case al := <-a.queue:
			a.send(ctx, al)
			n++
		default:
			return n
		}
	}
}

func (a *Alerter) send(ctx context.Context, al Alert) {
	sctx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
	defer cancel()
	// Best-effort send
	if err := a.notifier.Notify(sctx, al); err != nil {
		a.log.Warn("alert_send_error",
			zap.String("service_id", string(al.Service.ID)),
			zap.String("alert", string(al.Kind)),
			zap.Error(err),
		)
		return
	}
	a.log.Info("alert_sent",
		zap.String("service_id", string(al.Service.ID)),
		zap.String("alert", string(al.Kind)),
	)
}
