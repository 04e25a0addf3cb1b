package events

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
)

// Bus is an in-process broadcaster. Nothing is queued or replayed: Emit calls
// the listeners registered at that moment, synchronously and in order.
type Bus struct {
	log *zap.Logger

	mu        sync.RWMutex
	listeners map[Kind][]Listener
	any       []*anyListener
}

type anyListener struct{ f func(Event) }

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, listeners: make(map[Kind][]Listener)}
}

// On registers l for kind.
func (b *Bus) On(kind Kind, l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], l)
}

// OnAny registers f for every kind and returns a function that removes it.
func (b *Bus) OnAny(f func(Event)) (remove func()) {
	l := &anyListener{f: f}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.any = append(b.any, l)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, x := range b.any {
			if x == l {
				b.any = append(b.any[:i:i], b.any[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers an event to every listener of its kind. A listener that
// panics or fails is logged and skipped; the combined failures are returned.
func (b *Bus) Emit(kind Kind, svc domain.Service, p Payload) error {
	b.mu.RLock()
	ls := append([]Listener(nil), b.listeners[kind]...)
	anys := append([]*anyListener(nil), b.any...)
	b.mu.RUnlock()

	var errs error
	for i, l := range ls {
		if err := call(l, svc, p); err != nil {
			b.log.Warn("event_listener_error",
				zap.String("event", string(kind)),
				zap.String("service_id", string(svc.ID)),
				zap.Int("listener", i),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	ev := Event{Kind: kind, Service: svc, Payload: p}
	for _, a := range anys {
		f := a.f
		if err := call(func(domain.Service, Payload) error { f(ev); return nil }, svc, p); err != nil {
			b.log.Warn("event_subscriber_error", zap.String("event", string(kind)), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func call(l Listener, svc domain.Service, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(svc, p)
}
