package watchmen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/repo"
)

var initialTime = time.Unix(946684800, 0).UTC()

var (
	errorResponse   = mockResponse{resp: probe.Response{Err: errors.New("mocked error")}}
	successResponse = mockResponse{resp: probe.Response{Body: "ok", StatusCode: 200}, latency: 300 * time.Millisecond}
	warningResponse = mockResponse{resp: probe.Response{Body: "ok", StatusCode: 200}, latency: 1600 * time.Millisecond}
)

type mockResponse struct {
	resp    probe.Response
	latency time.Duration
}

// mockProber answers with a fixed response, spending latency on the fake
// clock like a real network call would on the wall clock.
type mockProber struct {
	clk *clock.Fake

	mu    sync.Mutex
	next  mockResponse
	calls int
}

func (m *mockProber) Check(ctx context.Context, svc domain.Service) probe.Response {
	m.mu.Lock()
	m.calls++
	r := m.next
	m.mu.Unlock()
	if r.latency > 0 {
		m.clk.Advance(r.latency)
	}
	return r.resp
}

func (m *mockProber) set(r mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = r
}

func (m *mockProber) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fixture struct {
	clk    *clock.Fake
	prober *mockProber
	svc    domain.Service
	w      *Watchmen
	got    *recorder
}

func testService() domain.Service {
	return domain.Service{
		ID:               "X34dF",
		Name:             "test",
		Target:           "http://www.correcthost.com:80/",
		Interval:         4 * time.Second,
		FailureInterval:  5 * time.Second,
		WarningThreshold: 1500 * time.Millisecond,
	}
}

func newFixture(t *testing.T, store repo.OutageStore) *fixture {
	t.Helper()
	clk := clock.NewFake(initialTime)
	p := &mockProber{clk: clk, next: successResponse}
	svc := testService()
	w, err := New([]Service{{Service: svc, Prober: p}}, store, WithClock(clk))
	require.NoError(t, err)
	rec := &recorder{}
	for _, k := range events.Kinds {
		w.On(k, rec.listener(k))
	}
	return &fixture{clk: clk, prober: p, svc: svc, w: w, got: rec}
}

type recorded struct {
	kind    events.Kind
	svc     domain.Service
	payload events.Payload
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) listener(k events.Kind) events.Listener {
	return func(svc domain.Service, p events.Payload) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, recorded{kind: k, svc: svc, payload: p})
		return nil
	}
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func (r *recorder) of(k events.Kind) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.kind == k {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
