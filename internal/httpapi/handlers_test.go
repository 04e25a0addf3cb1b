package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/history"
	apimw "github.com/hamed0406/watchmen/internal/httpapi/middleware"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/repo/memory"
	"github.com/hamed0406/watchmen/internal/watchmen"
)

// ---- test helpers ----

// switchProber answers with whatever was last set, so tests can flip a
// service between up and down.
type switchProber struct {
	mu   sync.Mutex
	resp probe.Response
}

func (p *switchProber) Check(context.Context, domain.Service) probe.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resp
}

func (p *switchProber) set(r probe.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resp = r
}

type testAPI struct {
	ts     *httptest.Server
	srv    *Server
	eng    *watchmen.Watchmen
	clk    *clock.Fake
	prober *switchProber
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	prober := &switchProber{resp: probe.Response{Body: "ok", StatusCode: 200}}

	svc := domain.Service{
		ID:               "api",
		Name:             "Public API",
		Target:           "https://api.example.com",
		Interval:         time.Minute,
		FailureInterval:  10 * time.Second,
		WarningThreshold: 1500 * time.Millisecond,
	}
	eng, err := watchmen.New([]watchmen.Service{{Service: svc, Prober: prober}}, store,
		watchmen.WithLogger(log), watchmen.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	history.NewRecorder(store, log).Register(eng)

	srv := NewServer(log, eng, store, store)
	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(ts.Close)

	return &testAPI{ts: ts, srv: srv, eng: eng, clk: clk, prober: prober}
}

func (a *testAPI) do(t *testing.T, method, path, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.ts.URL+path, bytes.NewReader(nil))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ---- tests ----

func TestServices_ListGetAndAuth(t *testing.T) {
	a := setupAPI(t)

	resp := a.do(t, http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/services", "pub_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []struct {
		Service struct {
			ID string `json:"id"`
		} `json:"service"`
		State string `json:"state"`
	}
	decode(t, resp, &list)
	require.Len(t, list, 1)
	require.Equal(t, "api", list[0].Service.ID)
	require.Equal(t, "stopped", list[0].State)

	resp = a.do(t, http.MethodGet, "/api/services/api", "pub_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/services/nope", "pub_test")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLifecycle_StartStopRequireAdmin(t *testing.T) {
	a := setupAPI(t)

	resp := a.do(t, http.MethodPost, "/api/services/api/start", "pub_test")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/services/api/start", "adm_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st struct {
		State     string     `json:"state"`
		NextCheck *time.Time `json:"next_check"`
	}
	decode(t, resp, &st)
	require.Equal(t, "running", st.State)
	require.NotNil(t, st.NextCheck)

	running, err := a.eng.Running("api")
	require.NoError(t, err)
	require.True(t, running)

	resp = a.do(t, http.MethodPost, "/api/services/api/stop", "adm_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	running, err = a.eng.Running("api")
	require.NoError(t, err)
	require.False(t, running)

	resp = a.do(t, http.MethodPost, "/api/services/ghost/stop", "adm_test")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPing_OpensAndClosesOutageAndRecordsResults(t *testing.T) {
	a := setupAPI(t)
	a.prober.set(probe.Response{Err: errors.New("connection refused")})

	resp := a.do(t, http.MethodPost, "/api/services/api/ping", "adm_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out outageResponse
	decode(t, a.do(t, http.MethodGet, "/api/services/api/outage", "pub_test"), &out)
	require.NotNil(t, out.Open)
	require.Equal(t, "connection refused", out.Open.Error)
	require.Empty(t, out.History)

	var results []domain.CheckResult
	decode(t, a.do(t, http.MethodGet, "/api/results/latest", "pub_test"), &results)
	require.Len(t, results, 1)
	require.False(t, results[0].Up)

	a.clk.Advance(30 * time.Second)
	a.prober.set(probe.Response{Body: "ok", StatusCode: 200})
	resp = a.do(t, http.MethodPost, "/api/services/api/ping", "adm_test")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out = outageResponse{}
	decode(t, a.do(t, http.MethodGet, "/api/services/api/outage", "pub_test"), &out)
	require.Nil(t, out.Open)
	require.Len(t, out.History, 1)
	require.Equal(t, 30*time.Second, out.History[0].Downtime)

	results = nil
	decode(t, a.do(t, http.MethodGet, "/api/results/latest", "pub_test"), &results)
	require.Len(t, results, 1)
	require.True(t, results[0].Up)
	require.Equal(t, 200, results[0].HTTPStatus)
}

func TestPing_UnknownService(t *testing.T) {
	a := setupAPI(t)
	resp := a.do(t, http.MethodPost, "/api/services/ghost/ping", "adm_test")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvents_StreamOverWebsocket(t *testing.T) {
	a := setupAPI(t)
	wsURL := "ws" + strings.TrimPrefix(a.ts.URL, "http") + "/api/events?api_key=pub_test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	a.prober.set(probe.Response{Err: errors.New("timeout")})
	a.do(t, http.MethodPost, "/api/services/api/ping", "adm_test")

	var kinds []events.Kind
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev events.Event
		require.NoError(t, conn.ReadJSON(&ev))
		require.Equal(t, domain.ServiceID("api"), ev.Service.ID)
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []events.Kind{events.NewOutage, events.Ping}, kinds)

	conn.Close()
	require.Eventually(t, func() bool { return a.srv.Hub().Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_RequiresKey(t *testing.T) {
	a := setupAPI(t)
	wsURL := "ws" + strings.TrimPrefix(a.ts.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
