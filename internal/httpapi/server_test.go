package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apimw "github.com/hamed0406/watchmen/internal/httpapi/middleware"
)

func TestHealthz(t *testing.T) {
	a := setupAPI(t)
	resp := a.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok" {
		t.Fatalf("body=%q", b)
	}
}

func TestRouter_CORSAllowedOrigin(t *testing.T) {
	a := setupAPI(t)
	h := a.srv.Router(apimw.Keys{}, []string{"https://status.example.com"}, 0, 0, 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Origin", "https://status.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://status.example.com" {
		t.Fatalf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin=%q", got)
	}
}

func TestRouter_AdminRateLimit(t *testing.T) {
	a := setupAPI(t)
	h := a.srv.Router(apimw.Keys{}, nil, 0, 0, 1, 1)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/services/api/stop", nil)
		req.RemoteAddr = "9.9.9.9:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes=%v", codes)
	}
}
