package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	apimw "github.com/hamed0406/watchmen/internal/httpapi/middleware"
	"github.com/hamed0406/watchmen/internal/repo"
	"github.com/hamed0406/watchmen/internal/watchmen"
)

// Engine is the part of the monitoring engine the API drives.
type Engine interface {
	Services() []watchmen.Status
	Status(id domain.ServiceID) (watchmen.Status, error)
	Start(id domain.ServiceID) error
	Stop(id domain.ServiceID) error
	Ping(ctx context.Context, task watchmen.Task) error
	OnAny(f func(events.Event)) (remove func())
}

type Server struct {
	Logger  *zap.Logger
	Engine  Engine
	Results repo.ResultStore
	Outages repo.OutageStore

	hub *Hub
}

// NewServer builds the API. outages may be nil, in which case the outage
// endpoint reports no open outage.
func NewServer(l *zap.Logger, eng Engine, rs repo.ResultStore, outages repo.OutageStore) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if outages == nil {
		outages = repo.Nop{}
	}
	return &Server{Logger: l, Engine: eng, Results: rs, Outages: outages}
}

// Router wires the routes. Rate limits are requests per minute per client IP
// with the given burst; zero disables the limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	if s.hub == nil {
		s.hub = NewHub(allowedOrigins, s.Logger)
		s.Engine.OnAny(s.hub.Broadcast)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.Authenticate(keys, s.Logger))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(publicRPM, publicBurst))
			r.Get("/services", s.handleListServices)
			r.Get("/services/{id}", s.handleGetService)
			r.Get("/services/{id}/outage", s.handleGetOutage)
			r.Get("/results/latest", s.handleLatestResults)
			r.Get("/events", s.hub.HandleConnect)
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.Require(apimw.RoleOperator, s.Logger))
			r.Use(apimw.RateLimit(adminRPM, adminBurst))
			r.Post("/services/{id}/start", s.handleStart)
			r.Post("/services/{id}/stop", s.handleStop)
			r.Post("/services/{id}/ping", s.handlePing)
		})
	})

	return r
}

// Hub returns the event stream hub, available once Router has been called.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Services())
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.Status(serviceID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type outageResponse struct {
	Open    *domain.Outage  `json:"open"`
	History []domain.Outage `json:"history,omitempty"`
}

func (s *Server) handleGetOutage(w http.ResponseWriter, r *http.Request) {
	id := serviceID(r)
	if _, err := s.Engine.Status(id); err != nil {
		s.writeError(w, err)
		return
	}

	open, err := s.Outages.ReadOpenOutage(r.Context(), id)
	if err != nil {
		s.Logger.Error("outage_read_error", zap.String("service_id", string(id)), zap.Error(err))
		http.Error(w, "outage read error", http.StatusInternalServerError)
		return
	}
	resp := outageResponse{Open: open}

	if lister, ok := s.Outages.(repo.OutageLister); ok {
		limit := 20
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
			limit = v
		}
		hist, err := lister.ListOutages(r.Context(), id, limit)
		if err != nil {
			s.Logger.Error("outage_list_error", zap.String("service_id", string(id)), zap.Error(err))
			http.Error(w, "outage list error", http.StatusInternalServerError)
			return
		}
		resp.History = hist
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Error("results_latest_error", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if rs == nil {
		rs = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.Engine.Start, "service_started")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.Engine.Stop, "service_stopped")
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(domain.ServiceID) error, msg string) {
	id := serviceID(r)
	if err := op(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info(msg, zap.String("service_id", string(id)), zap.String("remote", r.RemoteAddr))
	st, err := s.Engine.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePing runs one check synchronously for immediate feedback. A storage
// failure is reported alongside the fresh status.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	id := serviceID(r)
	pingErr := s.Engine.Ping(r.Context(), watchmen.Task{ServiceID: id})
	if errors.Is(pingErr, watchmen.ErrInvalidServiceID) {
		s.writeError(w, pingErr)
		return
	}
	st, err := s.Engine.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"status": st}
	code := http.StatusOK
	if pingErr != nil {
		s.Logger.Warn("manual_ping_storage_error", zap.String("service_id", string(id)), zap.Error(pingErr))
		resp["error"] = pingErr.Error()
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, watchmen.ErrInvalidServiceID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.Logger.Error("api_error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func serviceID(r *http.Request) domain.ServiceID {
	return domain.ServiceID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
