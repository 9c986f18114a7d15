// Package api exposes the supervisor's state over HTTP: current snapshot,
// per-module telemetry and history, the event log, and a command endpoint
// mirroring the operator console.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aquarig/supervisor/pkg/bus"
	httpx "github.com/aquarig/supervisor/pkg/http"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/aquarig/supervisor/pkg/watchdog"
)

const (
	defaultEventLimit = 100
	shutdownTimeout   = 5 * time.Second
)

// Server serves the supervisor API.
type Server struct {
	rigID    string
	store    *state.Store
	samples  SampleSource
	events   EventStore
	commands CommandRunner
	router   *mux.Router
	httpSrv  *http.Server
	log      *zap.SugaredLogger
}

func NewServer(rigID string, store *state.Store, samples SampleSource, events EventStore, commands CommandRunner, log *zap.SugaredLogger) *Server {
	s := &Server{
		rigID:    rigID,
		store:    store,
		samples:  samples,
		events:   events,
		commands: commands,
		router:   mux.NewRouter(),
		log:      log,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)
	s.router.Use(httpx.LoggingMiddleware(s.log))

	s.router.HandleFunc("/api/status", s.getStatus).Methods("GET")
	s.router.HandleFunc("/api/modules", s.getModules).Methods("GET")
	s.router.HandleFunc("/api/modules/{id}", s.getModule).Methods("GET")
	s.router.HandleFunc("/api/modules/{id}/history", s.getModuleHistory).Methods("GET")
	s.router.HandleFunc("/api/events", s.getEvents).Methods("GET")
	s.router.HandleFunc("/api/command", s.postCommand).Methods("POST")
	s.router.HandleFunc("/api/ws", s.serveWS)
}

// Handler exposes the router; tests serve it directly.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Infow("api server listening", "addr", addr)

	return s.httpSrv.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	snap := s.store.Snapshot(now)
	result := watchdog.Evaluate(snap, now)

	status := RigStatus{
		Rig:      s.rigID,
		Snapshot: snap,
		Alarms:   make([]AlarmStatus, 0, len(result.Alarms)),
	}

	for _, code := range result.Alarms {
		status.Alarms = append(status.Alarms, AlarmStatus{
			Code:    code,
			Message: code.Message(),
		})
	}

	s.writeJSON(w, status)
}

func (s *Server) getModules(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	snap := s.store.Snapshot(now)

	modules := make([]ModuleStatus, 0, len(bus.Monitored()))
	for _, id := range bus.Monitored() {
		modules = append(modules, moduleStatus(snap, id))
	}

	s.writeJSON(w, modules)
}

func (s *Server) getModule(w http.ResponseWriter, r *http.Request) {
	id, ok := bus.ParseModuleID(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Module not found", http.StatusNotFound)
		return
	}

	snap := s.store.Snapshot(time.Now())
	detail := ModuleDetail{ModuleStatus: moduleStatus(snap, id)}

	switch id {
	case bus.ModuleTank:
		detail.Tank = &snap.Tank
	case bus.ModuleGrow:
		detail.Grow = &snap.Grow
	case bus.ModuleNutrient:
		detail.Nutrient = &snap.Nutrient
	case bus.ModuleFeed:
		detail.Feed = &snap.Feed
	default:
		http.Error(w, "Module not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, detail)
}

func (s *Server) getModuleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := bus.ParseModuleID(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Module not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, s.samples.GetSamples(id))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		limit = parsed
	}

	events, err := s.events.RecentEvents(limit)
	if err != nil {
		s.log.Errorw("failed to load events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, events)
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Line == "" {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}

	s.writeJSON(w, CommandResponse{
		Response: s.commands.Execute(r.Context(), req.Line),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("failed to encode response", "error", err)
	}
}

func moduleStatus(snap state.Snapshot, id bus.ModuleID) ModuleStatus {
	age := snap.Age(id)

	return ModuleStatus{
		ID:       id.String(),
		Live:     age < watchdog.StaleThreshold,
		LastSeen: snap.LastSeen[id],
		Age:      age,
	}
}
