// Package server implements the conductor HTTP server: the REST API, CORS
// and the SSE event stream.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/conductor/config"
	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/server/api"
	"github.com/GoCodeAlone/conductor/server/ws"
	"github.com/GoCodeAlone/conductor/service"
)

const defaultAddr = ":8000"

// Server is the conductor HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	svc     *service.Service
	bus     events.Bus
	journal api.EventLister
	hub     *ws.Hub

	routesOnce  sync.Once
	handler     http.Handler
	unsubscribe func()

	version string
}

// New creates a new Server for svc with the given config and logger.
func New(cfg config.Config, svc *service.Service, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		logger:  logger,
		svc:     svc,
		hub:     ws.NewHub(logger),
		version: ver,
	}
}

// SetBus attaches the event bus. Its events are streamed on /events and
// serve as journal history when no journal is attached. Call before
// Handler or Start.
func (s *Server) SetBus(bus events.Bus) {
	s.bus = bus
}

// SetJournal attaches a persistent event journal for /api/journal.
func (s *Server) SetJournal(j api.EventLister) {
	s.journal = j
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(func() {
		s.registerRoutes()
		s.handler = corsMiddleware(s.mux)
	})
	return s.handler
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = defaultAddr
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop detaches from the bus and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Service: s.svc,
		Journal: s.journal,
		Bus:     s.bus,
		Logger:  s.logger,
		Version: s.version,
	}
	h.RegisterRoutes(s.mux)

	if s.bus != nil {
		s.unsubscribe = s.bus.Subscribe(events.All, s.hub.Handler())
	}
	s.mux.HandleFunc("GET /events", s.hub.ServeSSE)
}

// corsMiddleware allows any origin, matching a browser dashboard served
// from elsewhere.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
