// Package server exposes medications, reminders and the realtime event
// stream over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/metrics"
	"github.com/manav03panchal/medremind/internal/notify"
)

// HealthFunc reports the service health for GET /health.
type HealthFunc func(ctx context.Context) (status any, healthy bool)

// Options configures a Server.
type Options struct {
	Medications *medication.Service
	Hub         *notify.Hub
	Health      HealthFunc
	// SessionBuffer is the event buffer of each stream session.
	SessionBuffer int
	// Heartbeat is the idle interval between stream keep-alive comments.
	Heartbeat time.Duration
}

// Server is the HTTP surface of the daemon.
type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
}

// New creates a server and its routes.
func New(opts Options) *Server {
	if opts.SessionBuffer <= 0 {
		opts.SessionBuffer = config.Global.Notify.SessionBuffer
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	s := &Server{opts: opts}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestContext)
	r.Use(instrument)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/users/{userID}", func(ur chi.Router) {
		ur.Get("/events", s.handleEvents)
		ur.Get("/reminders", s.handleListReminders)

		ur.Route("/medications", func(mr chi.Router) {
			mr.Get("/", s.handleListMedications)
			mr.Post("/", s.handleCreateMedication)
			mr.Post("/import", s.handleImport)
			mr.Get("/{medicationID}", s.handleGetMedication)
			mr.Patch("/{medicationID}", s.handleUpdateMedication)
			mr.Put("/{medicationID}/frequency", s.handleSetFrequency)
			mr.Delete("/{medicationID}", s.handleDeleteMedication)
			mr.Post("/{medicationID}/taken", s.handleTaken)
		})
	})

	return r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("http server stopped", logging.KeyError, err)
		}
	}()

	logging.Info("http server listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Shutdown stops accepting requests and waits for active ones until ctx
// ends. Event streams end when the hub closes their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
