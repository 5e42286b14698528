// Package httpadapter exposes the radar service over HTTP: health and
// metrics, site and frame lookups, and a WebSocket bridge to map sessions.
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-radar/internal/radar"
	"github.com/couchcryptid/storm-radar/internal/session"
	"github.com/couchcryptid/storm-radar/internal/sites"
)

// SessionFactory creates a fresh, not yet running map session.
type SessionFactory func() *session.Session

// Deps are the collaborators served by the HTTP surface.
type Deps struct {
	Router       *radar.Router
	Sites        *sites.Registry
	Ready        sharedobs.ReadinessChecker
	NewSession   SessionFactory
	NearestMaxKm float64
	Logger       *slog.Logger
}

// Server is the public HTTP listener.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
	validate   *validator.Validate
	upgrader   websocket.Upgrader

	// parent of every WebSocket session; cancelled by Shutdown.
	sessions      context.Context
	closeSessions context.CancelFunc
}

// NewServer builds the router and HTTP server.
func NewServer(addr string, deps Deps) *Server {
	sessions, closeSessions := context.WithCancel(context.Background())
	s := &Server{
		sessions:      sessions,
		closeSessions: closeSessions,
		deps:          deps,
		logger:        deps.Logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients are served from other origins; CORS is open too.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sites", s.handleSites)
		r.Get("/sites/nearest", s.handleNearest)
		r.Get("/frames", s.handleFrames)
		r.Get("/session", s.handleSession)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes every map session and gracefully drains connections
// within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeSessions()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
