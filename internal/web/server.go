// Package web serves the operator HTTP API, prometheus metrics and a
// websocket feed of bot events.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/metrics"
)

// Version is reported by /health.
var Version = "dev"

// Config holds server configuration
type Config struct {
	Port int
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	api        chi.Router
	httpServer *http.Server
	config     *Config
	listener   net.Listener
	hub        *Hub
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewServer creates a new HTTP server. hub and m may be nil.
func NewServer(cfg *Config, hub *Hub, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	srv := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		hub:     hub,
		metrics: m,
		log:     log,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
}

// requestLogger logs every request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) setupRoutes() {
	if s.hub != nil {
		s.router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, w, r)
		})
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version); err != nil {
			_ = err // Client disconnected
		}
	})

	s.api = s.router.Route("/api/v1", func(chi.Router) {})
}

// Listen binds the port. Start calls it when needed; calling it first makes
// BaseURL usable before serving.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

// Start serves until Stop. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", s.listener.Addr().String()).Msg("ops server listening")

	return s.httpServer.Serve(s.listener)
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// BaseURL returns the server's base URL
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// API returns the /api/v1 router for mounting feature routes.
func (s *Server) API() chi.Router {
	return s.api
}

// RegisterStatsHandler registers stats API handlers
func (s *Server) RegisterStatsHandler(h interface {
	GetStats(w http.ResponseWriter, r *http.Request)
}) {
	s.api.Get("/stats", h.GetStats)
}

// RegisterAuthHandler registers auth API handlers
func (s *Server) RegisterAuthHandler(h interface {
	GetStatus(w http.ResponseWriter, r *http.Request)
	StartQR(w http.ResponseWriter, r *http.Request)
	CancelQR(w http.ResponseWriter, r *http.Request)
}) {
	s.api.Route("/auth", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/qr", h.StartQR)
		r.Delete("/qr", h.CancelQR)
	})
}

// RegisterCampaignsHandler registers invite campaign handlers
func (s *Server) RegisterCampaignsHandler(h interface {
	Start(w http.ResponseWriter, r *http.Request)
	Current(w http.ResponseWriter, r *http.Request)
	Stop(w http.ResponseWriter, r *http.Request)
	GroupStatus(w http.ResponseWriter, r *http.Request)
}) {
	s.api.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/current", h.Current)
		r.Delete("/current", h.Stop)
	})
	s.api.Get("/groups/{id}/invites", h.GroupStatus)
}
