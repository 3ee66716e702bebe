// Package server exposes the market-data core over HTTP: scan/snapshot/FX
// triggers, the resonance endpoints, and admin cache inspection. Routing
// and middleware follow the teacher's internal/server/server.go shape
// (chi, chi/middleware, go-chi/cors); auth and per-route rate limiting are
// additions this core's spec requires that the teacher's own server didn't.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/cache"
	"github.com/aristath/marketcore/internal/fxmonitor"
	"github.com/aristath/marketcore/internal/resonance"
	"github.com/aristath/marketcore/internal/scan"
	"github.com/aristath/marketcore/internal/scheduler"
	"github.com/aristath/marketcore/internal/snapshot"
)

// Config holds everything the HTTP surface needs. Every field besides
// Port/Log/APIKey/DevMode is a component this module's main.go already
// wires for its own background jobs; the server only ever calls through
// their exported methods, it owns no persistence of its own.
type Config struct {
	Port    int
	Log     zerolog.Logger
	APIKey  string // shared secret gating every route but /health; empty disables auth (dev mode)
	DevMode bool

	Scan      *scan.Pipeline
	Snapshot  *snapshot.Engine
	FX        *fxmonitor.Monitor
	Resonance *resonance.Service
	Fabric    *cache.Fabric
	Scheduler *scheduler.Scheduler
}

// Server is the market-data core's HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	apiKey string
	port   int

	scan      *scan.Pipeline
	snapshot  *snapshot.Engine
	fx        *fxmonitor.Monitor
	resonance *resonance.Service
	fabric    *cache.Fabric
	scheduler *scheduler.Scheduler
}

// New constructs a Server with routes and middleware wired.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		apiKey:    cfg.APIKey,
		port:      cfg.Port,
		scan:      cfg.Scan,
		snapshot:  cfg.Snapshot,
		fx:        cfg.FX,
		resonance: cfg.Resonance,
		fabric:    cfg.Fabric,
		scheduler: cfg.Scheduler,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
	s.router.Use(s.authMiddleware)
}

// authMiddleware gates every route except /health behind a shared-key
// comparison. In dev mode (APIKey empty) it is a no-op.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		provided := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(5, time.Minute))
		r.Post("/scan", s.handleScan)
		r.Post("/digest", s.handleDigest)
	})
	s.router.Get("/scan/status", s.handleScanStatus)
	s.router.Get("/prewarm-status", s.handlePrewarmStatus)

	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/snapshots/take", s.handleSnapshotTake)
	})
	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(3, time.Minute))
		r.Post("/snapshots/backfill-benchmarks", s.handleSnapshotBackfill)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(5, time.Minute))
		r.Post("/fx/check", s.handleFXCheck)
	})

	s.router.Get("/resonance", s.handleResonance)
	s.router.Get("/resonance/great-minds", s.handleGreatMinds)
	s.router.Get("/resonance/{ticker}", s.handleResonanceForTicker)

	s.router.Get("/admin/cache/stats", s.handleCacheStats)
	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/admin/cache/clear", s.handleCacheClear)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
