// Package server provides the HTTP server and routing for vnmarket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/di"
	"github.com/aristath/vnmarket/pkg/logger"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Container *di.Container // DI container with all services
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	container *di.Container
	validate  *validator.Validate
	port      int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       logger.Component(cfg.Log, "server"),
		container: cfg.Container,
		validate:  validator.New(),
		port:      cfg.Port,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // progress websockets outlive any fixed write deadline
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Progress streams stay open for the whole batch, so they sit
		// outside the request timeout
		r.Get("/batch/{id}/progress", s.handleBatchProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/system/status", s.handleSystemStatus)

			r.Route("/market", func(r chi.Router) {
				r.Get("/securities", s.handleSecurities)
				r.Get("/securities/{symbol}", s.handleSecurityDetails)
				r.Get("/indices", s.handleIndexList)
				r.Get("/indices/{index}/components", s.handleIndexComponents)
				r.Get("/indices/{index}/daily", s.handleDailyIndex)
				r.Get("/ohlc/{symbol}", s.handleOHLC)
				r.Get("/prices/{symbol}", s.handleDailyPrices)
				r.Get("/technicals/{symbol}", s.handleTechnicals)
			})

			r.Get("/batch", s.handleListBatchJobs)
			r.Post("/batch/ohlc", s.handleBatchOHLC)
			r.Get("/batch/{id}", s.handleGetBatchJob)

			r.Route("/portfolio", func(r chi.Router) {
				r.Post("/weights", s.handlePortfolioWeights)
				r.Post("/factors/{model}", s.handleFactorModel)
				r.Post("/ai-predict", s.handleAIPredict)
			})

			r.Route("/predictions", func(r chi.Router) {
				r.Get("/latest", s.handleLatestPredictions)
				r.Get("/filters", s.handlePredictionFilters)
				r.Get("/{ticker}", s.handleStockPredictions)
			})

			r.Get("/rankings", s.handleRankings)
			r.Get("/rankings/csv", s.handleRankingsCSV)
			r.Post("/rankings/refresh", s.handleRefreshRankings)

			r.Get("/cache/stats", s.handleCacheStats)
			r.Delete("/cache", s.handleInvalidateCache)
		})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
			Msg("HTTP request")
	})
}
