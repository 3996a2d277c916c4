package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/guard"
	"github.com/opensource-crm/harrier/internal/limits"
	"github.com/opensource-crm/harrier/internal/metrics"
	"github.com/opensource-crm/harrier/internal/qualify"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// ServerDeps bundles the components the API serves.
type ServerDeps struct {
	Repo         domain.Repository
	Cache        domain.Cache
	Bus          domain.EventBus
	Orchestrator *qualify.Orchestrator
	Guards       *guard.Engine
	Limits       *limits.Service
	RuleSource   *qualify.CachedRuleSource
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Version      string
	Async        bool
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps ServerDeps) *Server {
	handler := NewHandler(deps.Repo, deps.Cache, deps.Bus, deps.Orchestrator, deps.Guards, deps.Limits, deps.RuleSource, deps.Metrics, deps.Version, deps.Async)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health and metrics endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if deps.Registry != nil {
		router.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	// Tenant onboarding (no tenant header required)
	router.Post("/tenants", handler.CreateTenant)
	router.Get("/tenants", handler.ListTenants)
	router.Get("/tenants/{id}", handler.GetTenant)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Lead intake and retrieval
		r.Post("/leads", handler.CreateLead)
		r.Get("/leads", handler.ListLeads)
		r.Get("/leads/{id}", handler.GetLead)
		r.Get("/leads/{id}/transcript", handler.GetTranscript)

		// Questionnaire management
		r.Put("/scoring-rules", handler.ReplaceScoringRules)
		r.Get("/scoring-rules", handler.ListScoringRules)

		// Routing policy management
		r.Put("/routing-rules", handler.PutRoutingRules)
		r.Get("/routing-rules", handler.ListRoutingRules)

		// Guard rule management
		r.Put("/guards", handler.PutGuards)
		r.Get("/guards", handler.ListGuards)

		// Agent pool management
		r.Post("/agents", handler.CreateAgent)
		r.Get("/agents", handler.ListAgents)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
