package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cbc-agent/analytics-ingest/app"
	"github.com/cbc-agent/analytics-ingest/handlers"
	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// RequestTimeout bounds every request handled by the router
const RequestTimeout = 30 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(RequestTimeout))
	r.Use(middleware.NewTrustedHosts(cfg.Ingest.AllowedHosts, logger).Handler)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Ingest.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "DNT", "Sec-GPC", "X-Signature"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestPrivacy)

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.DB.DB, logger)
	if auditDB := deps.RepoFactory.GetAuditDB(); auditDB != nil {
		health.WithDatabase("audit_database", auditDB.DB)
	}
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	ingest := handlers.NewIngestHandler(deps.Pipeline, logger)
	r.Post("/ingest/event", ingest.HandleEvent)

	webhooks := handlers.NewWebhookHandler(deps.Pipeline, deps.Authenticator, deps.Metrics, logger)
	r.Post("/webhook/cbc-agent/{webhook_type}", webhooks.HandleWebhook)

	guests := handlers.NewGuestHandler(deps.Consents, deps.Profiles, logger)
	r.Post("/consent", guests.HandleConsent)
	r.Post("/guest/profile", guests.HandleProfile)

	privacyHandler := handlers.NewPrivacyHandler(deps.GuestData, logger)
	signed := middleware.NewSignatureMiddleware(deps.Authenticator, logger)
	r.Route("/privacy", func(r chi.Router) {
		r.With(signed.RequireSignature).Post("/token", privacyHandler.HandleIssueToken)
		r.Post("/export", privacyHandler.HandleExport)
		r.Post("/delete", privacyHandler.HandleDelete)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		metrics := handlers.NewMetricsHandler(deps.Repos.Events, logger)
		r.Get("/metrics/events", metrics.HandleEventMetrics)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
