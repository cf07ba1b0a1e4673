package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/handlers"
	"github.com/garagehq/workshop-platform/middleware"
)

// SetupRoutes configures all application routes and the request
// pipeline. Tenant routes run resolution, then a credential stage, then
// authorization, then rate limiting; admin routes carry no tenant and
// require a superuser credential.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.MachineTokenHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	if deps.Config.Observability.MetricsEnabled && deps.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
	}

	rateLimit := middleware.RateLimit(deps.Limiter, deps.Metrics, deps.Logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Tenant-scoped routes
		r.Route("/t/{tenant}", func(r chi.Router) {
			r.Use(deps.Resolver.Resolve)

			// Interactive callers with a signed credential
			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequireIdentity)
				r.Use(rateLimit)
				r.Get("/whoami", handlers.WhoamiHandler(deps))
			})

			// External systems with the tenant's machine token
			r.Group(func(r chi.Router) {
				r.Use(deps.MachineGate.RequireMachineToken)
				r.Use(rateLimit)
				r.Get("/integration/ping", handlers.IntegrationPingHandler(deps))
			})
		})

		// Platform administration (superuser only, no tenant in route)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.Auth.RequireIdentity)
			r.Use(deps.Authorizer.RequireSuperuser)
			r.Use(rateLimit)

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", handlers.ListTenantsHandler(deps))
				r.Post("/", handlers.CreateTenantHandler(deps))
				r.Get("/{slug}", handlers.GetTenantHandler(deps))
				r.Post("/{slug}/suspend", handlers.SuspendTenantHandler(deps))
				r.Post("/{slug}/reactivate", handlers.ReactivateTenantHandler(deps))
				r.Put("/{slug}/modules/{module}", handlers.EnableModuleHandler(deps))
				r.Delete("/{slug}/modules/{module}", handlers.DisableModuleHandler(deps))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", handlers.GetSettingsHandler(deps))
				r.Put("/", handlers.UpdateSettingsHandler(deps))
			})

			r.Route("/backups", func(r chi.Router) {
				r.Get("/{slug}", handlers.ListBackupsHandler(deps))
				r.Post("/{slug}", handlers.TriggerBackupHandler(deps))
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"route not found"}`))
	})

	return r
}
