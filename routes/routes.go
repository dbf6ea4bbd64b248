package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/tenant-platform/app"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestMeta)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.CacheAdvisory(cfg.IsProduction(), cfg.Cache.MaxAge))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Metrics != nil {
		path := cfg.Observability.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, deps.Metrics.Handler())
	}

	authn := deps.AuthMiddleware

	r.Route("/auth", func(r chi.Router) {
		// Public endpoints share one rate limit per client
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(middleware.RateLimit(deps.RateLimiter, deps.Logger))
			}
			r.Post("/register", deps.AuthHandler.HandleRegister)
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Post("/refresh", deps.AuthHandler.HandleRefresh)
			r.Get("/verify-email/{token}", deps.AuthHandler.HandleVerifyEmail)
			r.Post("/forgot-password", deps.AuthHandler.HandleForgotPassword)
			r.Post("/reset-password/{token}", deps.AuthHandler.HandleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Get("/me", deps.AuthHandler.HandleMe)
			r.Post("/logout", deps.AuthHandler.HandleLogout)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(authn.RequireAuth)

		r.With(authn.RequireRoles(models.RoleAdmin, models.RoleOwner)).Get("/", deps.UserHandler.HandleList)
		r.With(authn.RequireRoles(models.RoleAdmin, models.RoleOwner)).Post("/", deps.UserHandler.HandleCreate)

		// Self rule is applied by the handler
		r.Get("/{id}", deps.UserHandler.HandleGet)
		r.Patch("/{id}", deps.UserHandler.HandleUpdate)

		r.With(authn.RequireRoles(models.RoleOwner)).Delete("/{id}", deps.UserHandler.HandleDelete)
	})

	r.Route("/audit", func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Get("/", deps.AuditHandler.HandleList)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
