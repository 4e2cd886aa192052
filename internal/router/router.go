package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-manager-api/internal/config"
	"task-manager-api/internal/handler"
	"task-manager-api/internal/middleware"
)

type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Task   *handler.TaskHandler
	Audit  *handler.AuditHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecureHeaders(cfg.IsProduction()))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))
		api.Use(authMiddleware.RequireAuth)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
		})

		api.Route("/tasks", func(tasks chi.Router) {
			tasks.Get("/", h.Task.List)
			tasks.Post("/", h.Task.Create)
			tasks.Get("/{id}", h.Task.Get)
			tasks.Put("/{id}", h.Task.Update)
			tasks.Delete("/{id}", h.Task.Delete)
		})

		api.With(authMiddleware.RequireRoles("admin")).Get("/audit", h.Audit.List)
	})

	return r
}
