package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"wakehub/internal/api/availability"
	"wakehub/internal/api/events"
	"wakehub/internal/api/registries"
	"wakehub/internal/api/stats"
	"wakehub/internal/api/wakeapi"
	"wakehub/internal/app"
	"wakehub/internal/auth"
)

func NewRouter(deps app.Deps) chi.Router {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})

	// Global middleware
	r.Use(func(next http.Handler) http.Handler {
		return secureMiddleware.Handler(next)
	})
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(middleware.CleanPath)

	limit := deps.Cfg.RateLimit
	if limit <= 0 {
		limit = 100
	}
	r.Use(httprate.LimitByIP(limit, 1*time.Minute))

	keys := auth.Keys{
		APIKey:       deps.Cfg.APIKey,
		AdminKey:     deps.Cfg.AdminKey,
		AdminKeyHash: deps.Cfg.AdminKeyHash,
	}

	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/ready", ReadyHandler(deps.Store))
		r.Get("/version", VersionHandler())

		// Everything below requires the API key.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireKey(keys))

			events.Routes(r, deps)
			availability.Routes(r, deps)
			stats.Routes(r, deps)
			wakeapi.Routes(r, deps)
			registries.Routes(r, deps)
		})
	})

	return r
}
