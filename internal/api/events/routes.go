package events

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"wakehub/internal/app"
	"wakehub/internal/auth"
)

func Routes(r chi.Router, deps app.Deps) {
	admin := auth.RequireAdmin(auth.Keys{
		APIKey:       deps.Cfg.APIKey,
		AdminKey:     deps.Cfg.AdminKey,
		AdminKeyHash: deps.Cfg.AdminKeyHash,
	})

	// Tighter budget for mutating verbs only; reads stay on the global tier.
	mut := httprate.LimitByIP(30, 1*time.Minute)

	r.Route("/events", func(r chi.Router) {
		r.With(mut).Post("/", CreateHandler(deps))
		r.Get("/", ListHandler(deps))

		r.Get("/next", NextHandler(deps))
		r.Get("/range", RangeHandler(deps))
		r.Get("/search", SearchHandler(deps))
		r.Get("/categories", CategoriesHandler(deps))
		r.Get("/category/{category}", ByCategoryHandler(deps))
		r.Get("/duration", ByDurationHandler(deps))
		r.Get("/day/{date}", OnDayHandler(deps))
		r.Get("/week/{date}", InWeekHandler(deps))
		r.Get("/month/{date}", InMonthHandler(deps))

		r.Get("/{id}", GetHandler(deps))
		r.With(mut).Put("/{id}", UpdateHandler(deps))
		r.With(mut).Patch("/{id}", PatchHandler(deps))
		r.With(mut, admin).Delete("/{id}", DeleteHandler(deps))
		r.With(mut).Post("/{id}/restore", RestoreHandler(deps))
	})

	r.Route("/recurring", func(r chi.Router) {
		r.With(mut).Post("/", CreateRecurringHandler(deps))
		r.Get("/", ListRecurringHandler(deps))
	})
}
