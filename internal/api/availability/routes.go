package availability

import (
	"github.com/go-chi/chi/v5"

	"wakehub/internal/app"
)

func Routes(r chi.Router, deps app.Deps) {
	r.Post("/events/conflicts", ConflictsHandler(deps))
	r.Post("/events/validate", ValidateHandler(deps))

	r.Route("/free-slots", func(r chi.Router) {
		r.Get("/next", NextFreeHandler(deps))
		r.Get("/{date}", FreeSlotsHandler(deps))
	})
}
