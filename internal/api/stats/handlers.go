package stats

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
)

// Handler summarizes events between two local dates, upper bound exclusive.
func Handler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := wire.ParseDate(chi.URLParam(r, "from"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		to, err := wire.ParseDate(chi.URLParam(r, "to"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		if !to.After(from) {
			wire.Err(w, http.StatusBadRequest, "to must be after from")
			return
		}
		wire.OK(w, http.StatusOK, deps.Model.Stats(from, to))
	}
}

func Routes(r chi.Router, deps app.Deps) {
	r.Get("/stats/events/{from}/{to}", Handler(deps))
}
