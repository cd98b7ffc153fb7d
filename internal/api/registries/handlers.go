package registries

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
)

func NotifiersHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wire.OK(w, http.StatusOK, deps.Registry.NotifierNames())
	}
}

func ActionsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wire.OK(w, http.StatusOK, deps.Registry.ActionNames())
	}
}

// HistoryHandler exposes the dispatch journal, newest first.
func HistoryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := deps.Store.ListDispatches(r.Context(), limit)
		if err != nil {
			wire.Err(w, http.StatusInternalServerError, "failed to read dispatch history")
			return
		}
		wire.OK(w, http.StatusOK, entries)
	}
}

func Routes(r chi.Router, deps app.Deps) {
	r.Get("/notifiers", NotifiersHandler(deps))
	r.Get("/actions", ActionsHandler(deps))
	r.Get("/history", HistoryHandler(deps))
}
