package api

import (
	"context"
	"net/http"
	"time"

	"wakehub/internal/api/wire"
	"wakehub/internal/store"
)

const Version = "0.3.0"

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		wire.OK(w, http.StatusOK, map[string]any{"healthy": true})
	}
}

func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		wire.OK(w, http.StatusOK, map[string]string{"version": Version})
	}
}

func ReadyHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			wire.Err(w, http.StatusServiceUnavailable, "store not initialized")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			wire.Err(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
		wire.OK(w, http.StatusOK, map[string]any{"ready": true})
	}
}
