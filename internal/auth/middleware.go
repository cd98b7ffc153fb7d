package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const (
	// HeaderAPIKey carries the client key on every request.
	HeaderAPIKey = "X-API-Key"
	// HeaderAdminKey carries the admin key on gated endpoints.
	HeaderAdminKey = "X-Admin-Key"
)

// Keys configures the middleware. AdminKeyHash, when set, takes precedence
// over AdminKey and is compared with bcrypt; the plain keys are compared in
// constant time.
type Keys struct {
	APIKey       string
	AdminKey     string
	AdminKeyHash string
}

type apiError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Status: "error", Message: msg})
}

func equalKeys(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireKey rejects requests that do not present the API key.
func RequireKey(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if got == "" {
				writeErr(w, http.StatusUnauthorized, "missing api key")
				return
			}
			if !equalKeys(got, keys.APIKey) {
				writeErr(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates destructive and config-mutation endpoints. With no admin
// key configured the gate is a no-op; the surrounding RequireKey still
// applies.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.AdminKey == "" && keys.AdminKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(HeaderAdminKey)
			if got == "" {
				writeErr(w, http.StatusForbidden, "admin access required")
				return
			}
			if keys.AdminKeyHash != "" {
				if bcrypt.CompareHashAndPassword([]byte(keys.AdminKeyHash), []byte(got)) != nil {
					writeErr(w, http.StatusForbidden, "admin access required")
					return
				}
			} else if !equalKeys(got, keys.AdminKey) {
				writeErr(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
