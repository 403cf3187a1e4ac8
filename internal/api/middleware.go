package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"limitd/internal/models"
)

// adminAuthMiddleware enforces bearer-token authentication on the admin API.
// When auth is disabled in the security config the middleware passes every
// request through, which is the expected mode for local development.
func adminAuthMiddleware(sec models.SecurityConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sec.EnableAuth {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Authorization required")
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeAuthError(w, "Invalid authorization format")
				return
			}
			token := authHeader[len(prefix):]
			if sec.AdminToken == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(sec.AdminToken)) != 1 {
				writeAuthError(w, "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// internalRequestMiddleware gates endpoints meant only for other limitd
// instances. Callers identify themselves with the X-Internal-Request header.
func internalRequestMiddleware(sec models.SecurityConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Internal-Request") != sec.InternalHeaderValue {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				errorResp := models.NewErrorResponse(
					"Internal endpoint", models.ErrorCodeForbidden)
				json.NewEncoder(w).Encode(errorResp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	errorResp := models.NewErrorResponse(message, models.ErrorCodeUnauthorized)
	json.NewEncoder(w).Encode(errorResp)
}
