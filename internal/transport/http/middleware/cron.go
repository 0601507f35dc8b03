package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"shortly/internal/transport/http/api"
)

// CronAuth guards scheduler-triggered endpoints with a static shared secret.
// A missing or wrong credential rejects the call before any processing.
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "scheduler endpoint disabled", GetRequestID(r.Context()))
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "scheduler credential required", GetRequestID(r.Context()))
				return
			}
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(secret)) != 1 {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "invalid scheduler credential", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
