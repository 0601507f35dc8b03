package middleware

import (
	"net/http"

	"shortly/internal/domain/auth"
	"shortly/internal/transport/http/api"
)

// RequireAdmin re-checks the admin role on every administrative route even
// though tokens already carry it; the workflow never trusts a stale claim
// path.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		if user.Role != auth.RoleAdmin {
			api.Fail(w, http.StatusForbidden, "forbidden", "admin role required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
