package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"shortly/internal/domain/auth"
	"shortly/internal/transport/http/api"
)

type MaintenanceStore interface {
	MaintenanceEnabled(ctx context.Context) (bool, string, error)
}

// Maintenance returns 503 for non-admin traffic while the persisted
// maintenance flag is enabled. Admin routes, health checks, the login
// endpoint, and scheduler-triggered job routes stay reachable: the mode must
// be switchable off again and must never pause confirmed deletions.
func Maintenance(store MaintenanceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maintenanceExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			enabled, message, err := store.MaintenanceEnabled(r.Context())
			if err != nil {
				slog.Warn("maintenance flag lookup failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			if user, ok := GetUser(r.Context()); ok && user.Role == auth.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			if message == "" {
				message = "service is under maintenance"
			}
			api.Fail(w, http.StatusServiceUnavailable, "maintenance", message, GetRequestID(r.Context()))
		})
	}
}

func maintenanceExempt(r *http.Request) bool {
	path := r.URL.Path
	if path == "/healthz" || path == "/readyz" {
		return true
	}
	if strings.HasPrefix(path, "/api/v1/jobs/") {
		return true
	}
	return strings.HasPrefix(path, "/api/v1/auth/")
}
