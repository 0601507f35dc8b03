package settingshandler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shortly/internal/domain/audit"
	"shortly/internal/domain/settings"
	"shortly/internal/transport/http/api"
	"shortly/internal/transport/http/middleware"
	"shortly/internal/transport/http/shared"
)

type Handler struct {
	store *settings.Store
	audit *audit.Service
}

func NewHandler(store *settings.Store, auditSvc *audit.Service) *Handler {
	return &Handler{store: store, audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/settings/maintenance", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMaintenance(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load maintenance settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, m, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Enabled bool   `json:"enabled"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	m, err := h.store.SetMaintenance(r.Context(), payload.Enabled, payload.Message, user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to update maintenance settings", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.audit.Record(r.Context(), audit.Entry{
		AdminID:    user.UserID,
		ActionType: audit.ActionMaintenanceUpdate,
		TargetType: "settings",
		TargetID:   "maintenance",
		Metadata:   map[string]any{"enabled": payload.Enabled, "version": m.Version},
		IPAddress:  shared.ClientIP(r),
	}); err != nil {
		slog.Warn("audit maintenance_update failed", "err", err)
	}

	api.Success(w, m, middleware.GetRequestID(r.Context()))
}
