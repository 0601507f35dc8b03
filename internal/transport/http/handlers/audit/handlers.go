package audithandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shortly/internal/domain/audit"
	"shortly/internal/transport/http/api"
	"shortly/internal/transport/http/middleware"
	"shortly/internal/transport/http/shared"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAdmin).Get("/admin/actions", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		ActionType: r.URL.Query().Get("actionType"),
		TargetID:   r.URL.Query().Get("targetId"),
		AdminID:    r.URL.Query().Get("adminId"),
	}
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.service.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "actions_list_failed", "failed to list admin actions", middleware.GetRequestID(r.Context()))
		return
	}

	actions, err := h.service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "actions_list_failed", "failed to list admin actions", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]any{
		"total":   total,
		"actions": actions,
	}, middleware.GetRequestID(r.Context()))
}
