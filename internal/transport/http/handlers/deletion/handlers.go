package deletionhandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shortly/internal/domain/deletion"
	"shortly/internal/transport/http/api"
	"shortly/internal/transport/http/middleware"
	"shortly/internal/transport/http/shared"
)

type Handler struct {
	service *deletion.Service
}

func NewHandler(service *deletion.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	admin, ok := actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("reason", payload.Reason, "reason is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.service.IssueRequest(r.Context(), userID, admin, payload.Reason)
	if err != nil {
		h.failFromError(w, r, err, "issue_failed", "failed to issue deletion request")
		return
	}

	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	admin, ok := actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	token, ok := h.requestToken(w, r)
	if !ok {
		return
	}

	scheduledAt, err := h.service.ConfirmRequest(r.Context(), userID, token, admin)
	if err != nil {
		h.failFromError(w, r, err, "confirm_failed", "failed to confirm deletion request")
		return
	}

	api.Success(w, map[string]any{"scheduledDeletionAt": scheduledAt}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	admin, ok := actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	token, ok := h.requestToken(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelRequest(r.Context(), userID, token, admin); err != nil {
		h.failFromError(w, r, err, "cancel_failed", "failed to cancel deletion request")
		return
	}

	api.Success(w, map[string]string{"status": deletion.StatusCancelled}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListRequestsForUser(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list deletion requests", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

// HandleSweep is wired behind middleware.CronAuth by the server; it is the
// external scheduler's entry point, not a user-facing route.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessScheduledDeletions(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "sweep_failed", "deletion sweep failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

// requestToken accepts the token from the JSON body or, for link-driven
// confirmations, the query string.
func (h *Handler) requestToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return "", false
	}
	token := payload.Token
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	v := shared.NewValidator()
	v.Required("token", token, "token is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return "", false
	}
	return token, true
}

func (h *Handler) failFromError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, deletion.ErrEmptyReason):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "reason", Reason: "reason is required"}})
	case errors.Is(err, deletion.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", requestID)
	case errors.Is(err, deletion.ErrRequestNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "deletion request not found", requestID)
	case errors.Is(err, deletion.ErrActiveRequestExists):
		api.Fail(w, http.StatusConflict, "conflict", "an active deletion request already exists", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

// userIDParam rejects a malformed user ID before it reaches the store. The
// response is the same not-found the store would produce for an unknown user.
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return userID, true
}

func actor(r *http.Request) (deletion.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return deletion.Actor{}, false
	}
	return deletion.Actor{
		ID:    user.UserID,
		Email: user.Email,
		IP:    shared.ClientIP(r),
	}, true
}
