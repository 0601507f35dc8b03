package deletion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shortly/internal/domain/audit"
	"shortly/internal/domain/core"
	"shortly/internal/domain/notifications"
	"shortly/internal/platform/report"
)

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*core.User, error)
}

// Policy holds the workflow's timing constants; both come from configuration.
type Policy struct {
	ConfirmWindow time.Duration
	DeletionDelay time.Duration
	AppBaseURL    string
}

type Service struct {
	store    *Store
	users    UserStore
	audit    *audit.Service
	notifier *notifications.Service
	reports  *report.Service
	policy   Policy
}

func NewService(store *Store, users UserStore, auditSvc *audit.Service, notifier *notifications.Service, reports *report.Service, policy Policy) *Service {
	return &Service{
		store:    store,
		users:    users,
		audit:    auditSvc,
		notifier: notifier,
		reports:  reports,
		policy:   policy,
	}
}

// IssueRequest opens a deletion lifecycle for the target user in pending
// state and notifies the issuing admin with confirm and cancel links.
func (s *Service) IssueRequest(ctx context.Context, userID string, admin Actor, reason string) (*DeleteRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	active, err := s.store.ActiveExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRequestExists
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.policy.ConfirmWindow)
	req, err := s.store.Insert(ctx, userID, admin.ID, reason, token, expiresAt)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Entry{
		AdminID:     admin.ID,
		ActionType:  audit.ActionDeleteUserRequest,
		TargetType:  audit.TargetTypeUser,
		TargetID:    userID,
		TargetEmail: user.Email,
		Reason:      reason,
		IPAddress:   admin.IP,
	})

	confirmLink, cancelLink := ActionLinks(s.policy.AppBaseURL, userID, token)
	s.notifier.Notify(ctx, notifications.Event{
		TargetName:  user.Name,
		TargetEmail: user.Email,
		AdminEmail:  admin.Email,
		AdminName:   s.adminName(ctx, admin),
		Reason:      reason,
		Status:      StatusPending,
		ConfirmLink: confirmLink,
		CancelLink:  cancelLink,
	})

	return req, nil
}

// ConfirmRequest schedules execution a fixed delay after confirmation. Wrong,
// expired, and already-used tokens all fail with ErrRequestNotFound.
func (s *Service) ConfirmRequest(ctx context.Context, userID, token string, admin Actor) (time.Time, error) {
	now := time.Now()
	scheduledAt := now.Add(s.policy.DeletionDelay)

	requestID, reason, ok, err := s.store.ConfirmPending(ctx, userID, token, now, scheduledAt)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrRequestNotFound
	}

	targetEmail, targetName := "", ""
	if user, userErr := s.users.GetUser(ctx, userID); userErr == nil {
		targetEmail = user.Email
		targetName = user.Name
	}

	s.recordAudit(ctx, audit.Entry{
		AdminID:     admin.ID,
		ActionType:  audit.ActionDeleteUser,
		TargetType:  audit.TargetTypeUser,
		TargetID:    userID,
		TargetEmail: targetEmail,
		Reason:      reason,
		Metadata:    map[string]any{"requestId": requestID, "scheduledDeletionAt": scheduledAt},
		IPAddress:   admin.IP,
	})

	// The request can still be aborted until the sweep claims it, so the
	// confirmation notice carries the cancel link.
	_, cancelLink := ActionLinks(s.policy.AppBaseURL, userID, token)
	s.notifier.Notify(ctx, notifications.Event{
		TargetName:  targetName,
		TargetEmail: targetEmail,
		AdminEmail:  admin.Email,
		AdminName:   s.adminName(ctx, admin),
		Reason:      reason,
		Status:      StatusConfirmed,
		CancelLink:  cancelLink,
	})

	return scheduledAt, nil
}

// CancelRequest aborts a pending or confirmed request. Cancellation is only
// effective if it lands before the sweep claims the request.
func (s *Service) CancelRequest(ctx context.Context, userID, token string, admin Actor) error {
	req, ok, err := s.store.CancelActive(ctx, userID, token, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}

	targetEmail, targetName := "", ""
	if user, userErr := s.users.GetUser(ctx, userID); userErr == nil {
		targetEmail = user.Email
		targetName = user.Name
	}

	s.recordAudit(ctx, audit.Entry{
		AdminID:     admin.ID,
		ActionType:  audit.ActionCancelDeleteUser,
		TargetType:  audit.TargetTypeUser,
		TargetID:    userID,
		TargetEmail: targetEmail,
		Reason:      req.Reason,
		Metadata:    map[string]any{"requestId": req.ID},
		IPAddress:   admin.IP,
	})

	s.notifier.Notify(ctx, notifications.Event{
		TargetName:  targetName,
		TargetEmail: targetEmail,
		AdminEmail:  admin.Email,
		AdminName:   s.adminName(ctx, admin),
		Reason:      req.Reason,
		Status:      StatusCancelled,
	})

	return nil
}

func (s *Service) ListRequestsForUser(ctx context.Context, userID string) ([]RequestWithAdmin, error) {
	return s.store.ListForUser(ctx, userID)
}

// Actor is the acting administrator, taken from the authenticated session.
type Actor struct {
	ID    string
	Email string
	Name  string
	IP    string
}

func (s *Service) adminName(ctx context.Context, admin Actor) string {
	if admin.Name != "" {
		return admin.Name
	}
	if issuer, err := s.users.GetUser(ctx, admin.ID); err == nil {
		return issuer.Name
	}
	return ""
}

// Audit writes are best-effort: a failed record must not abort the primary
// transition, but it must be surfaced in the logs.
func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.Warn("admin action audit write failed", "actionType", entry.ActionType, "targetId", entry.TargetID, "err", err)
	}
}
