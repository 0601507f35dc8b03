package deletion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortly/internal/domain/audit"
	"shortly/internal/domain/notifications"
	"shortly/internal/platform/report"
)

// ProcessScheduledDeletions executes every confirmed request whose scheduled
// time has passed. Each request runs in its own transaction; one failure does
// not affect the rest of the batch. Failed items stay confirmed and are
// retried on the next sweep.
func (s *Service) ProcessScheduledDeletions(ctx context.Context) (SweepResult, error) {
	now := time.Now()
	due, err := s.store.DueRequests(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Results: make([]SweepItem, 0, len(due))}
	for _, req := range due {
		item, executed := s.executeOne(ctx, req, now)
		if !executed {
			// A cancellation won the race between selection and claim.
			slog.Info("deletion sweep skipped cancelled request", "requestId", req.ID, "userId", req.UserID)
			continue
		}
		result.Results = append(result.Results, item)
	}
	result.ProcessedCount = len(result.Results)
	return result, nil
}

func (s *Service) executeOne(ctx context.Context, req DeleteRequest, now time.Time) (SweepItem, bool) {
	item := SweepItem{RequestID: req.ID, UserID: req.UserID}

	user, counts, err := s.runDeletionTx(ctx, req, now)
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return SweepItem{}, false
		}
		slog.Warn("deletion execution failed", "requestId", req.ID, "userId", req.UserID, "err", err)
		item.Status = "error"
		item.Error = err.Error()
		return item, true
	}

	s.recordAudit(ctx, audit.Entry{
		AdminID:     req.AdminID,
		ActionType:  audit.ActionDeleteUserCompleted,
		TargetType:  audit.TargetTypeUser,
		TargetID:    req.UserID,
		TargetEmail: user.Email,
		Reason:      req.Reason,
		Metadata:    counts,
	})

	s.writeCompletionReport(req, user, counts, now)
	s.notifyCompletion(ctx, req, user)

	item.Status = "success"
	return item, true
}

var errClaimLost = errors.New("request no longer confirmed")

// runDeletionTx performs the irreversible multi-table erasure. The claim
// update and the data removal commit or roll back together.
func (s *Service) runDeletionTx(ctx context.Context, req DeleteRequest, now time.Time) (TargetUser, RemovedCounts, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	defer tx.Rollback(ctx)

	claimed, err := s.store.ClaimCompletedTx(ctx, tx, req.ID, now)
	if err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	if !claimed {
		return TargetUser{}, RemovedCounts{}, errClaimLost
	}

	user, err := s.store.UserForDeletionTx(ctx, tx, req.UserID)
	if err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}

	var counts RemovedCounts
	if counts.Links, err = s.store.DeleteLinksTx(ctx, tx, req.UserID); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	if counts.Notes, err = s.store.DeleteNotesTx(ctx, tx, req.UserID); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	if counts.Warnings, err = s.store.DeleteWarningsTx(ctx, tx, req.UserID); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	if counts.AdminActions, err = s.store.DeleteAdminActionsTx(ctx, tx, req.UserID); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	if err = s.store.DeleteUserTx(ctx, tx, req.UserID); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TargetUser{}, RemovedCounts{}, err
	}
	return user, counts, nil
}

func (s *Service) writeCompletionReport(req DeleteRequest, user TargetUser, counts RemovedCounts, now time.Time) {
	if s.reports == nil {
		return
	}
	_, err := s.reports.WriteCompletion(report.Completion{
		RequestID:    req.ID,
		UserID:       req.UserID,
		UserEmail:    user.Email,
		UserName:     user.Name,
		AdminID:      req.AdminID,
		Reason:       req.Reason,
		CompletedAt:  now,
		RemovedLinks: counts.Links,
		RemovedNotes: counts.Notes,
		RemovedWarns: counts.Warnings,
		RemovedAudit: counts.AdminActions,
	})
	if err != nil {
		slog.Warn("deletion completion report failed", "requestId", req.ID, "err", err)
	}
}

func (s *Service) notifyCompletion(ctx context.Context, req DeleteRequest, user TargetUser) {
	adminEmail, adminName := "", ""
	if issuer, err := s.users.GetUser(ctx, req.AdminID); err == nil {
		adminEmail = issuer.Email
		adminName = issuer.Name
	}

	s.notifier.Notify(ctx, notifications.Event{
		TargetName:  user.Name,
		TargetEmail: user.Email,
		AdminEmail:  adminEmail,
		AdminName:   adminName,
		Reason:      req.Reason,
		Status:      StatusCompleted,
	})
}
