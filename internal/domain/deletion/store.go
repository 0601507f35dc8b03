package deletion

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeRequestConstraint = "uq_delete_requests_active"

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Insert(ctx context.Context, userID, adminID, reason, token string, expiresAt time.Time) (*DeleteRequest, error) {
	req := DeleteRequest{
		UserID:    userID,
		AdminID:   adminID,
		Reason:    reason,
		Token:     token,
		Status:    StatusPending,
		ExpiresAt: expiresAt,
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO delete_requests (user_id, admin_id, reason, token, status, expires_at)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at
  `, userID, adminID, reason, token, StatusPending, expiresAt).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		// A concurrent issuance can slip past the ActiveExists pre-check; the
		// partial unique index is the authority.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeRequestConstraint {
			return nil, ErrActiveRequestExists
		}
		return nil, err
	}
	return &req, nil
}

func (s *Store) ActiveExists(ctx context.Context, userID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM delete_requests
    WHERE user_id = $1 AND status IN ($2, $3)
  `, userID, StatusPending, StatusConfirmed).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConfirmPending transitions a matching pending, non-expired request to
// confirmed in a single conditional update. The status predicate is the only
// writer gate: zero affected rows means the token was wrong, expired, or
// already used.
func (s *Store) ConfirmPending(ctx context.Context, userID, token string, now, scheduledAt time.Time) (string, string, bool, error) {
	var requestID, reason string
	err := s.DB.QueryRow(ctx, `
    UPDATE delete_requests
    SET status = $1, scheduled_deletion_at = $2
    WHERE user_id = $3 AND token = $4 AND status = $5 AND expires_at > $6
    RETURNING id, reason
  `, StatusConfirmed, scheduledAt, userID, token, StatusPending, now).Scan(&requestID, &reason)
	if err != nil {
		if isNoRows(err) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	return requestID, reason, true, nil
}

func (s *Store) CancelActive(ctx context.Context, userID, token string, now time.Time) (*DeleteRequest, bool, error) {
	var req DeleteRequest
	err := s.DB.QueryRow(ctx, `
    UPDATE delete_requests
    SET status = $1, completed_at = $2
    WHERE user_id = $3 AND token = $4 AND status IN ($5, $6)
    RETURNING id, user_id, admin_id, reason, status, expires_at, scheduled_deletion_at, completed_at, created_at
  `, StatusCancelled, now, userID, token, StatusPending, StatusConfirmed).Scan(
		&req.ID, &req.UserID, &req.AdminID, &req.Reason, &req.Status,
		&req.ExpiresAt, &req.ScheduledDeletionAt, &req.CompletedAt, &req.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &req, true, nil
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]RequestWithAdmin, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT dr.id, dr.user_id, dr.admin_id, dr.reason, dr.status,
           dr.expires_at, dr.scheduled_deletion_at, dr.completed_at, dr.created_at,
           COALESCE(a.name, ''), COALESCE(a.email, '')
    FROM delete_requests dr
    LEFT JOIN users a ON dr.admin_id = a.id
    WHERE dr.user_id = $1
    ORDER BY dr.created_at DESC
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestWithAdmin
	for rows.Next() {
		var req RequestWithAdmin
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.AdminID, &req.Reason, &req.Status,
			&req.ExpiresAt, &req.ScheduledDeletionAt, &req.CompletedAt, &req.CreatedAt,
			&req.AdminName, &req.AdminEmail,
		); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) DueRequests(ctx context.Context, now time.Time) ([]DeleteRequest, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, admin_id, reason, status, expires_at, scheduled_deletion_at, created_at
    FROM delete_requests
    WHERE status = $1 AND scheduled_deletion_at <= $2
    ORDER BY scheduled_deletion_at
  `, StatusConfirmed, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeleteRequest
	for rows.Next() {
		var req DeleteRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.AdminID, &req.Reason, &req.Status, &req.ExpiresAt, &req.ScheduledDeletionAt, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
