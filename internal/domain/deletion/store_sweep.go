package deletion

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

// ClaimCompletedTx atomically claims a confirmed request for execution by
// moving it to completed. Zero affected rows means a concurrent cancellation
// won; the caller must roll back and skip the item. This conditional update
// is the sole gate for proceeding with deletion.
func (s *Store) ClaimCompletedTx(ctx context.Context, tx pgx.Tx, requestID string, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE delete_requests
    SET status = $1, completed_at = $2
    WHERE id = $3 AND status = $4
  `, StatusCompleted, now, requestID, StatusConfirmed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type TargetUser struct {
	ID    string
	Email string
	Name  string
}

func (s *Store) UserForDeletionTx(ctx context.Context, tx pgx.Tx, userID string) (TargetUser, error) {
	var u TargetUser
	err := tx.QueryRow(ctx, `
    SELECT id, email, name
    FROM users
    WHERE id = $1
    FOR UPDATE
  `, userID).Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return TargetUser{}, ErrUserNotFound
	}
	return u, err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (s *Store) DeleteLinksTx(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	tag, err := tx.Exec(ctx, "DELETE FROM links WHERE user_id = $1", userID)
	return tag.RowsAffected(), err
}

func (s *Store) DeleteNotesTx(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	tag, err := tx.Exec(ctx, "DELETE FROM notes WHERE user_id = $1", userID)
	return tag.RowsAffected(), err
}

func (s *Store) DeleteWarningsTx(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	tag, err := tx.Exec(ctx, "DELETE FROM warnings WHERE user_id = $1", userID)
	return tag.RowsAffected(), err
}

// DeleteAdminActionsTx removes historical audit records that reference the
// user as target. The completion record written after the transaction is the
// one audit trace that survives the erasure.
func (s *Store) DeleteAdminActionsTx(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
    DELETE FROM admin_actions
    WHERE target_type = $1 AND target_id = $2
  `, "user", userID)
	return tag.RowsAffected(), err
}

func (s *Store) DeleteUserTx(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	return err
}
