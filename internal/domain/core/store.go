package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, name, role, status, created_at
    FROM users
    WHERE id = $1
  `, userID).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListLinks(ctx context.Context, userID string, limit, offset int) ([]Link, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, slug, target_url, clicks, created_at
    FROM links
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.UserID, &l.Slug, &l.TargetURL, &l.Clicks, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CountLinks(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM links WHERE user_id = $1", userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
