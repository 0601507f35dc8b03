package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID       string
	Email    string
	Name     string
	Role     string
	Password string
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, name, role, password_hash
    FROM users
    WHERE email = $1 AND status = $2
  `, email, UserStatusActive).Scan(&out.ID, &out.Email, &out.Name, &out.Role, &out.Password)
	return out, err
}
