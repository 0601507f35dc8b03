package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"shortly/internal/domain/auth"
	"shortly/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return nil
	}
	return ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminName, cfg.SeedAdminPassword)
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, name, password string) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE email = $1", email).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO users (email, name, role, password_hash, status)
    VALUES ($1, $2, $3, $4, $5)
  `, email, name, auth.RoleAdmin, hash, auth.UserStatusActive)
	return err
}
