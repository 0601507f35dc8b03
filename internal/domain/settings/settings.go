package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyMaintenance = "maintenance"

// Maintenance is a persisted, versioned record rather than process memory so
// the flag survives restarts and is shared across instances.
type Maintenance struct {
	Enabled   bool      `json:"enabled"`
	Message   string    `json:"message"`
	Version   int64     `json:"version"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type maintenanceValue struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetMaintenance(ctx context.Context) (Maintenance, error) {
	var (
		raw       []byte
		out       Maintenance
		updatedBy *string
	)
	err := s.DB.QueryRow(ctx, `
    SELECT value, version, updated_by, updated_at
    FROM app_settings
    WHERE key = $1
  `, keyMaintenance).Scan(&raw, &out.Version, &updatedBy, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Maintenance{}, nil
	}
	if err != nil {
		return Maintenance{}, err
	}

	var value maintenanceValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return Maintenance{}, err
	}
	out.Enabled = value.Enabled
	out.Message = value.Message
	if updatedBy != nil {
		out.UpdatedBy = *updatedBy
	}
	return out, nil
}

// MaintenanceEnabled is the cheap read used by the request-path gate.
func (s *Store) MaintenanceEnabled(ctx context.Context) (bool, string, error) {
	m, err := s.GetMaintenance(ctx)
	if err != nil {
		return false, "", err
	}
	return m.Enabled, m.Message, nil
}

func (s *Store) SetMaintenance(ctx context.Context, enabled bool, message, adminID string) (Maintenance, error) {
	raw, err := json.Marshal(maintenanceValue{Enabled: enabled, Message: message})
	if err != nil {
		return Maintenance{}, err
	}

	out := Maintenance{Enabled: enabled, Message: message, UpdatedBy: adminID}
	err = s.DB.QueryRow(ctx, `
    INSERT INTO app_settings (key, value, version, updated_by, updated_at)
    VALUES ($1, $2, 1, $3, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        version = app_settings.version + 1,
        updated_by = EXCLUDED.updated_by,
        updated_at = now()
    RETURNING version, updated_at
  `, keyMaintenance, raw, adminID).Scan(&out.Version, &out.UpdatedAt)
	if err != nil {
		return Maintenance{}, err
	}
	return out, nil
}
