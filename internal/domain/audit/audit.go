package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Action types recorded by the deletion workflow.
const (
	ActionDeleteUserRequest   = "delete_user_request"
	ActionDeleteUser          = "delete_user"
	ActionDeleteUserCompleted = "delete_user_completed"
	ActionCancelDeleteUser    = "cancel_delete_user"
	ActionMaintenanceUpdate   = "maintenance_update"
)

const TargetTypeUser = "user"

// Action is an append-only administrative audit record. Records are never
// updated or deleted, except when the target user's data is erased by the
// deletion workflow.
type Action struct {
	ID          string          `json:"id"`
	AdminID     string          `json:"adminId"`
	ActionType  string          `json:"actionType"`
	TargetType  string          `json:"targetType"`
	TargetID    string          `json:"targetId"`
	TargetEmail string          `json:"targetEmail,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Entry struct {
	AdminID     string
	ActionType  string
	TargetType  string
	TargetID    string
	TargetEmail string
	Reason      string
	Metadata    any
	IPAddress   string
}

type Filter struct {
	ActionType string
	TargetID   string
	AdminID    string
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadataJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO admin_actions (admin_id, action_type, target_type, target_id, target_email, reason, metadata, ip_address)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, entry.AdminID, entry.ActionType, entry.TargetType, entry.TargetID, entry.TargetEmail, entry.Reason, metadataJSON, entry.IPAddress)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := s.buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Action, error) {
	query, args := s.buildBaseQuery(
		"SELECT id, admin_id, action_type, target_type, target_id, target_email, reason, metadata, ip_address, created_at",
		filter,
	)
	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var act Action
		if err := rows.Scan(&act.ID, &act.AdminID, &act.ActionType, &act.TargetType, &act.TargetID, &act.TargetEmail, &act.Reason, &act.Metadata, &act.IPAddress, &act.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, rows.Err()
}

func (s *Service) buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM admin_actions WHERE 1=1"
	args := []any{}
	if filter.ActionType != "" {
		query += fmt.Sprintf(" AND action_type = $%d", len(args)+1)
		args = append(args, filter.ActionType)
	}
	if filter.TargetID != "" {
		query += fmt.Sprintf(" AND target_id = $%d", len(args)+1)
		args = append(args, filter.TargetID)
	}
	if filter.AdminID != "" {
		query += fmt.Sprintf(" AND admin_id::text = $%d", len(args)+1)
		args = append(args, filter.AdminID)
	}
	return query, args
}
