package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
)

// AuditLog is an append-only record of a user action against a resource.
type AuditLog struct {
	AuditID      uuid.UUID
	OrgID        uuid.UUID
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Details      []byte
	CreatedAt    time.Time
}

// AuditLogRepository provides parameterized access to audit_logs.
type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert records one audit entry. Callers treat a failure here as
// best-effort: writing the audit trail must never fail the caller's request.
func (r *AuditLogRepository) Insert(ctx context.Context, a *AuditLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (audit_id, org_id, user_id, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		uuid.New(), a.OrgID, a.UserID, a.Action, a.ResourceType, a.ResourceID, a.Details,
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// List returns audit entries for an org, newest first, bounded by limit.
func (r *AuditLogRepository) List(ctx context.Context, orgID uuid.UUID, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT audit_id, org_id, user_id, action, resource_type, resource_id, details, created_at
		FROM audit_logs WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var logs []*AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.AuditID, &a.OrgID, &a.UserID, &a.Action, &a.ResourceType, &a.ResourceID, &a.Details, &a.CreatedAt); err != nil {
			return nil, apperr.Database(err)
		}
		logs = append(logs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return logs, nil
}
