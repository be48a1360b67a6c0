package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
)

// Role is one of the enumerated user role tags.
type Role string

const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleOrgAdmin Role = "org_admin"
)

// UserRoleRepository provides parameterized access to user_roles.
type UserRoleRepository struct {
	db DBTX
}

func NewUserRoleRepository(db DBTX) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// Grant inserts (user_id, role) idempotently — a duplicate grant is a no-op.
func (r *UserRoleRepository) Grant(ctx context.Context, userID uuid.UUID, role Role) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING`, userID, role)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// ListByUser returns every role assigned to userID.
func (r *UserRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role); err != nil {
			return nil, apperr.Database(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return roles, nil
}
