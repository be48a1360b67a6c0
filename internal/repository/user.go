package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/meetplane/internal/apperr"
)

// User is an end user belonging to exactly one organization.
type User struct {
	UserID       uuid.UUID
	OrgID        uuid.UUID
	Email        string
	PasswordHash string
	DisplayName  string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository provides parameterized access to users.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, org_id, email, password_hash, display_name, is_active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.OrgID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create registers a new user. (org_id, email) uniqueness is enforced by the
// database; a conflict surfaces as apperr.KindConflict.
func (r *UserRepository) Create(ctx context.Context, orgID uuid.UUID, email, passwordHash, displayName string) (*User, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO users (user_id, org_id, email, password_hash, display_name, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING %s`, userColumns),
		uuid.New(), orgID, email, passwordHash, displayName,
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" {
			return nil, apperr.New(apperr.KindConflict, "a user with this email already exists")
		}
		return nil, apperr.Database(err)
	}
	return u, nil
}

// GetByOrgAndEmail looks up an active user by (org_id, email).
func (r *UserRepository) GetByOrgAndEmail(ctx context.Context, orgID uuid.UUID, email string) (*User, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE org_id = $1 AND email = $2 AND is_active`, userColumns), orgID, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return u, nil
}

// GetByID fetches an active user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE user_id = $1 AND is_active`, userColumns), userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return u, nil
}

// TouchLastLogin sets last_login_at to now.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = now(), updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}
