package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
)

// AuthEvent records a single credential check, success or failure, used to
// drive lockout and for the security audit trail.
type AuthEvent struct {
	EventID      uuid.UUID
	CredentialID *uuid.UUID
	UserID       *uuid.UUID
	ClientID     string
	EventType    string
	Success      bool
	IPAddress    string
	CreatedAt    time.Time
}

const (
	AuthEventTypeServiceToken = "service_token"
	AuthEventTypeUserLogin    = "user_login"
)

// AuthEventRepository provides parameterized access to auth_events.
type AuthEventRepository struct {
	db DBTX
}

func NewAuthEventRepository(db DBTX) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Insert records one attempt. Errors writing the audit trail never abort the
// caller's request, so callers generally log and swallow this error.
func (r *AuthEventRepository) Insert(ctx context.Context, e *AuthEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_events (event_id, credential_id, user_id, client_id, event_type, success, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		uuid.New(), e.CredentialID, e.UserID, e.ClientID, e.EventType, e.Success, e.IPAddress,
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// CountFailedSince counts failed service-token attempts for a client_id
// since the given time, used to gate the lockout threshold. Every failure in
// the window counts; a success in between does not reset the count.
func (r *AuthEventRepository) CountFailedSince(ctx context.Context, clientID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM auth_events
		WHERE client_id = $1 AND event_type = $2 AND NOT success AND created_at >= $3`,
		clientID, AuthEventTypeServiceToken, since,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return count, nil
}

// CountFailedLoginsSince is the user-login analogue of CountFailedSince,
// keyed by (org_id, email) rather than client_id since user credentials are
// scoped per organization.
func (r *AuthEventRepository) CountFailedLoginsSince(ctx context.Context, orgEmailKey string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM auth_events
		WHERE client_id = $1 AND event_type = $2 AND NOT success AND created_at >= $3`,
		orgEmailKey, AuthEventTypeUserLogin, since,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return count, nil
}
