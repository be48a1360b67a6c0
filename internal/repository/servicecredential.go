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

// ServiceType enumerates the kinds of service that can hold credentials.
type ServiceType string

const (
	ServiceTypeGlobalController  ServiceType = "global-controller"
	ServiceTypeMeetingController ServiceType = "meeting-controller"
	ServiceTypeMediaHandler      ServiceType = "media-handler"
)

// ServiceCredential is a client-credentials grant identity.
type ServiceCredential struct {
	CredentialID     uuid.UUID
	ClientID         string
	ClientSecretHash string
	ServiceType      ServiceType
	Region           *string
	Scopes           []string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ServiceCredentialRepository provides parameterized access to service_credentials.
type ServiceCredentialRepository struct {
	db DBTX
}

func NewServiceCredentialRepository(db DBTX) *ServiceCredentialRepository {
	return &ServiceCredentialRepository{db: db}
}

const credentialColumns = `credential_id, client_id, client_secret_hash, service_type, region, scopes, is_active, created_at, updated_at`

func scanCredential(row pgx.Row) (*ServiceCredential, error) {
	var c ServiceCredential
	err := row.Scan(&c.CredentialID, &c.ClientID, &c.ClientSecretHash, &c.ServiceType,
		&c.Region, &c.Scopes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create registers a new service credential. client_id uniqueness is
// enforced by the database.
func (r *ServiceCredentialRepository) Create(ctx context.Context, clientID, secretHash string, serviceType ServiceType, region *string, scopes []string) (*ServiceCredential, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO service_credentials (credential_id, client_id, client_secret_hash, service_type, region, scopes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING %s`, credentialColumns),
		uuid.New(), clientID, secretHash, serviceType, region, scopes,
	)
	c, err := scanCredential(row)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" {
			return nil, apperr.New(apperr.KindConflict, "a service credential with this client_id already exists")
		}
		return nil, apperr.Database(err)
	}
	return c, nil
}

// GetByClientID looks up a credential by client_id, active or not — callers
// must check IsActive themselves, since the token-issue path has to take the
// same number of branches whether the credential is missing or merely
// disabled.
func (r *ServiceCredentialRepository) GetByClientID(ctx context.Context, clientID string) (*ServiceCredential, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM service_credentials WHERE client_id = $1`, credentialColumns), clientID)
	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("service credential")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return c, nil
}
