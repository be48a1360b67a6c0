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

// Organization is a tenant of the platform.
type Organization struct {
	OrgID                     uuid.UUID
	Subdomain                 string
	DisplayName               string
	PlanTier                  string
	MaxConcurrentMeetings     int
	MaxParticipantsPerMeeting int
	IsActive                  bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// OrganizationRepository provides parameterized access to organizations.
type OrganizationRepository struct {
	db DBTX
}

func NewOrganizationRepository(db DBTX) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const orgColumns = `org_id, subdomain, display_name, plan_tier, max_concurrent_meetings, max_participants_per_meeting, is_active, created_at, updated_at`

func scanOrganization(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.OrgID, &o.Subdomain, &o.DisplayName, &o.PlanTier,
		&o.MaxConcurrentMeetings, &o.MaxParticipantsPerMeeting, &o.IsActive,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new organization administratively.
func (r *OrganizationRepository) Create(ctx context.Context, o *Organization) (*Organization, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO organizations (org_id, subdomain, display_name, plan_tier, max_concurrent_meetings, max_participants_per_meeting, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING %s`, orgColumns),
		uuid.New(), o.Subdomain, o.DisplayName, o.PlanTier, o.MaxConcurrentMeetings, o.MaxParticipantsPerMeeting,
	)
	created, err := scanOrganization(row)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return created, nil
}

// GetByID fetches an active organization by its ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM organizations WHERE org_id = $1 AND is_active`, orgColumns), orgID)
	o, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("organization")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return o, nil
}

// GetBySubdomain fetches an active organization by its subdomain. Subdomain
// uniqueness is enforced among active rows by a partial unique index.
func (r *OrganizationRepository) GetBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM organizations WHERE subdomain = $1 AND is_active`, orgColumns), subdomain)
	o, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("organization")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return o, nil
}
