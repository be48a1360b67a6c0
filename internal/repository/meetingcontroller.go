package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/meetplane/internal/apperr"
)

// HealthStatus enumerates the registry health states shared by meeting
// controllers and media handlers.
type HealthStatus string

const (
	HealthPending   HealthStatus = "pending"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDraining  HealthStatus = "draining"
)

// MeetingController is a registry row for one meeting-controller instance.
type MeetingController struct {
	ControllerID         string
	Region               string
	GRPCEndpoint         string
	WebTransportEndpoint *string
	MaxMeetings          int
	MaxParticipants      int
	CurrentMeetings      int
	CurrentParticipants  int
	HealthStatus         HealthStatus
	LastHeartbeatAt      time.Time
	RegisteredAt         time.Time
	UpdatedAt            time.Time
}

// MeetingControllerRepository provides parameterized access to meeting_controllers.
type MeetingControllerRepository struct {
	db DBTX
}

func NewMeetingControllerRepository(db DBTX) *MeetingControllerRepository {
	return &MeetingControllerRepository{db: db}
}

const mcColumns = `controller_id, region, grpc_endpoint, webtransport_endpoint, max_meetings, max_participants,
	current_meetings, current_participants, health_status, last_heartbeat_at, registered_at, updated_at`

func scanMeetingController(row pgx.Row) (*MeetingController, error) {
	var c MeetingController
	err := row.Scan(&c.ControllerID, &c.Region, &c.GRPCEndpoint, &c.WebTransportEndpoint, &c.MaxMeetings,
		&c.MaxParticipants, &c.CurrentMeetings, &c.CurrentParticipants, &c.HealthStatus,
		&c.LastHeartbeatAt, &c.RegisteredAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert registers or re-registers a controller on its natural key
// (controller_id), resetting its health to pending as the registration
// contract requires.
func (r *MeetingControllerRepository) Upsert(ctx context.Context, c *MeetingController) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO meeting_controllers (%s)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 'pending', now(), now(), now())
		ON CONFLICT (controller_id) DO UPDATE SET
			region = excluded.region, grpc_endpoint = excluded.grpc_endpoint,
			webtransport_endpoint = excluded.webtransport_endpoint,
			max_meetings = excluded.max_meetings, max_participants = excluded.max_participants,
			health_status = 'pending', last_heartbeat_at = now(), updated_at = now()`, mcColumns),
		c.ControllerID, c.Region, c.GRPCEndpoint, c.WebTransportEndpoint, c.MaxMeetings, c.MaxParticipants,
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// Heartbeat records the latest load and health report from a controller.
func (r *MeetingControllerRepository) Heartbeat(ctx context.Context, controllerID string, currentMeetings, currentParticipants int, status HealthStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE meeting_controllers
		SET current_meetings = $2, current_participants = $3, health_status = $4,
			last_heartbeat_at = now(), updated_at = now()
		WHERE controller_id = $1`, controllerID, currentMeetings, currentParticipants, status)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// SelectCandidates returns up to limit non-saturated, non-stale, healthy
// controllers in the given region ordered by ascending load ratio, for
// weighted-random selection by the caller.
func (r *MeetingControllerRepository) SelectCandidates(ctx context.Context, region string, staleThreshold time.Duration, limit int) ([]*MeetingController, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM meeting_controllers
		WHERE region = $1
			AND health_status = 'healthy'
			AND current_meetings < max_meetings
			AND last_heartbeat_at > now() - $2::interval
		ORDER BY (current_meetings::float8 / max_meetings::float8) ASC
		LIMIT $3`, mcColumns),
		region, fmt.Sprintf("%d seconds", int(staleThreshold.Seconds())), limit,
	)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var out []*MeetingController
	for rows.Next() {
		c, err := scanMeetingController(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return out, nil
}

// GetByID fetches a single controller row by its natural key.
func (r *MeetingControllerRepository) GetByID(ctx context.Context, controllerID string) (*MeetingController, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM meeting_controllers WHERE controller_id = $1`, mcColumns), controllerID)
	c, err := scanMeetingController(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting controller")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return c, nil
}

// MarkStale demotes every controller whose heartbeat is older than
// staleThreshold and that is neither unhealthy nor draining. Returns the
// number of rows transitioned, for metrics.
func (r *MeetingControllerRepository) MarkStale(ctx context.Context, staleThreshold time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE meeting_controllers
		SET health_status = 'unhealthy', updated_at = now()
		WHERE last_heartbeat_at < now() - $1::interval
			AND health_status NOT IN ('unhealthy', 'draining')`,
		fmt.Sprintf("%d seconds", int(staleThreshold.Seconds())),
	)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return tag.RowsAffected(), nil
}
