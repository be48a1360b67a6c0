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

// MeetingStatus enumerates the Meeting lifecycle states.
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusActive    MeetingStatus = "active"
	MeetingStatusEnded     MeetingStatus = "ended"
	MeetingStatusCancelled MeetingStatus = "cancelled"
)

// MeetingFlags bundles the boolean feature toggles carried by a meeting.
type MeetingFlags struct {
	EnableE2EEncryption       bool
	RequireAuth               bool
	RecordingEnabled          bool
	AllowGuests               bool
	AllowExternalParticipants bool
	WaitingRoomEnabled        bool
}

// Meeting is a scheduled or in-progress conferencing session.
type Meeting struct {
	MeetingID               uuid.UUID
	OrgID                   uuid.UUID
	CreatedByUserID         uuid.UUID
	DisplayName             string
	MeetingCode             string
	JoinTokenSecret         string
	MaxParticipants         int
	Flags                   MeetingFlags
	MeetingControllerID     *string
	MeetingControllerRegion *string
	Status                  MeetingStatus
	ScheduledStartTime      *time.Time
	ActualStartTime         *time.Time
	ActualEndTime           *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// MeetingRepository provides parameterized access to meetings.
type MeetingRepository struct {
	db DBTX
}

func NewMeetingRepository(db DBTX) *MeetingRepository {
	return &MeetingRepository{db: db}
}

const meetingColumns = `meeting_id, org_id, created_by_user_id, display_name, meeting_code, join_token_secret,
	max_participants, enable_e2e_encryption, require_auth, recording_enabled, allow_guests,
	allow_external_participants, waiting_room_enabled, meeting_controller_id, meeting_controller_region,
	status, scheduled_start_time, actual_start_time, actual_end_time, created_at, updated_at`

func scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	err := row.Scan(
		&m.MeetingID, &m.OrgID, &m.CreatedByUserID, &m.DisplayName, &m.MeetingCode, &m.JoinTokenSecret,
		&m.MaxParticipants, &m.Flags.EnableE2EEncryption, &m.Flags.RequireAuth, &m.Flags.RecordingEnabled,
		&m.Flags.AllowGuests, &m.Flags.AllowExternalParticipants, &m.Flags.WaitingRoomEnabled,
		&m.MeetingControllerID, &m.MeetingControllerRegion, &m.Status, &m.ScheduledStartTime,
		&m.ActualStartTime, &m.ActualEndTime, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateUnderCap performs the org concurrent-meeting cap check and the
// meeting insert as one statement, so the check-then-insert can never race.
// A nil return with no error means the org was at capacity.
func (r *MeetingRepository) CreateUnderCap(ctx context.Context, orgID, createdByUserID uuid.UUID, displayName, meetingCode, joinTokenSecret string, requestedMaxParticipants int, flags MeetingFlags) (*Meeting, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		WITH org_limits AS (
			SELECT max_concurrent_meetings, max_participants_per_meeting
			FROM organizations WHERE org_id = $1 AND is_active
		), current_cnt AS (
			SELECT count(*) AS cnt FROM meetings
			WHERE org_id = $1 AND status IN ('scheduled', 'active')
		)
		INSERT INTO meetings (
			meeting_id, org_id, created_by_user_id, display_name, meeting_code, join_token_secret,
			max_participants, enable_e2e_encryption, require_auth, recording_enabled, allow_guests,
			allow_external_participants, waiting_room_enabled, status
		)
		SELECT $2, $1, $3, $4, $5, $6,
			LEAST($7, org_limits.max_participants_per_meeting),
			$8, $9, $10, $11, $12, $13, 'scheduled'
		FROM org_limits, current_cnt
		WHERE current_cnt.cnt < org_limits.max_concurrent_meetings
		RETURNING %s`, meetingColumns),
		orgID, uuid.New(), createdByUserID, displayName, meetingCode, joinTokenSecret, requestedMaxParticipants,
		flags.EnableE2EEncryption, flags.RequireAuth, flags.RecordingEnabled, flags.AllowGuests,
		flags.AllowExternalParticipants, flags.WaitingRoomEnabled,
	)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return m, nil
}

// GetByCode fetches a meeting by its public code among active/scheduled rows.
func (r *MeetingRepository) GetByCode(ctx context.Context, meetingCode string) (*Meeting, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM meetings
		WHERE meeting_code = $1 AND status IN ('scheduled', 'active')`, meetingColumns), meetingCode)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return m, nil
}

// GetByID fetches a meeting by its internal ID, any status.
func (r *MeetingRepository) GetByID(ctx context.Context, meetingID uuid.UUID) (*Meeting, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM meetings WHERE meeting_id = $1`, meetingColumns), meetingID)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return m, nil
}

// UpdateControllerAssignment records which MC now owns the meeting, and
// flips the meeting into active status on its first assignment.
func (r *MeetingRepository) UpdateControllerAssignment(ctx context.Context, meetingID uuid.UUID, controllerID, region string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE meetings
		SET meeting_controller_id = $2, meeting_controller_region = $3,
			status = CASE WHEN status = 'scheduled' THEN 'active' ELSE status END,
			actual_start_time = CASE WHEN actual_start_time IS NULL THEN now() ELSE actual_start_time END,
			updated_at = now()
		WHERE meeting_id = $1`, meetingID, controllerID, region)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// MeetingCodeExists checks whether a code already occupies the unique
// active+scheduled index, used by the generator's collision-retry loop.
func (r *MeetingRepository) MeetingCodeExists(ctx context.Context, meetingCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT exists(SELECT 1 FROM meetings WHERE meeting_code = $1 AND status IN ('scheduled', 'active'))`,
		meetingCode,
	).Scan(&exists)
	if err != nil {
		return false, apperr.Database(err)
	}
	return exists, nil
}
