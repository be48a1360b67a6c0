package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/meetplane/internal/apperr"
)

// AssignmentStatus enumerates the MeetingAssignment lifecycle.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentInactive AssignmentStatus = "inactive"
	AssignmentExpired  AssignmentStatus = "expired"
)

// MeetingAssignment binds a meeting to its controller and media handler pair.
type MeetingAssignment struct {
	MeetingID        uuid.UUID
	ControllerID     string
	HandlerPrimaryID string
	HandlerBackupID  *string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	Status           AssignmentStatus
}

// MeetingAssignmentRepository provides parameterized access to meeting_assignments.
type MeetingAssignmentRepository struct {
	db DBTX
}

func NewMeetingAssignmentRepository(db DBTX) *MeetingAssignmentRepository {
	return &MeetingAssignmentRepository{db: db}
}

const assignmentColumns = `meeting_id, controller_id, handler_primary_id, handler_backup_id, created_at, last_activity_at, status`

func scanAssignment(row pgx.Row) (*MeetingAssignment, error) {
	var a MeetingAssignment
	err := row.Scan(&a.MeetingID, &a.ControllerID, &a.HandlerPrimaryID, &a.HandlerBackupID,
		&a.CreatedAt, &a.LastActivityAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ReserveActive attempts to insert an active assignment row, doing nothing
// if one already exists for the meeting — at most one active row per
// meeting is enforced by a partial unique index on meeting_id. Callers that
// lose the race should GetActiveByMeeting to read back the winner.
func (r *MeetingAssignmentRepository) ReserveActive(ctx context.Context, a *MeetingAssignment) (inserted bool, err error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO meeting_assignments (meeting_id, controller_id, handler_primary_id, handler_backup_id, created_at, last_activity_at, status)
		VALUES ($1, $2, $3, $4, now(), now(), 'active')
		ON CONFLICT (meeting_id) WHERE status = 'active' DO NOTHING`,
		a.MeetingID, a.ControllerID, a.HandlerPrimaryID, a.HandlerBackupID,
	)
	if err != nil {
		return false, apperr.Database(err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetActiveByMeeting returns the current active assignment for a meeting.
func (r *MeetingAssignmentRepository) GetActiveByMeeting(ctx context.Context, meetingID uuid.UUID) (*MeetingAssignment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM meeting_assignments
		WHERE meeting_id = $1 AND status = 'active'`, meetingID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting assignment")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return a, nil
}

// MarkInactive flips an assignment out of the active state, e.g. after the
// chosen controller refuses the assignment upstream.
func (r *MeetingAssignmentRepository) MarkInactive(ctx context.Context, meetingID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE meeting_assignments SET status = 'inactive', last_activity_at = now()
		WHERE meeting_id = $1 AND status = 'active'`, meetingID)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// TouchActivity bumps last_activity_at so the cleanup sweep does not reap a
// meeting that is still in use.
func (r *MeetingAssignmentRepository) TouchActivity(ctx context.Context, meetingID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE meeting_assignments SET last_activity_at = now() WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// ExpireInactiveSince flips every active assignment whose last_activity_at
// predates cutoff to inactive, returning the count affected.
func (r *MeetingAssignmentRepository) ExpireInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE meeting_assignments SET status = 'inactive'
		WHERE status = 'active' AND last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan permanently removes inactive/expired rows past the
// retention cutoff.
func (r *MeetingAssignmentRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM meeting_assignments
		WHERE status IN ('inactive', 'expired') AND last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return tag.RowsAffected(), nil
}
