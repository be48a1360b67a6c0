// Package meetings implements meeting creation under the per-org
// concurrent-meeting cap, and the join/guest-token flows that hand a
// participant off to an assigned meeting controller.
package meetings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

const maxCodeRetries = 3

// Service creates and looks up meetings.
type Service struct {
	meetings *repository.MeetingRepository
	orgs     *repository.OrganizationRepository
	audit    *audit.Writer
	logger   *slog.Logger
}

// New builds a meetings Service.
func New(meetings *repository.MeetingRepository, orgs *repository.OrganizationRepository, auditWriter *audit.Writer, logger *slog.Logger) *Service {
	return &Service{meetings: meetings, orgs: orgs, audit: auditWriter, logger: logger}
}

// CreateRequest carries the validated meeting-creation inputs.
type CreateRequest struct {
	OrgID           uuid.UUID
	CreatedByUserID uuid.UUID
	DisplayName     string
	MaxParticipants int
	Flags           repository.MeetingFlags
}

// MeetingDTO is the meeting representation returned to clients. It never
// carries join_token_secret.
type MeetingDTO struct {
	MeetingID       uuid.UUID                `json:"meeting_id"`
	OrgID           uuid.UUID                `json:"org_id"`
	DisplayName     string                   `json:"display_name"`
	MeetingCode     string                   `json:"meeting_code"`
	MaxParticipants int                      `json:"max_participants"`
	Flags           repository.MeetingFlags  `json:"flags"`
	Status          repository.MeetingStatus `json:"status"`
}

// Create generates a meeting code and join secret, then invokes the atomic
// capacity-checked insert. Returns apperr.CapacityExceeded if the org is at
// its concurrent-meeting limit.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*MeetingDTO, error) {
	displayName := strings.TrimSpace(req.DisplayName)

	code, err := s.reserveCode(ctx)
	if err != nil {
		return nil, err
	}
	secret, err := generateJoinTokenSecret()
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	meeting, err := s.meetings.CreateUnderCap(ctx, req.OrgID, req.CreatedByUserID, displayName, code, secret, req.MaxParticipants, req.Flags)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		telemetry.MeetingsCreatedTotal.WithLabelValues("capacity_exceeded").Inc()
		return nil, apperr.CapacityExceeded()
	}

	if s.audit != nil {
		s.audit.Log(audit.Entry{
			OrgID:      req.OrgID,
			UserID:     &req.CreatedByUserID,
			Action:     "meeting_created",
			Resource:   "meeting",
			ResourceID: meeting.MeetingID.String(),
		})
	}

	telemetry.MeetingsCreatedTotal.WithLabelValues("created").Inc()
	return toDTO(meeting), nil
}

// GetByCode fetches a meeting by its public code, scoped to the caller's org.
func (s *Service) GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*repository.Meeting, error) {
	m, err := s.meetings.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if m.OrgID != orgID {
		return nil, apperr.NotFound("meeting")
	}
	return m, nil
}

// reserveCode generates a meeting code and retries on collision against the
// unique index over active+scheduled rows, up to maxCodeRetries times.
func (s *Service) reserveCode(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err := generateMeetingCode()
		if err != nil {
			return "", apperr.Crypto(err)
		}
		exists, err := s.meetings.MeetingCodeExists(ctx, code)
		if err != nil {
			lastErr = err
			continue
		}
		if !exists {
			return code, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", apperr.Internal(nil)
}

func toDTO(m *repository.Meeting) *MeetingDTO {
	return &MeetingDTO{
		MeetingID:       m.MeetingID,
		OrgID:           m.OrgID,
		DisplayName:     m.DisplayName,
		MeetingCode:     m.MeetingCode,
		MaxParticipants: m.MaxParticipants,
		Flags:           m.Flags,
		Status:          m.Status,
	}
}
