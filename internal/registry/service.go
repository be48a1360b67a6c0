package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

const (
	maxCandidates    = 5
	maxAssignRetries = 3
	assignDeadline   = 2 * time.Second
)

// TokenSource returns the GC's own currently-valid service bearer token, as
// published by the background OAuth token manager.
type TokenSource func() string

// Service owns MC/MH registration, heartbeats, and meeting assignment.
type Service struct {
	mc          *repository.MeetingControllerRepository
	mh          *repository.MediaHandlerRepository
	assignments *repository.MeetingAssignmentRepository
	meetings    *repository.MeetingRepository
	region      string
	stale       time.Duration
	assigner    *assignClient
	logger      *slog.Logger
}

// New builds a registry Service. region scopes candidate selection to the
// GC's own operating region.
func New(
	mc *repository.MeetingControllerRepository,
	mh *repository.MediaHandlerRepository,
	assignments *repository.MeetingAssignmentRepository,
	meetings *repository.MeetingRepository,
	region string,
	staleThreshold time.Duration,
	tokens TokenSource,
	logger *slog.Logger,
) *Service {
	return &Service{
		mc: mc, mh: mh, assignments: assignments, meetings: meetings,
		region: region, stale: staleThreshold,
		assigner: newAssignClient(tokens, assignDeadline),
		logger:   logger,
	}
}

// RegisterMC upserts a meeting-controller registration.
func (s *Service) RegisterMC(ctx context.Context, c *repository.MeetingController) error {
	return s.mc.Upsert(ctx, c)
}

// RegisterMH upserts a media-handler registration.
func (s *Service) RegisterMH(ctx context.Context, h *repository.MediaHandler) error {
	return s.mh.Upsert(ctx, h)
}

// FastHeartbeat records a controller's lightweight counter-only heartbeat,
// preserving its current health status.
func (s *Service) FastHeartbeat(ctx context.Context, controllerID string, currentMeetings, currentParticipants int) error {
	existing, err := s.mc.GetByID(ctx, controllerID)
	if err != nil {
		return err
	}
	return s.mc.Heartbeat(ctx, controllerID, currentMeetings, currentParticipants, existing.HealthStatus)
}

// ComprehensiveHeartbeat records a controller's full health report.
func (s *Service) ComprehensiveHeartbeat(ctx context.Context, controllerID string, currentMeetings, currentParticipants int, status repository.HealthStatus) error {
	existing, err := s.mc.GetByID(ctx, controllerID)
	if err == nil && existing.HealthStatus != status {
		telemetry.RegistryHealthTransitionsTotal.WithLabelValues("meeting_controller", string(status)).Inc()
	}
	return s.mc.Heartbeat(ctx, controllerID, currentMeetings, currentParticipants, status)
}

// MHFastHeartbeat records a media handler's lightweight counter-only
// heartbeat, preserving its current health status.
func (s *Service) MHFastHeartbeat(ctx context.Context, handlerID string, currentStreams int) error {
	existing, err := s.mh.GetByID(ctx, handlerID)
	if err != nil {
		return err
	}
	return s.mh.Heartbeat(ctx, handlerID, currentStreams, existing.CPUPercent, existing.MemPercent, existing.BandwidthPercent, existing.HealthStatus)
}

// MHHeartbeat records a media handler's load and resource report.
func (s *Service) MHHeartbeat(ctx context.Context, handlerID string, currentStreams int, cpuPct, memPct, bwPct *float64, status repository.HealthStatus) error {
	existing, err := s.mh.GetByID(ctx, handlerID)
	if err == nil && existing.HealthStatus != status {
		telemetry.RegistryHealthTransitionsTotal.WithLabelValues("media_handler", string(status)).Inc()
	}
	return s.mh.Heartbeat(ctx, handlerID, currentStreams, cpuPct, memPct, bwPct, status)
}

// AssignMeeting reuses an existing active assignment if present, otherwise
// selects a controller and media handler pair by weighted random load,
// reserving the assignment row before confirming it with the chosen
// controller.
func (s *Service) AssignMeeting(ctx context.Context, meetingID uuid.UUID) (*repository.MeetingAssignment, error) {
	if existing, err := s.assignments.GetActiveByMeeting(ctx, meetingID); err == nil {
		return existing, nil
	} else if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindNotFound {
		return nil, err
	}

	excluded := map[string]struct{}{}
	for attempt := 0; attempt < maxAssignRetries; attempt++ {
		controllerID, err := s.pickController(ctx, excluded)
		if err != nil {
			return nil, err
		}

		primaryID, backupID, err := s.pickMediaHandlers(ctx)
		if err != nil {
			return nil, err
		}

		reserved := &repository.MeetingAssignment{
			MeetingID: meetingID, ControllerID: controllerID,
			HandlerPrimaryID: primaryID, HandlerBackupID: backupID,
		}
		inserted, err := s.assignments.ReserveActive(ctx, reserved)
		if err != nil {
			return nil, err
		}
		if !inserted {
			active, err := s.assignments.GetActiveByMeeting(ctx, meetingID)
			if err != nil {
				return nil, err
			}
			return active, nil
		}

		controller, err := s.mc.GetByID(ctx, controllerID)
		if err != nil {
			return nil, err
		}
		if err := s.assigner.assignMeetingWithMH(ctx, controller.GRPCEndpoint, meetingID, primaryID, backupID); err != nil {
			s.logger.Warn("meeting controller refused assignment", "controller_id", controllerID, "error", err)
			if markErr := s.assignments.MarkInactive(ctx, meetingID); markErr != nil {
				s.logger.Error("marking assignment inactive", "error", markErr)
			}
			excluded[controllerID] = struct{}{}
			telemetry.AssignmentsTotal.WithLabelValues("refused").Inc()
			continue
		}

		if err := s.meetings.UpdateControllerAssignment(ctx, meetingID, controllerID, s.region); err != nil {
			return nil, err
		}
		telemetry.AssignmentsTotal.WithLabelValues("assigned").Inc()
		return reserved, nil
	}

	telemetry.AssignmentsTotal.WithLabelValues("exhausted").Inc()
	return nil, apperr.New(apperr.KindInternal, "no meeting controller accepted the assignment")
}

func (s *Service) pickController(ctx context.Context, excluded map[string]struct{}) (string, error) {
	candidates, err := s.mc.SelectCandidates(ctx, s.region, s.stale, maxCandidates+len(excluded))
	if err != nil {
		return "", err
	}
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, skip := excluded[c.ControllerID]; skip {
			continue
		}
		filtered = append(filtered, Candidate{
			ID:              c.ControllerID,
			LoadRatio:       float64(c.CurrentMeetings) / float64(c.MaxMeetings),
			LastHeartbeatNs: c.LastHeartbeatAt.UnixNano(),
		})
		if len(filtered) >= maxCandidates {
			break
		}
	}
	if len(filtered) == 0 {
		return "", apperr.New(apperr.KindInternal, "no healthy meeting controller available")
	}
	chosen, err := WeightedSelect(filtered)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return chosen.ID, nil
}

func (s *Service) pickMediaHandlers(ctx context.Context) (primary string, backup *string, err error) {
	candidates, err := s.mh.SelectCandidates(ctx, s.region, s.stale, maxCandidates)
	if err != nil {
		return "", nil, err
	}
	if len(candidates) == 0 {
		return "", nil, apperr.New(apperr.KindInternal, "no healthy media handler available")
	}

	weighted := make([]Candidate, len(candidates))
	byID := make(map[string]*repository.MediaHandler, len(candidates))
	for i, h := range candidates {
		weighted[i] = Candidate{
			ID:              h.HandlerID,
			LoadRatio:       float64(h.CurrentStreams) / float64(h.MaxStreams),
			LastHeartbeatNs: h.LastHeartbeatAt.UnixNano(),
		}
		byID[h.HandlerID] = h
	}

	chosenPrimary, err := WeightedSelect(weighted)
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	primary = chosenPrimary.ID

	if len(weighted) < 2 {
		return primary, nil, nil
	}
	remaining := make([]Candidate, 0, len(weighted)-1)
	for _, c := range weighted {
		if c.ID != primary {
			remaining = append(remaining, c)
		}
	}
	chosenBackup, err := WeightedSelect(remaining)
	if err != nil {
		return primary, nil, nil
	}
	backupID := chosenBackup.ID
	return primary, &backupID, nil
}
