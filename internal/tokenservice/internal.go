package tokenservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/crypto"
)

const (
	meetingTokenTTL = 15 * time.Minute
	guestTokenTTL   = 10 * time.Minute
)

// MeetingTokenRequest carries the inputs for the internal meeting-token
// mint, called server-to-server by the GC on a user's behalf.
type MeetingTokenRequest struct {
	UserID       uuid.UUID
	OrgID        uuid.UUID
	MeetingID    uuid.UUID
	Capabilities []string
}

// IssueMeetingToken mints a short-lived token scoped to one meeting, for a
// participant who has already authenticated with the GC.
func (s *Service) IssueMeetingToken(ctx context.Context, req MeetingTokenRequest) (*TokenResult, error) {
	return s.signMeetingToken(ctx, req.UserID.String(), req.OrgID.String(), req.MeetingID.String(), req.Capabilities, meetingTokenTTL, false)
}

// GuestTokenRequest carries the inputs for a guest's reduced-capability
// meeting token.
type GuestTokenRequest struct {
	ParticipantID string
	MeetingID     uuid.UUID
	Capabilities  []string
}

// IssueGuestToken mints a shorter-lived, reduced-capability token for an
// unauthenticated guest joining a meeting with allow_guests enabled.
func (s *Service) IssueGuestToken(ctx context.Context, req GuestTokenRequest) (*TokenResult, error) {
	return s.signMeetingToken(ctx, req.ParticipantID, "", req.MeetingID.String(), req.Capabilities, guestTokenTTL, true)
}

func (s *Service) signMeetingToken(ctx context.Context, subject, orgID, meetingID string, capabilities []string, ttl time.Duration, guest bool) (*TokenResult, error) {
	keyID, pkcs8, err := s.keys.ActivePrivateKey(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	priv, err := crypto.ParsePrivateKeyPKCS8(pkcs8)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	scope := ""
	for i, c := range capabilities {
		if i > 0 {
			scope += " "
		}
		scope += c
	}

	now := s.now()
	token, err := crypto.SignJWT(crypto.Claims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		OrgID:     orgID,
		MeetingID: meetingID,
		Scope:     scope,
		Guest:     guest,
		JTI:       uuid.New().String(),
	}, priv, keyID)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		Scope:       scope,
	}, nil
}
