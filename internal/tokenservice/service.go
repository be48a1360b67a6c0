// Package tokenservice issues service (client-credentials) and user
// (password-grant) JWTs, enforcing the lockout and timing-attack defenses
// the token-issue algorithm requires.
package tokenservice

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/keys"
	"github.com/wisbric/meetplane/internal/ratelimit"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

const (
	serviceTokenTTL   = time.Hour
	userTokenTTL      = time.Hour
	lockoutWindow     = 15 * time.Minute
	lockoutThreshold  = 5
	registerRateLimit = 5
	registerWindow    = time.Hour
)

// Service issues and signs access tokens.
type Service struct {
	credentials *repository.ServiceCredentialRepository
	authEvents  *repository.AuthEventRepository
	users       *repository.UserRepository
	userRoles   *repository.UserRoleRepository
	keys        *keys.Service
	registerRL  *ratelimit.Limiter
	audit       *audit.Writer
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a token Service.
func New(
	credentials *repository.ServiceCredentialRepository,
	authEvents *repository.AuthEventRepository,
	users *repository.UserRepository,
	userRoles *repository.UserRoleRepository,
	keySvc *keys.Service,
	registerRL *ratelimit.Limiter,
	auditWriter *audit.Writer,
	logger *slog.Logger,
) *Service {
	return &Service{
		credentials: credentials,
		authEvents:  authEvents,
		users:       users,
		userRoles:   userRoles,
		keys:        keySvc,
		registerRL:  registerRL,
		audit:       auditWriter,
		logger:      logger,
		now:         time.Now,
	}
}

// TokenResult is the OAuth2-shaped response common to every grant.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// ServiceTokenRequest carries the client-credentials grant inputs.
type ServiceTokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string
	IPAddress    string
}

// IssueServiceToken implements the client-credentials grant: reject the
// wrong grant type first; if the credential exists and has reached the
// lockout threshold, return 429 without verifying the secret; otherwise
// always verify the secret (real or dummy hash) so a missing credential and
// a wrong secret cost the same bcrypt work, and only then branch on
// existence, active state, or scope.
func (s *Service) IssueServiceToken(ctx context.Context, req ServiceTokenRequest) (*TokenResult, error) {
	if req.GrantType != "client_credentials" {
		telemetry.TokenFailuresTotal.WithLabelValues("bad_grant_type").Inc()
		return nil, apperr.InvalidCredentials()
	}

	cred, lookupErr := s.credentials.GetByClientID(ctx, req.ClientID)
	credExists := lookupErr == nil

	if credExists {
		since := s.now().Add(-lockoutWindow)
		failures, err := s.authEvents.CountFailedSince(ctx, req.ClientID, since)
		if err != nil {
			return nil, err
		}
		if failures >= lockoutThreshold {
			s.recordAuthEvent(ctx, nil, req.ClientID, false)
			telemetry.TokenFailuresTotal.WithLabelValues("locked_out").Inc()
			return nil, apperr.RateLimitExceeded(int(lockoutWindow.Seconds()))
		}
	}

	storedHash := crypto.DummySecretHash
	if credExists {
		storedHash = cred.ClientSecretHash
	}
	secretOK := crypto.VerifySecret(req.ClientSecret, storedHash)

	if !credExists || !cred.IsActive || !secretOK {
		s.recordAuthEvent(ctx, nil, req.ClientID, false)
		telemetry.TokenFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperr.InvalidCredentials()
	}

	scope := strings.Join(cred.Scopes, " ")
	if req.Scope != "" {
		requested := splitScope(req.Scope)
		if !isSubset(requested, cred.Scopes) {
			telemetry.TokenFailuresTotal.WithLabelValues("insufficient_scope").Inc()
			return nil, apperr.InsufficientScope(req.Scope, cred.Scopes)
		}
		scope = req.Scope
	}

	keyID, pkcs8, err := s.keys.ActivePrivateKey(ctx)
	if err != nil {
		telemetry.TokenFailuresTotal.WithLabelValues("no_signing_key").Inc()
		return nil, apperr.Internal(err)
	}
	priv, err := crypto.ParsePrivateKeyPKCS8(pkcs8)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	now := s.now()
	token, err := crypto.SignJWT(crypto.Claims{
		Subject:     req.ClientID,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(serviceTokenTTL).Unix(),
		Scope:       scope,
		ServiceType: string(cred.ServiceType),
	}, priv, keyID)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	s.recordAuthEvent(ctx, &cred.CredentialID, req.ClientID, true)
	telemetry.TokensIssuedTotal.WithLabelValues("client_credentials").Inc()

	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(serviceTokenTTL.Seconds()),
		Scope:       scope,
	}, nil
}

func (s *Service) recordAuthEvent(ctx context.Context, credentialID *uuid.UUID, clientID string, success bool) {
	err := s.authEvents.Insert(ctx, &repository.AuthEvent{
		CredentialID: credentialID,
		ClientID:     clientID,
		EventType:    repository.AuthEventTypeServiceToken,
		Success:      success,
	})
	if err != nil {
		s.logger.Error("recording auth event", "error", err)
	}
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}

func isSubset(requested, stored []string) bool {
	storedSet := make(map[string]struct{}, len(stored))
	for _, s := range stored {
		storedSet[s] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := storedSet[r]; !ok {
			return false
		}
	}
	return true
}
