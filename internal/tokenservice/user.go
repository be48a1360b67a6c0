package tokenservice

import (
	"context"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

// UserTokenRequest carries the password grant inputs, already resolved to
// an organization by the subdomain-extraction middleware.
type UserTokenRequest struct {
	OrgID    uuid.UUID
	Email    string
	Password string
}

// IssueUserToken implements the password grant: look up the user by
// (org_id, email), verify the password, gather roles, and sign a user JWT.
func (s *Service) IssueUserToken(ctx context.Context, req UserTokenRequest) (*TokenResult, error) {
	user, err := s.users.GetByOrgAndEmail(ctx, req.OrgID, req.Email)
	userExists := err == nil

	storedHash := crypto.DummySecretHash
	if userExists {
		storedHash = user.PasswordHash
	}
	passwordOK := crypto.VerifySecret(req.Password, storedHash)

	if !userExists || !passwordOK {
		telemetry.TokenFailuresTotal.WithLabelValues("invalid_user_credentials").Inc()
		return nil, apperr.InvalidCredentials()
	}

	roles, err := s.userRoles.ListByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	token, err := s.signUserToken(ctx, user.UserID, req.OrgID, user.Email, roles)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.UserID); err != nil {
		s.logger.Error("touching last login", "error", err)
	}

	telemetry.TokensIssuedTotal.WithLabelValues("password").Inc()
	return token, nil
}

// RegisterRequest carries the self-registration inputs.
type RegisterRequest struct {
	OrgID       uuid.UUID
	Email       string
	Password    string
	DisplayName string
	IPAddress   string
}

// Register creates a user and returns an auto-login token, bounded to 5
// registrations per IP per hour per organization.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResult, error) {
	limitKey := req.OrgID.String() + ":" + req.IPAddress
	result, err := s.registerRL.Allow(ctx, limitKey)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !result.Allowed {
		return nil, apperr.TooManyRequests("too many registrations from this address", result.RetryAfterSecs)
	}

	passwordHash, err := crypto.HashSecret(req.Password)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	user, err := s.users.Create(ctx, req.OrgID, req.Email, passwordHash, req.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := s.userRoles.Grant(ctx, user.UserID, repository.RoleUser); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(audit.Entry{
			OrgID:      req.OrgID,
			UserID:     &user.UserID,
			Action:     "user_registered",
			Resource:   "user",
			ResourceID: user.UserID.String(),
		})
	}

	return s.signUserToken(ctx, user.UserID, req.OrgID, user.Email, []repository.Role{repository.RoleUser})
}

func (s *Service) signUserToken(ctx context.Context, userID, orgID uuid.UUID, email string, roles []repository.Role) (*TokenResult, error) {
	keyID, pkcs8, err := s.keys.ActivePrivateKey(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	priv, err := crypto.ParsePrivateKeyPKCS8(pkcs8)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	roleStrs := make([]string, len(roles))
	for i, r := range roles {
		roleStrs[i] = string(r)
	}

	now := s.now()
	token, err := crypto.SignJWT(crypto.Claims{
		Subject:   userID.String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(userTokenTTL).Unix(),
		OrgID:     orgID.String(),
		Email:     email,
		Roles:     roleStrs,
		JTI:       uuid.New().String(),
	}, priv, keyID)
	if err != nil {
		return nil, apperr.Crypto(err)
	}

	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(userTokenTTL.Seconds()),
	}, nil
}
