package crypto

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// MaxTokenBytes is the hard size cap enforced before any parsing is attempted.
const MaxTokenBytes = 8192

// Claims carries the custom fields used by service tokens (sub, scope,
// service_type), user tokens (sub, org_id, email, roles, jti), and meeting
// join/guest tokens (sub, org_id, meeting_id, scope-as-capabilities). Unused
// fields are simply omitted from the serialized JSON.
type Claims struct {
	Subject     string   `json:"sub"`
	IssuedAt    int64    `json:"iat"`
	ExpiresAt   int64    `json:"exp"`
	Scope       string   `json:"scope,omitempty"`
	ServiceType string   `json:"service_type,omitempty"`
	OrgID       string   `json:"org_id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	MeetingID   string   `json:"meeting_id,omitempty"`
	Guest       bool     `json:"guest,omitempty"`
	JTI         string   `json:"jti,omitempty"`
}

// SignJWT signs claims with the given Ed25519 private key under kid, using
// EdDSA only, header {alg:"EdDSA", typ:"JWT", kid}.
func SignJWT(claims Claims, priv ed25519.PrivateKey, kid string) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid),
	)
	if err != nil {
		return "", wrapErr("create EdDSA signer", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", wrapErr("sign JWT", err)
	}

	return token, nil
}

// KeyResolver returns the Ed25519 public key to verify a token's kid, or an
// error if the kid is unknown.
type KeyResolver func(kid string) (ed25519.PublicKey, error)

// VerifyJWT validates a compact JWS strictly: EdDSA only (rejected before any
// key lookup if the header declares another algorithm), non-empty, within
// MaxTokenBytes, signature valid, exp respected with clockSkewSeconds of
// leeway, and iat not in the future beyond the same leeway.
func VerifyJWT(token string, resolve KeyResolver, clockSkewSeconds int) (*Claims, error) {
	if len(token) == 0 {
		return nil, wrapErr("verify JWT", fmt.Errorf("empty token"))
	}
	if len(token) > MaxTokenBytes {
		return nil, wrapErr("verify JWT", fmt.Errorf("token exceeds %d bytes", MaxTokenBytes))
	}

	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, wrapErr("parse JWT", err)
	}

	if len(parsed.Headers) == 0 || parsed.Headers[0].KeyID == "" {
		return nil, wrapErr("parse JWT", fmt.Errorf("missing kid"))
	}
	kid := parsed.Headers[0].KeyID

	pub, err := resolve(kid)
	if err != nil {
		return nil, wrapErr("resolve signing key", err)
	}

	var claims Claims
	if err := parsed.Claims(pub, &claims); err != nil {
		return nil, wrapErr("verify signature", err)
	}

	leeway := time.Duration(clockSkewSeconds) * time.Second
	now := time.Now()

	expiry := time.Unix(claims.ExpiresAt, 0)
	if now.After(expiry.Add(leeway)) {
		return nil, wrapErr("validate claims", fmt.Errorf("token expired"))
	}

	issuedAt := time.Unix(claims.IssuedAt, 0)
	if issuedAt.After(now.Add(leeway)) {
		return nil, wrapErr("validate claims", fmt.Errorf("token issued in the future"))
	}

	return &claims, nil
}
