package crypto

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

func generateTestKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	_, privDER, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey() error: %v", err)
	}
	priv, err := ParsePrivateKeyPKCS8(privDER)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPKCS8() error: %v", err)
	}
	return priv.Public().(ed25519.PublicKey), priv
}

func resolverFor(kid string, pub ed25519.PublicKey) KeyResolver {
	return func(k string) (ed25519.PublicKey, error) {
		if k != kid {
			return nil, errors.New("unknown kid")
		}
		return pub, nil
	}
}

func TestSignVerifyJWTRoundTrip(t *testing.T) {
	pub, priv := generateTestKey(t)
	now := time.Now()

	claims := Claims{
		Subject:   "client-123",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		Scope:     "meeting:create",
	}

	token, err := SignJWT(claims, priv, "auth-test-2026-01")
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}

	got, err := VerifyJWT(token, resolverFor("auth-test-2026-01", pub), 60)
	if err != nil {
		t.Fatalf("VerifyJWT() error: %v", err)
	}

	if got.Subject != claims.Subject || got.Scope != claims.Scope {
		t.Fatalf("VerifyJWT() claims = %+v, want %+v", got, claims)
	}
	if got.ExpiresAt-got.IssuedAt != 3600 {
		t.Fatalf("exp - iat = %d, want 3600", got.ExpiresAt-got.IssuedAt)
	}
}

func TestVerifyJWTRejectsEmptyToken(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	if _, err := VerifyJWT("", func(string) (ed25519.PublicKey, error) { return pub, nil }, 60); err == nil {
		t.Fatal(`VerifyJWT(""): expected error, got nil`)
	}
}

func TestVerifyJWTRejectsOversizedToken(t *testing.T) {
	huge := strings.Repeat("a", MaxTokenBytes+1)
	if _, err := VerifyJWT(huge, func(string) (ed25519.PublicKey, error) { return nil, nil }, 60); err == nil {
		t.Fatal("VerifyJWT(oversized): expected error, got nil")
	}
}

func TestVerifyJWTRejectsAlgorithmConfusion(t *testing.T) {
	// Sign with HS256 instead of EdDSA; VerifyJWT must reject before any key lookup.
	hmacKey := []byte("01234567890123456789012345678901")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: hmacKey}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		t.Fatalf("jose.NewSigner() error: %v", err)
	}

	now := time.Now()
	token, err := jwt.Signed(signer).Claims(Claims{
		Subject:   "x",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}).Serialize()
	if err != nil {
		t.Fatalf("signing HS256 token: %v", err)
	}

	calledResolver := false
	_, err = VerifyJWT(token, func(string) (ed25519.PublicKey, error) {
		calledResolver = true
		return nil, nil
	}, 60)
	if err == nil {
		t.Fatal("VerifyJWT(HS256 token): expected error, got nil")
	}
	if calledResolver {
		t.Fatal("VerifyJWT(HS256 token): key resolver must not be called for a rejected algorithm")
	}
}

func TestVerifyJWTRejectsByteMutation(t *testing.T) {
	pub, priv := generateTestKey(t)
	now := time.Now()

	token, err := SignJWT(Claims{Subject: "x", IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()}, priv, "k1")
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}

	mutated := []byte(token)
	mutated[len(mutated)-2] ^= 0xFF

	if _, err := VerifyJWT(string(mutated), resolverFor("k1", pub), 60); err == nil {
		t.Fatal("VerifyJWT(mutated token): expected error, got nil")
	}
}

func TestVerifyJWTRejectsExpiredToken(t *testing.T) {
	pub, priv := generateTestKey(t)
	past := time.Now().Add(-2 * time.Hour)

	token, err := SignJWT(Claims{Subject: "x", IssuedAt: past.Unix(), ExpiresAt: past.Add(time.Hour).Unix()}, priv, "k1")
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}

	if _, err := VerifyJWT(token, resolverFor("k1", pub), 60); err == nil {
		t.Fatal("VerifyJWT(expired token): expected error, got nil")
	}
}
