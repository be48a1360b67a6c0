package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// DummySecretHash is a constant bcrypt hash verified against whenever the
// caller's real credential is missing, so that bcrypt.CompareHashAndPassword
// always runs and failed lookups cost the same wall-clock time as a failed
// password check.
var DummySecretHash = mustHash("correct horse battery staple, but not really")

func mustHash(s string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(s), bcryptCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// GenerateClientSecret returns a base64url-encoded random 32-byte secret.
func GenerateClientSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", wrapErr("generate client secret", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret bcrypt-hashes a plaintext secret or password.
func HashSecret(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", wrapErr("hash secret", err)
	}
	return string(h), nil
}

// VerifySecret reports whether plaintext matches hash. It is safe to call
// with hash == DummySecretHash to keep timing symmetric on a missing
// credential; the return value will simply be false.
func VerifySecret(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HashForCorrelation returns the first 8 hex characters of SHA-256(s), used
// to correlate a logged error with its client-facing generic message without
// exposing the raw identifier.
func HashForCorrelation(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
