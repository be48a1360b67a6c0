package meetings

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// generateMeetingCode samples a 12-character base62 code from a CSPRNG.
func generateMeetingCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating meeting code: %w", err)
	}
	out := make([]byte, 12)
	for i, b := range buf {
		out[i] = base62Alphabet[int(b)%len(base62Alphabet)]
	}
	return string(out), nil
}

// generateJoinTokenSecret produces 32 random bytes, hex-encoded.
func generateJoinTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating join token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
