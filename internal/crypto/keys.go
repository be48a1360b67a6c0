// Package crypto implements the cryptographic primitives shared by the key
// manager and token service: Ed25519 keypair generation, PEM/JWKS encoding,
// AES-256-GCM wrapping of private keys, EdDSA JWT signing/verification, and
// bcrypt-based secret hashing.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Error is returned for any failure inside this package. Callers translate it
// into apperr.Crypto without ever surfacing the underlying cause to clients.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// GenerateSigningKey produces a fresh Ed25519 keypair: the public key as a
// single PEM block, and the private key as PKCS#8 DER bytes.
func GenerateSigningKey() (publicPEM string, privatePKCS8 []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, wrapErr("generate ed25519 key", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", nil, wrapErr("marshal public key", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}
	publicPEM = string(pem.EncodeToMemory(block))

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", nil, wrapErr("marshal private key", err)
	}

	return publicPEM, privDER, nil
}

// ParsePublicKeyPEM decodes a PEM-encoded Ed25519 public key.
func ParsePublicKeyPEM(pemStr string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, wrapErr("decode public key PEM", fmt.Errorf("no PEM block found"))
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, wrapErr("parse public key", err)
	}

	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, wrapErr("parse public key", fmt.Errorf("not an Ed25519 key"))
	}

	return edPub, nil
}

// ParsePrivateKeyPKCS8 decodes PKCS#8 DER bytes into an Ed25519 private key.
func ParsePrivateKeyPKCS8(der []byte) (ed25519.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, wrapErr("parse private key", err)
	}

	edPriv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, wrapErr("parse private key", fmt.Errorf("not an Ed25519 key"))
	}

	return edPriv, nil
}

// PublicKeyRawBytes strips the PEM envelope and PKIX wrapper, returning the
// 32 raw Ed25519 public-key bytes used as the JWK "x" value.
func PublicKeyRawBytes(pemStr string) ([]byte, error) {
	pub, err := ParsePublicKeyPEM(pemStr)
	if err != nil {
		return nil, err
	}
	return []byte(pub), nil
}
