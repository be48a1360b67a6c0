// Package keys implements signing-key lifecycle management: bootstrapping
// the first Ed25519 key on an empty database, rotating under a rate limit,
// and producing the JWKS view published to every token verifier.
package keys

import (
	"context"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

const (
	validityPeriod    = 365 * 24 * time.Hour
	normalRotationGap = 6 * 24 * time.Hour
	forceRotationGap  = 1 * time.Hour
	masterKeyVersion  = 1
)

// Service manages the signing-key lifecycle.
type Service struct {
	repo      *repository.SigningKeyRepository
	masterKey []byte
	clusterID string
	audit     *audit.Writer
	now       func() time.Time
}

// New builds a key management Service. clusterID names the cluster segment
// of generated key IDs ("auth-{cluster}-{YYYY}-{NN}").
func New(repo *repository.SigningKeyRepository, masterKey []byte, clusterID string, auditWriter *audit.Writer) *Service {
	return &Service{repo: repo, masterKey: masterKey, clusterID: clusterID, audit: auditWriter, now: time.Now}
}

// Initialize generates and activates the first signing key if the database
// has none yet. It is a no-op if an active key already exists.
func (s *Service) Initialize(ctx context.Context) error {
	if _, err := s.repo.GetActive(ctx); err == nil {
		return nil
	} else if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindNotFound {
		return err
	}

	keyID := s.generateKeyID()
	if err := s.insertKey(ctx, keyID); err != nil {
		return err
	}
	if err := s.repo.ActivateInitial(ctx, keyID); err != nil {
		return err
	}

	telemetry.KeyRotationsTotal.WithLabelValues("initialized").Inc()
	return nil
}

// Rotate generates a new keypair, inserts it, then atomically flips the
// active flag. A non-force rotation is rejected if the most recent key is
// younger than normalRotationGap; force accepts down to forceRotationGap.
func (s *Service) Rotate(ctx context.Context, force bool) error {
	recent, err := s.repo.GetMostRecent(ctx)
	if err != nil {
		if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindNotFound {
			return err
		}
		return s.Initialize(ctx)
	}

	gap := normalRotationGap
	if force {
		gap = forceRotationGap
	}
	if age := s.now().Sub(recent.CreatedAt); age < gap {
		telemetry.KeyRotationsTotal.WithLabelValues("rate_limited").Inc()
		return apperr.New(apperr.KindTooManyRequests, "signing key rotation is rate limited")
	}

	keyID := s.generateKeyID()
	if err := s.insertKey(ctx, keyID); err != nil {
		telemetry.KeyRotationsTotal.WithLabelValues("failed").Inc()
		return err
	}
	if err := s.repo.Rotate(ctx, keyID); err != nil {
		telemetry.KeyRotationsTotal.WithLabelValues("failed").Inc()
		return err
	}

	telemetry.KeyRotationsTotal.WithLabelValues("rotated").Inc()
	return nil
}

func (s *Service) insertKey(ctx context.Context, keyID string) error {
	publicPEM, privatePKCS8, err := crypto.GenerateSigningKey()
	if err != nil {
		return apperr.Crypto(err)
	}

	ciphertext, nonce, tag, err := crypto.EncryptPrivateKey(privatePKCS8, s.masterKey)
	if err != nil {
		return apperr.Crypto(err)
	}

	now := s.now()
	err = s.repo.Create(ctx, &repository.SigningKey{
		KeyID:               keyID,
		PublicKeyPEM:        publicPEM,
		PrivateKeyEncrypted: ciphertext,
		EncryptionNonce:     nonce,
		EncryptionTag:       tag,
		EncryptionAlgorithm: "AES-256-GCM",
		MasterKeyVersion:    masterKeyVersion,
		Algorithm:           "EdDSA",
		ValidFrom:           now,
		ValidUntil:          now.Add(validityPeriod),
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Log(audit.Entry{Action: "key_generated", Resource: "signing_key", ResourceID: keyID})
	}
	return nil
}

func (s *Service) generateKeyID() string {
	return fmt.Sprintf("auth-%s-%s-%02d", s.clusterID, s.now().Format("2006"), s.now().Nanosecond()%100)
}

// ActivePrivateKey decrypts and returns the currently active signing key
// along with its key ID, for the token service to sign with.
func (s *Service) ActivePrivateKey(ctx context.Context) (keyID string, priv []byte, err error) {
	active, err := s.repo.GetActive(ctx)
	if err != nil {
		return "", nil, err
	}
	pkcs8, err := crypto.DecryptPrivateKey(active.PrivateKeyEncrypted, active.EncryptionNonce, active.EncryptionTag, s.masterKey)
	if err != nil {
		return "", nil, apperr.Crypto(err)
	}
	return active.KeyID, pkcs8, nil
}

// JWKSView enumerates every key whose validity window covers now, active or
// not — during a rotation window both the outgoing and incoming key are
// published so in-flight tokens keep verifying. Each entry is built from
// go-jose's own JSONWebKey type rather than a hand-rolled struct, so the
// marshaled document and the JWKS cache in internal/authmw, which decodes it
// with the same type, agree on every field name the EdDSA/OKP encoding
// requires.
func (s *Service) JWKSView(ctx context.Context) (*jose.JSONWebKeySet, error) {
	valid, err := s.repo.ListValidNow(ctx)
	if err != nil {
		return nil, err
	}

	out := &jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(valid))}
	for _, k := range valid {
		pub, err := crypto.ParsePublicKeyPEM(k.PublicKeyPEM)
		if err != nil {
			return nil, apperr.Crypto(err)
		}
		out.Keys = append(out.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     k.KeyID,
			Algorithm: "EdDSA",
			Use:       "sig",
		})
	}
	return out, nil
}
