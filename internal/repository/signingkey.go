package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/meetplane/internal/apperr"
)

// SigningKey is an Ed25519 signing key whose private half is wrapped under
// the process master key.
type SigningKey struct {
	KeyID               string
	PublicKeyPEM        string
	PrivateKeyEncrypted []byte
	EncryptionNonce     []byte
	EncryptionTag       []byte
	EncryptionAlgorithm string
	MasterKeyVersion    int
	Algorithm           string
	IsActive            bool
	ValidFrom           time.Time
	ValidUntil          time.Time
	CreatedAt           time.Time
}

// SigningKeyRepository provides parameterized access to signing_keys,
// including the rotate-under-transaction operation.
type SigningKeyRepository struct {
	db   DBTX
	conn Beginner
}

// NewSigningKeyRepository requires a Beginner (typically *pgxpool.Pool) so
// Rotate can run inside its own transaction.
func NewSigningKeyRepository(pool Beginner) *SigningKeyRepository {
	return &SigningKeyRepository{db: pool.(DBTX), conn: pool}
}

const signingKeyColumns = `key_id, public_key, private_key_encrypted, encryption_nonce, encryption_tag, encryption_algorithm, master_key_version, algorithm, is_active, valid_from, valid_until, created_at`

func scanSigningKey(row pgx.Row) (*SigningKey, error) {
	var k SigningKey
	err := row.Scan(&k.KeyID, &k.PublicKeyPEM, &k.PrivateKeyEncrypted, &k.EncryptionNonce,
		&k.EncryptionTag, &k.EncryptionAlgorithm, &k.MasterKeyVersion, &k.Algorithm,
		&k.IsActive, &k.ValidFrom, &k.ValidUntil, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create inserts a new signing key row, inactive by default — callers
// activate it via Rotate or, for the very first key, ActivateInitial.
func (r *SigningKeyRepository) Create(ctx context.Context, k *SigningKey) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO signing_keys (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10, now())`, signingKeyColumns),
		k.KeyID, k.PublicKeyPEM, k.PrivateKeyEncrypted, k.EncryptionNonce, k.EncryptionTag,
		k.EncryptionAlgorithm, k.MasterKeyVersion, k.Algorithm, k.ValidFrom, k.ValidUntil,
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// ActivateInitial flips a freshly created key active without deactivating
// anything else — used only by Initialize on an empty database.
func (r *SigningKeyRepository) ActivateInitial(ctx context.Context, keyID string) error {
	_, err := r.db.Exec(ctx, `UPDATE signing_keys SET is_active = true WHERE key_id = $1`, keyID)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// GetActive returns the currently active key, or apperr.NotFound if none.
func (r *SigningKeyRepository) GetActive(ctx context.Context) (*SigningKey, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM signing_keys
		WHERE is_active AND valid_from <= now() AND now() < valid_until
		ORDER BY valid_from DESC LIMIT 1`, signingKeyColumns))
	k, err := scanSigningKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("signing key")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return k, nil
}

// GetMostRecent returns the newest signing key by valid_from, active or not,
// for the rotation rate-limit check.
func (r *SigningKeyRepository) GetMostRecent(ctx context.Context) (*SigningKey, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM signing_keys ORDER BY valid_from DESC LIMIT 1`, signingKeyColumns))
	k, err := scanSigningKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("signing key")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return k, nil
}

// ListValidNow returns every key whose validity window currently covers
// now(), active or not — the JWKS view lists both the outgoing and incoming
// key during a rotation window so in-flight tokens keep verifying.
func (r *SigningKeyRepository) ListValidNow(ctx context.Context) ([]*SigningKey, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM signing_keys
		WHERE valid_from <= now() AND now() < valid_until
		ORDER BY valid_from DESC`, signingKeyColumns))
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var keys []*SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return keys, nil
}

// GetByKeyID fetches a key by its id, for resolving a token's kid.
func (r *SigningKeyRepository) GetByKeyID(ctx context.Context, keyID string) (*SigningKey, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM signing_keys WHERE key_id = $1`, signingKeyColumns), keyID)
	k, err := scanSigningKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("signing key")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return k, nil
}

// Rotate runs as a single transaction: (a) marks every currently active row
// inactive, (b) marks newKeyID active. Readers either observe the old key or
// the new key, never neither, never both active.
func (r *SigningKeyRepository) Rotate(ctx context.Context, newKeyID string) error {
	return WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE signing_keys SET is_active = false WHERE is_active`); err != nil {
			return apperr.Database(err)
		}
		if _, err := tx.Exec(ctx, `UPDATE signing_keys SET is_active = true WHERE key_id = $1`, newKeyID); err != nil {
			return apperr.Database(err)
		}
		return nil
	})
}
