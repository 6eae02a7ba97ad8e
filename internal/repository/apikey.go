package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engramhq/gateway/internal/domain/auth"
)

const findKeyByHashSQL = `SELECT id, user_id, key_hash, name, service, active, expires_at, created_at
	FROM api_keys WHERE key_hash = $1`

const activeKeyHashesSQL = `SELECT key_hash FROM api_keys WHERE active = TRUE
	AND (expires_at IS NULL OR expires_at > now())`

var (
	_ auth.KeyStore   = (*APIKeyRepository)(nil)
	_ auth.HashLister = (*APIKeyRepository)(nil)
)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an API key record by its SHA-256 hex digest. Activity
// and expiry are validated by the authenticator, not here, so rejections can
// be logged with their reason.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.KeyRecord, error) {
	var (
		rec       auth.KeyRecord
		expiresAt sql.NullTime
	)
	err := r.pool.QueryRow(ctx, findKeyByHashSQL, hash).Scan(
		&rec.ID, &rec.UserID, &rec.KeyHash, &rec.Name, &rec.Service,
		&rec.Active, &expiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, errors.Wrap(err, "finding api key by hash")
	}
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return &rec, nil
}

// ActiveKeyHashes returns the digests of all currently usable keys, for
// prefilter construction.
func (r *APIKeyRepository) ActiveKeyHashes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, activeKeyHashesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing active key hashes")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.Wrap(err, "scanning key hash")
		}
		hashes = append(hashes, h)
	}
	return hashes, errors.Wrap(rows.Err(), "iterating key hashes")
}

// Insert stores a freshly minted key record and returns its id.
func (r *APIKeyRepository) Insert(ctx context.Context, rec auth.KeyRecord) (string, error) {
	const insertSQL = `INSERT INTO api_keys (user_id, key_hash, name, service, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	var expiresAt *time.Time
	if !rec.ExpiresAt.IsZero() {
		expiresAt = &rec.ExpiresAt
	}

	var id string
	err := r.pool.QueryRow(ctx, insertSQL,
		rec.UserID, rec.KeyHash, rec.Name, rec.Service, rec.Active, expiresAt,
	).Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, "inserting api key")
	}
	return id, nil
}
