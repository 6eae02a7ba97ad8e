package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engramhq/gateway/internal/domain/org"
)

// uniqueViolation is the PostgreSQL error code for unique-constraint
// conflicts.
const uniqueViolation = "23505"

const (
	orgExistsSQL = `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`

	orgInsertSQL = `INSERT INTO organizations (slug, name, owner_id, auto_created)
		VALUES ($1, $2, $3, $4) RETURNING id`

	orgByAutoOwnerSQL = `SELECT id FROM organizations
		WHERE owner_id = $1 AND auto_created`

	orgListSQL = `SELECT id, slug, name, COALESCE(owner_id, ''), auto_created, created_at
		FROM organizations ORDER BY created_at DESC LIMIT $1`
)

var _ org.Store = (*OrgRepository)(nil)

// OrgRepository provides organization storage backed by PostgreSQL.
type OrgRepository struct {
	pool *pgxpool.Pool
}

// NewOrgRepository returns an OrgRepository that uses the given pool.
func NewOrgRepository(pool *pgxpool.Pool) *OrgRepository {
	return &OrgRepository{pool: pool}
}

// Exists reports whether an organization with the given id is stored.
func (r *OrgRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, orgExistsSQL, id).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "checking organization")
	}
	return ok, nil
}

// Create inserts the organization. Two concurrent fallback provisions for
// the same user race on the partial unique index over (owner_id); the loser
// gets a unique violation and resolves to the winner's row instead of
// creating a duplicate.
func (r *OrgRepository) Create(ctx context.Context, o org.Organization) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, orgInsertSQL, o.Slug, o.Name, o.OwnerID, o.AutoCreated).Scan(&id)
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if o.AutoCreated && errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if err := r.pool.QueryRow(ctx, orgByAutoOwnerSQL, o.OwnerID).Scan(&id); err != nil {
			return uuid.Nil, errors.Wrap(err, "reading conflicting organization")
		}
		return id, nil
	}

	return uuid.Nil, errors.Wrap(err, "inserting organization")
}

// List returns the most recently created organizations, newest first.
func (r *OrgRepository) List(ctx context.Context, limit int) ([]org.Organization, error) {
	rows, err := r.pool.Query(ctx, orgListSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing organizations")
	}
	defer rows.Close()

	orgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (org.Organization, error) {
		var o org.Organization
		err := row.Scan(&o.ID, &o.Slug, &o.Name, &o.OwnerID, &o.AutoCreated, &o.CreatedAt)
		return o, err
	})
	return orgs, errors.Wrap(err, "collecting organizations")
}
