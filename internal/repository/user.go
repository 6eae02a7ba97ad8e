package repository

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engramhq/gateway/internal/domain/identity"
)

const findUserSQL = `SELECT id, email, role, plan, organization_id
	FROM users WHERE id = $1`

var _ identity.UserStore = (*UserRepository)(nil)

// UserRepository provides user profile lookups backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Find returns the stored user profile, or identity.ErrUserNotFound.
func (r *UserRepository) Find(ctx context.Context, userID string) (*identity.User, error) {
	var (
		u     identity.User
		orgID sql.NullString
	)
	err := r.pool.QueryRow(ctx, findUserSQL, userID).Scan(
		&u.ID, &u.Email, &u.Role, &u.Plan, &orgID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "finding user")
	}
	if orgID.Valid {
		u.OrganizationID = orgID.String
	}
	return &u, nil
}
