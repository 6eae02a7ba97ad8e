// Package auth implements the dual credential authenticators: hashed API
// keys and HS256 bearer tokens. Authentication is a single-shot, idempotent
// check per request; there are no retries at this layer.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/identity"
)

// ErrKeyNotFound is returned by KeyStore.FindByHash for unknown hashes.
var ErrKeyNotFound = errors.New("api key not found")

// KeyRecord is a stored API key. The raw key is discarded at mint time; only
// the SHA-256 hex digest is kept.
type KeyRecord struct {
	ID        string
	UserID    string
	KeyHash   string
	Name      string
	Service   string
	Active    bool
	ExpiresAt time.Time // zero means no expiry
	CreatedAt time.Time
}

// Expired reports whether the record has an expiry in the past.
func (r *KeyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// KeyStore looks up API key records by digest.
type KeyStore interface {
	// FindByHash returns the record whose key_hash equals hash, or
	// ErrKeyNotFound.
	FindByHash(ctx context.Context, hash string) (*KeyRecord, error)
}

// APIKeyAuthenticator validates API key candidates against a KeyStore and
// fills in the caller's profile from a UserStore.
type APIKeyAuthenticator struct {
	keys  KeyStore
	users identity.UserStore
	now   func() time.Time
}

// NewAPIKeyAuthenticator creates an authenticator over the given stores.
func NewAPIKeyAuthenticator(keys KeyStore, users identity.UserStore) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{
		keys:  keys,
		users: users,
		now:   time.Now,
	}
}

// Authenticate normalizes the candidate via EnsureHashed, looks up the key
// record, and validates activity and expiry. On success it returns the
// identity plus the user's stored organization id as the org candidate for
// resolution. All credential failures collapse to INVALID_API_KEY; store
// failures surface as-is for the pipeline boundary to report.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, candidate string) (*identity.Identity, string, error) {
	hash := EnsureHashed(candidate)
	lg := zctx.From(ctx).With(zap.String("key_hash", Redact(hash)))

	rec, err := a.keys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			lg.Info("api key rejected", zap.String("reason", "unknown hash"))
			return nil, "", apierror.InvalidAPIKey()
		}
		return nil, "", errors.Wrap(err, "lookup api key")
	}
	if !rec.Active {
		lg.Info("api key rejected", zap.String("reason", "inactive"))
		return nil, "", apierror.InvalidAPIKey()
	}
	if rec.Expired(a.now()) {
		lg.Info("api key rejected", zap.String("reason", "expired"))
		return nil, "", apierror.InvalidAPIKey()
	}

	id := &identity.Identity{
		UserID:   rec.UserID,
		Role:     identity.RoleUser,
		Plan:     identity.PlanFree,
		AuthType: identity.AuthAPIKey,
	}

	// The key row itself carries no role or plan; those live on the user
	// profile. A missing profile keeps the defaults.
	orgCandidate := ""
	user, err := a.users.Find(ctx, rec.UserID)
	switch {
	case err == nil:
		if user.Role != "" {
			id.Role = user.Role
		}
		if user.Plan != "" {
			id.Plan = user.Plan
		}
		id.Email = user.Email
		orgCandidate = user.OrganizationID
	case errors.Is(err, identity.ErrUserNotFound):
		lg.Debug("api key user has no profile", zap.String("user_id", rec.UserID))
	default:
		return nil, "", errors.Wrap(err, "lookup key owner")
	}

	return id, orgCandidate, nil
}
