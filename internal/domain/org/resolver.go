package org

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/engramhq/gateway/internal/domain/identity"
)

// Resolver turns a possibly-missing or malformed organization candidate into
// a guaranteed-valid organization id. First match wins:
//
//  1. candidate parses as a UUID and exists in the store
//  2. the user's stored organization id is valid
//  3. a single-user organization is provisioned on the fly
//
// Step 3 silently provisions organizations for malformed input. That is a
// documented behavior of this service, not a hidden side effect: the
// provisioning is logged, runs at most once concurrently per user
// (singleflight), and the store absorbs cross-process races via its unique
// owner constraint.
type Resolver struct {
	orgs  Store
	users identity.UserStore
	sf    singleflight.Group
	now   func() time.Time
}

// NewResolver creates a Resolver over the given stores.
func NewResolver(orgs Store, users identity.UserStore) *Resolver {
	return &Resolver{
		orgs:  orgs,
		users: users,
		now:   time.Now,
	}
}

// Resolve runs the resolution algorithm for the given candidate and user.
func (r *Resolver) Resolve(ctx context.Context, candidate, userID string) (Resolution, error) {
	// Step 1: candidate from the credential claims.
	if id, err := uuid.Parse(candidate); err == nil {
		ok, err := r.orgs.Exists(ctx, id)
		if err != nil {
			return Resolution{}, errors.Wrap(err, "check claimed org")
		}
		if ok {
			return Resolution{OrganizationID: id, Source: SourceClaim}, nil
		}
	}

	// Step 2: the user's stored organization.
	user, err := r.users.Find(ctx, userID)
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return Resolution{}, errors.Wrap(err, "lookup user org")
	}
	if user != nil && user.OrganizationID != "" {
		if id, err := uuid.Parse(user.OrganizationID); err == nil {
			ok, err := r.orgs.Exists(ctx, id)
			if err != nil {
				return Resolution{}, errors.Wrap(err, "check stored org")
			}
			if ok {
				return Resolution{OrganizationID: id, Source: SourceLookup}, nil
			}
		}
	}

	// Step 3: fallback provisioning, collapsed per user id so concurrent
	// first-requests from a brand-new user create exactly one organization
	// within this process.
	v, err, _ := r.sf.Do(userID, func() (any, error) {
		return r.provision(ctx, userID)
	})
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{OrganizationID: v.(uuid.UUID), Source: SourceFallback}, nil
}

func (r *Resolver) provision(ctx context.Context, userID string) (uuid.UUID, error) {
	o := Organization{
		Slug:        fallbackSlug(userID, r.now()),
		Name:        fmt.Sprintf("%s's workspace", userID),
		OwnerID:     userID,
		AutoCreated: true,
	}
	id, err := r.orgs.Create(ctx, o)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "provision fallback org")
	}
	zctx.From(ctx).Info("provisioned fallback organization",
		zap.String("org_id", id.String()),
		zap.String("user_id", userID),
		zap.String("slug", o.Slug),
	)
	return id, nil
}

// fallbackSlug derives a collision-resistant slug from the user id and the
// provisioning timestamp.
func fallbackSlug(userID string, now time.Time) string {
	return fmt.Sprintf("org-%s-%x", slugSafe(userID, 12), now.UnixMilli())
}

// slugSafe keeps the first n lowercase alphanumeric characters of s.
func slugSafe(s string, n int) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			if b.Len() >= n {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
