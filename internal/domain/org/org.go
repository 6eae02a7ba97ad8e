// Package org resolves every authenticated request to exactly one valid
// organization id, provisioning a fallback organization when neither the
// credential claims nor the user profile yield one.
package org

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source records which step of the resolution algorithm produced the id.
type Source string

const (
	// SourceClaim: the candidate id from the credential was valid and exists.
	SourceClaim Source = "claim_lookup"
	// SourceLookup: the user's stored organization id was used.
	SourceLookup Source = "db_lookup"
	// SourceFallback: a single-user organization was provisioned on the fly.
	SourceFallback Source = "fallback_created"
)

// Resolution is the resolver's output. OrganizationID is always a
// syntactically valid UUID that exists in the store; no downstream code ever
// observes a null or malformed tenant id.
type Resolution struct {
	OrganizationID uuid.UUID
	Source         Source
}

// Organization is a stored tenant record.
type Organization struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	OwnerID     string
	AutoCreated bool
	CreatedAt   time.Time
}

// Store is the organization persistence interface consumed by the resolver.
type Store interface {
	// Exists reports whether an organization with the given id is stored.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// Create inserts org and returns its id. For auto-created organizations
	// the store must treat a unique-constraint conflict on the owner as
	// "already provisioned" and return the existing id.
	Create(ctx context.Context, o Organization) (uuid.UUID, error)
}
