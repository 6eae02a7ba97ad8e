// Package identity defines the per-request authenticated identity and the
// user profile store it is assembled from.
package identity

import "context"

// AuthType records which credential path authenticated the request.
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthJWT    AuthType = "jwt"
)

// Common role and plan values. Plans gate rate limits and feature access;
// unknown plans are treated as free.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Identity is constructed once per request after authentication and discarded
// when the response is sent. It is never persisted.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
	Plan           string
	Email          string
	AuthType       AuthType
	ProjectScope   string
}

// IsAdmin reports whether the identity may use admin-only routes.
func (id *Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// RateKey is the counter-store key for this identity's rate-limit window.
func (id *Identity) RateKey() string {
	return string(id.AuthType) + ":" + id.UserID
}

// User is a stored user profile. OrganizationID may be empty for users that
// have never been assigned to an organization.
type User struct {
	ID             string
	Email          string
	Role           string
	Plan           string
	OrganizationID string
}

// UserStore looks up stored user profiles.
type UserStore interface {
	// Find returns the user's profile, or ErrUserNotFound.
	Find(ctx context.Context, userID string) (*User, error)
}

type ctxKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the authenticated identity, or nil when the request
// did not pass through the auth pipeline.
func FromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(ctxKey{}).(*Identity); ok {
		return id
	}
	return nil
}
