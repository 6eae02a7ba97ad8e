// Package apierror defines the typed errors the gateway returns to clients.
//
// Every failure that reaches a client is an *Error carrying an HTTP status,
// an error family (AuthError, RateLimitError, ...) and a stable machine code.
// Anything that is not an *Error is reported as 500 INTERNAL_ERROR without
// leaking internals.
package apierror

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Error families.
const (
	TypeAuth          = "AuthError"
	TypeAuthorization = "AuthorizationError"
	TypeRateLimit     = "RateLimitError"
	TypeCORS          = "CORSError"
	TypeConfig        = "ConfigError"
	TypeNotFound      = "NotFoundError"
	TypeInternal      = "InternalError"
)

// Stable machine-readable codes.
const (
	CodeMissingAuth         = "MISSING_AUTH"
	CodeInvalidAPIKey       = "INVALID_API_KEY"
	CodeInvalidJWT          = "INVALID_JWT"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidJWTClaims    = "INVALID_JWT_CLAIMS"
	CodeInvalidProjectScope = "INVALID_PROJECT_SCOPE"
	CodeAuthFailed          = "AUTHENTICATION_FAILED"
	CodeInsufficientRole    = "INSUFFICIENT_ROLE"
	CodeInsufficientPlan    = "INSUFFICIENT_PLAN"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeOriginNotAllowed    = "ORIGIN_NOT_ALLOWED"
	CodeJWTSecretMissing    = "JWT_SECRET_MISSING"
	CodeNotFound            = "NOT_FOUND"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a client-visible gateway error.
type Error struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

// MissingAuth reports a request carrying neither credential header.
func MissingAuth() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    TypeAuth,
		Code:    CodeMissingAuth,
		Message: "authentication required: provide X-API-Key or Authorization: Bearer",
	}
}

// InvalidAPIKey reports an unknown, inactive, or expired API key.
func InvalidAPIKey() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    TypeAuth,
		Code:    CodeInvalidAPIKey,
		Message: "invalid API key",
	}
}

// InvalidJWT reports a malformed token or a bad signature.
func InvalidJWT() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    TypeAuth,
		Code:    CodeInvalidJWT,
		Message: "invalid token",
	}
}

// TokenExpired reports a token whose exp claim is in the past.
func TokenExpired() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    TypeAuth,
		Code:    CodeTokenExpired,
		Message: "token expired",
	}
}

// InvalidJWTClaims reports a verified token with no usable subject claim.
func InvalidJWTClaims() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    TypeAuth,
		Code:    CodeInvalidJWTClaims,
		Message: "token carries no recognized subject claim",
	}
}

// InvalidProjectScope reports an X-Project-Scope header that does not match
// the service's tenant label.
func InvalidProjectScope(got string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Type:    TypeAuth,
		Code:    CodeInvalidProjectScope,
		Message: fmt.Sprintf("request addressed to project scope %q is not served here", got),
	}
}

// InsufficientRole reports a role outside the route's allowlist.
func InsufficientRole(required []string, got string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Type:    TypeAuthorization,
		Code:    CodeInsufficientRole,
		Message: fmt.Sprintf("requires one of roles %v, current role is %q", required, got),
	}
}

// InsufficientPlan reports a plan outside the route's allowlist.
func InsufficientPlan(required []string, got string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Type:    TypeAuthorization,
		Code:    CodeInsufficientPlan,
		Message: fmt.Sprintf("requires one of plans %v, current plan is %q", required, got),
	}
}

// RateLimitExceeded reports an identity over its plan's request quota.
func RateLimitExceeded() *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Type:    TypeRateLimit,
		Code:    CodeRateLimitExceeded,
		Message: "rate limit exceeded",
	}
}

// OriginNotAllowed reports a cross-origin request from outside the allowlist.
func OriginNotAllowed(origin string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Type:    TypeCORS,
		Code:    CodeOriginNotAllowed,
		Message: fmt.Sprintf("origin %q is not allowed", origin),
	}
}

// JWTSecretMissing reports that the service has no signing secret configured.
// This is a server misconfiguration, not a client fault.
func JWTSecretMissing() *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Type:    TypeConfig,
		Code:    CodeJWTSecretMissing,
		Message: "token verification is not configured",
	}
}

// NotFound reports an unrouted path.
func NotFound(path string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Type:    TypeNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("no route for %s", path),
	}
}

// UpstreamUnavailable reports a route whose backing service is not wired in.
func UpstreamUnavailable(name string) *Error {
	return &Error{
		Status:  http.StatusServiceUnavailable,
		Type:    TypeInternal,
		Code:    CodeUpstreamUnavailable,
		Message: fmt.Sprintf("%s backend is not configured", name),
	}
}

// Internal is the catch-all for unexpected failures. The underlying error is
// logged server-side, never sent to the client.
func Internal() *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Type:    TypeInternal,
		Code:    CodeInternal,
		Message: "internal error",
	}
}

// From maps any error to the *Error the client should see. Known *Error
// values pass through; everything else collapses to Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal()
}
