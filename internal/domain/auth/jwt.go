package auth

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/identity"
)

// subjectClaims is the ordered list of claim names tried when resolving the
// token subject. First non-empty wins. The order is a documented contract:
// standards-compliant issuers set sub, older web sessions set userId, and the
// legacy CLI sets user_id.
var subjectClaims = []string{"sub", "userId", "user_id"}

// orgClaims is the ordered list of claim names that may carry the caller's
// organization id. The value is a candidate only; the organization resolver
// validates or replaces it.
var orgClaims = []string{"organization_id", "org_id"}

// JWTAuthenticator verifies HS256 bearer tokens against a shared secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates a JWT authenticator. An empty secret is
// tolerated at construction; authentication then fails with a configuration
// error rather than at startup, matching the serverless hosts where the
// secret arrives through the environment.
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

// Authenticate verifies the token's signature and expiry, then builds the
// identity from its claims. It returns the identity plus the organization id
// candidate found in the claims, if any.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*identity.Identity, string, error) {
	if len(a.secret) == 0 {
		zctx.From(ctx).Error("jwt auth attempted without signing secret configured")
		return nil, "", apierror.JWTSecretMissing()
	}

	tok, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, "", apierror.TokenExpired()
		}
		zctx.From(ctx).Info("jwt rejected", zap.String("reason", err.Error()))
		return nil, "", apierror.InvalidJWT()
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", apierror.InvalidJWT()
	}

	subject := firstClaim(claims, subjectClaims)
	if subject == "" {
		return nil, "", apierror.InvalidJWTClaims()
	}

	id := &identity.Identity{
		UserID:   subject,
		Role:     identity.RoleUser,
		Plan:     identity.PlanFree,
		AuthType: identity.AuthJWT,
	}
	if v := stringClaim(claims, "role"); v != "" {
		id.Role = v
	}
	if v := stringClaim(claims, "plan"); v != "" {
		id.Plan = v
	}
	id.Email = stringClaim(claims, "email")

	return id, firstClaim(claims, orgClaims), nil
}

// firstClaim returns the first non-empty string value among the named claims.
func firstClaim(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		if v := stringClaim(claims, name); v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
