package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/identity"
)

var testSecret = []byte("test-signing-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestJWTAuthenticator_Valid(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "u1",
		"role":  "admin",
		"plan":  "enterprise",
		"email": "u1@example.com",
	})

	id, orgCandidate, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, identity.AuthJWT, id.AuthType)
	assert.Equal(t, "admin", id.Role)
	assert.Equal(t, "enterprise", id.Plan)
	assert.Equal(t, "u1@example.com", id.Email)
	assert.Empty(t, orgCandidate)
}

func TestJWTAuthenticator_SubjectClaimPriority(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub wins over all", jwt.MapClaims{"sub": "a", "userId": "b", "user_id": "c"}, "a"},
		{"userId wins over user_id", jwt.MapClaims{"userId": "b", "user_id": "c"}, "b"},
		{"user_id as last resort", jwt.MapClaims{"user_id": "c"}, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, _, err := a.Authenticate(context.Background(), signToken(t, testSecret, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.UserID)
		})
	}
}

func TestJWTAuthenticator_OrgCandidateClaims(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)

	_, candidate, err := a.Authenticate(context.Background(),
		signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "organization_id": "not-a-uuid"}))
	require.NoError(t, err)
	// The candidate is passed through unvalidated; the organization resolver
	// decides what to do with it.
	assert.Equal(t, "not-a-uuid", candidate)

	_, candidate, err = a.Authenticate(context.Background(),
		signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "org_id": "alt-claim"}))
	require.NoError(t, err)
	assert.Equal(t, "alt-claim", candidate)
}

func TestJWTAuthenticator_Expired(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	_, _, err := a.Authenticate(context.Background(), token)
	ae := apierror.From(err)
	assert.Equal(t, apierror.CodeTokenExpired, ae.Code)
	assert.Equal(t, 401, ae.Status)
}

func TestJWTAuthenticator_BadSignature(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)
	token := signToken(t, []byte("other-secret"), jwt.MapClaims{"sub": "u1"})

	_, _, err := a.Authenticate(context.Background(), token)
	assert.Equal(t, apierror.CodeInvalidJWT, apierror.From(err).Code)
}

func TestJWTAuthenticator_Malformed(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)

	_, _, err := a.Authenticate(context.Background(), "not.a.token")
	assert.Equal(t, apierror.CodeInvalidJWT, apierror.From(err).Code)
}

func TestJWTAuthenticator_NoSubjectClaim(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"email": "nobody@example.com"})

	_, _, err := a.Authenticate(context.Background(), token)
	assert.Equal(t, apierror.CodeInvalidJWTClaims, apierror.From(err).Code)
}

func TestJWTAuthenticator_MissingSecret(t *testing.T) {
	a := NewJWTAuthenticator(nil)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "u1"})

	_, _, err := a.Authenticate(context.Background(), token)
	ae := apierror.From(err)
	assert.Equal(t, apierror.CodeJWTSecretMissing, ae.Code)
	assert.Equal(t, 500, ae.Status)
}
