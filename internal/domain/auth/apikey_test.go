package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/identity"
)

type fakeKeyStore struct {
	records map[string]*KeyRecord
	calls   int
}

func (s *fakeKeyStore) FindByHash(_ context.Context, hash string) (*KeyRecord, error) {
	s.calls++
	if rec, ok := s.records[hash]; ok {
		return rec, nil
	}
	return nil, ErrKeyNotFound
}

type fakeUserStore struct {
	users map[string]*identity.User
}

func (s *fakeUserStore) Find(_ context.Context, id string) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func newKeyFixture(raw string, mutate func(*KeyRecord)) (*fakeKeyStore, string) {
	hash := HashKey(raw)
	rec := &KeyRecord{
		ID:      "k1",
		UserID:  "u1",
		KeyHash: hash,
		Name:    "test key",
		Service: "engram",
		Active:  true,
	}
	if mutate != nil {
		mutate(rec)
	}
	return &fakeKeyStore{records: map[string]*KeyRecord{hash: rec}}, hash
}

func TestAPIKeyAuthenticator_RawKey(t *testing.T) {
	keys, _ := newKeyFixture("abc123", nil)
	a := NewAPIKeyAuthenticator(keys, &fakeUserStore{})

	id, orgCandidate, err := a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, identity.AuthAPIKey, id.AuthType)
	assert.Equal(t, identity.RoleUser, id.Role)
	assert.Equal(t, identity.PlanFree, id.Plan)
	assert.Empty(t, orgCandidate)
}

func TestAPIKeyAuthenticator_PreHashedKey(t *testing.T) {
	keys, hash := newKeyFixture("abc123", nil)
	a := NewAPIKeyAuthenticator(keys, &fakeUserStore{})

	// A client sending the already-hashed key authenticates as the same
	// identity; the candidate is not hashed a second time.
	id, _, err := a.Authenticate(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestAPIKeyAuthenticator_ProfileFillsRolePlan(t *testing.T) {
	keys, _ := newKeyFixture("abc123", nil)
	users := &fakeUserStore{users: map[string]*identity.User{
		"u1": {ID: "u1", Role: "admin", Plan: "pro", Email: "u1@example.com", OrganizationID: "org-uuid"},
	}}
	a := NewAPIKeyAuthenticator(keys, users)

	id, orgCandidate, err := a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Role)
	assert.Equal(t, "pro", id.Plan)
	assert.Equal(t, "u1@example.com", id.Email)
	assert.Equal(t, "org-uuid", orgCandidate)
}

func TestAPIKeyAuthenticator_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*KeyRecord)
		key    string
	}{
		{name: "unknown key", key: "never-minted"},
		{name: "inactive", mutate: func(r *KeyRecord) { r.Active = false }, key: "abc123"},
		{name: "expired", mutate: func(r *KeyRecord) { r.ExpiresAt = time.Now().Add(-time.Hour) }, key: "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, _ := newKeyFixture("abc123", tt.mutate)
			a := NewAPIKeyAuthenticator(keys, &fakeUserStore{})

			_, _, err := a.Authenticate(context.Background(), tt.key)
			require.Error(t, err)
			ae := apierror.From(err)
			assert.Equal(t, apierror.CodeInvalidAPIKey, ae.Code)
			assert.Equal(t, 401, ae.Status)
		})
	}
}

func TestKeyRecord_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&KeyRecord{}).Expired(now), "zero expiry never expires")
	assert.False(t, (&KeyRecord{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&KeyRecord{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}
