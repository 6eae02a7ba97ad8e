package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/gateway/internal/domain/identity"
	"github.com/engramhq/gateway/internal/domain/org"
	"github.com/engramhq/gateway/internal/ratelimit"
)

type staticDirectory struct {
	orgs []org.Organization
	err  error
}

func (d staticDirectory) List(context.Context, int) ([]org.Organization, error) {
	return d.orgs, d.err
}

func authedRequest(path string, id *identity.Identity) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	return r.WithContext(identity.WithIdentity(r.Context(), id))
}

func TestHandler_Me(t *testing.T) {
	h := New(staticDirectory{}, ratelimit.NewMemoryStore())

	w := httptest.NewRecorder()
	h.Me(w, authedRequest("/v1/me", &identity.Identity{
		UserID:         "u1",
		OrganizationID: uuid.NewString(),
		Role:           identity.RoleUser,
		Plan:           identity.PlanPro,
		Email:          "u1@example.com",
		AuthType:       identity.AuthAPIKey,
		ProjectScope:   "engram",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data identityResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "u1", body.Data.UserID)
	assert.Equal(t, identity.PlanPro, body.Data.Plan)
	assert.Equal(t, string(identity.AuthAPIKey), body.Data.AuthType)
	assert.Equal(t, "engram", body.Data.ProjectScope)
}

func TestHandler_Limits(t *testing.T) {
	counters := ratelimit.NewMemoryStore()
	h := New(staticDirectory{}, counters)

	id := &identity.Identity{UserID: "u1", Plan: identity.PlanFree, AuthType: identity.AuthAPIKey}

	// Two requests already consumed in the current window.
	for range 2 {
		_, err := counters.IncrementOrReset(context.Background(), id.RateKey(), time.Minute)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	h.Limits(w, authedRequest("/v1/limits", id))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data limitsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, identity.PlanFree, body.Data.Plan)
	assert.Equal(t, 60, body.Data.Limit)
	assert.Equal(t, 60, body.Data.WindowSec)
	assert.Equal(t, 2, body.Data.Used)
	assert.NotEmpty(t, body.Data.ResetAt)
}

func TestHandler_LimitsBeforeFirstRequest(t *testing.T) {
	h := New(staticDirectory{}, ratelimit.NewMemoryStore())

	w := httptest.NewRecorder()
	h.Limits(w, authedRequest("/v1/limits", &identity.Identity{
		UserID: "u1", Plan: identity.PlanEnterprise, AuthType: identity.AuthJWT,
	}))

	var body struct {
		Data limitsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 1000, body.Data.Limit)
	assert.Zero(t, body.Data.Used)
	assert.Empty(t, body.Data.ResetAt)
}

func TestHandler_AdminOrganizations(t *testing.T) {
	now := time.Now()
	h := New(staticDirectory{orgs: []org.Organization{
		{ID: uuid.New(), Slug: "acme", Name: "Acme", CreatedAt: now},
		{ID: uuid.New(), Slug: "org-u1-abc", OwnerID: "u1", AutoCreated: true, CreatedAt: now},
	}}, ratelimit.NewMemoryStore())

	w := httptest.NewRecorder()
	h.AdminOrganizations(w, authedRequest("/v1/admin/organizations", &identity.Identity{
		UserID: "admin", Role: identity.RoleAdmin,
	}))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []orgResponse  `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "acme", body.Data[0].Slug)
	assert.True(t, body.Data[1].AutoCreated)
	assert.Equal(t, 2, body.Meta["count"])
}

func TestHandler_AdminOrganizationsStoreError(t *testing.T) {
	h := New(staticDirectory{err: errors.New("boom")}, ratelimit.NewMemoryStore())

	w := httptest.NewRecorder()
	h.AdminOrganizations(w, authedRequest("/v1/admin/organizations", &identity.Identity{
		UserID: "admin", Role: identity.RoleAdmin,
	}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
