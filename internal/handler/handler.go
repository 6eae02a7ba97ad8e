// Package handler implements the gateway's own protected routes. The memory
// API itself is an external collaborator mounted behind the pipeline; the
// routes here expose the resolved identity, quota state, and admin views.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/engramhq/gateway/internal/domain/identity"
	"github.com/engramhq/gateway/internal/domain/org"
	"github.com/engramhq/gateway/internal/domain/plan"
	"github.com/engramhq/gateway/internal/envelope"
	"github.com/engramhq/gateway/internal/ratelimit"
)

// OrgDirectory is the narrow organization listing interface the admin route
// needs.
type OrgDirectory interface {
	List(ctx context.Context, limit int) ([]org.Organization, error)
}

// Handler serves the gateway's identity and admin routes.
type Handler struct {
	orgs     OrgDirectory
	counters ratelimit.CounterStore
}

// New constructs a Handler.
func New(orgs OrgDirectory, counters ratelimit.CounterStore) *Handler {
	return &Handler{orgs: orgs, counters: counters}
}

type identityResponse struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
	Plan           string `json:"plan"`
	Email          string `json:"email,omitempty"`
	AuthType       string `json:"auth_type"`
	ProjectScope   string `json:"project_scope"`
}

// Me echoes the authenticated identity resolved by the pipeline.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	envelope.Success(w, r, http.StatusOK, identityResponse{
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		Role:           id.Role,
		Plan:           id.Plan,
		Email:          id.Email,
		AuthType:       string(id.AuthType),
		ProjectScope:   id.ProjectScope,
	}, nil)
}

type limitsResponse struct {
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	WindowSec int    `json:"window_seconds"`
	Used      int    `json:"used"`
	ResetAt   string `json:"reset_at,omitempty"`
}

// Limits reports the caller's plan tier and, when the counter store supports
// peeking, the usage within the current window.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	tier := plan.TierFor(id.Plan)

	resp := limitsResponse{
		Plan:      id.Plan,
		Limit:     tier.Limit,
		WindowSec: int(tier.Window / time.Second),
	}
	if peeker, ok := h.counters.(ratelimit.Peeker); ok {
		if c, ok := peeker.Peek(r.Context(), id.RateKey()); ok {
			resp.Used = c.Count
			resp.ResetAt = c.ResetAt.UTC().Format(time.RFC3339)
		}
	}

	envelope.Success(w, r, http.StatusOK, resp, nil)
}

type orgResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id,omitempty"`
	AutoCreated bool   `json:"auto_created"`
	CreatedAt   string `json:"created_at"`
}

const adminOrgListLimit = 100

// AdminOrganizations lists recently created organizations. Mounted behind
// RequireAdmin.
func (h *Handler) AdminOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context(), adminOrgListLimit)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}

	out := make([]orgResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, orgResponse{
			ID:          o.ID.String(),
			Slug:        o.Slug,
			Name:        o.Name,
			OwnerID:     o.OwnerID,
			AutoCreated: o.AutoCreated,
			CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	envelope.Success(w, r, http.StatusOK, out, map[string]int{"count": len(out)})
}
