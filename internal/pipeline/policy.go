package pipeline

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/identity"
	"github.com/engramhq/gateway/internal/domain/plan"
	"github.com/engramhq/gateway/internal/envelope"
	"github.com/engramhq/gateway/pkg/httpmiddleware"
)

// admit applies the plan-tiered rate limit and writes the X-RateLimit-*
// headers. It reports whether the request may proceed; on rejection the 429
// envelope has already been written.
//
// The quota is soft: the counter store increments atomically per store, but
// concurrent in-flight requests and per-instance stores mean the count is not
// billing-grade exact.
func (p *Pipeline) admit(w http.ResponseWriter, r *http.Request, id *identity.Identity) bool {
	tier := plan.TierFor(id.Plan)

	c, err := p.counters.IncrementOrReset(r.Context(), id.RateKey(), tier.Window)
	if err != nil {
		envelope.Error(w, r, err)
		return false
	}

	remaining := tier.Limit - c.Count
	if remaining < 0 {
		remaining = 0
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(tier.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(c.ResetAt.Unix(), 10))

	if c.Count > tier.Limit {
		envelope.Error(w, r, apierror.RateLimitExceeded())
		return false
	}
	return true
}

// ScopeCheck re-validates X-Project-Scope equality on protected route groups,
// defense-in-depth behind the pipeline's initial check.
func (p *Pipeline) ScopeCheck() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := p.checkScope(r); err != nil {
				envelope.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits only identities whose role is in the allowlist.
func RequireRole(roles ...string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				envelope.Error(w, r, apierror.MissingAuth())
				return
			}
			if !slices.Contains(roles, id.Role) {
				envelope.Error(w, r, apierror.InsufficientRole(roles, id.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePlan admits only identities whose plan is in the allowlist.
func RequirePlan(plans ...string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				envelope.Error(w, r, apierror.MissingAuth())
				return
			}
			if !slices.Contains(plans, id.Plan) {
				envelope.Error(w, r, apierror.InsufficientPlan(plans, id.Plan))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits only admin identities.
func RequireAdmin() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				envelope.Error(w, r, apierror.MissingAuth())
				return
			}
			if !id.IsAdmin() {
				envelope.Error(w, r, apierror.InsufficientRole([]string{identity.RoleAdmin}, id.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
