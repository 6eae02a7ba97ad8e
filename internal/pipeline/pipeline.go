// Package pipeline is the single authentication and authorization chain every
// inbound request passes through before reaching business logic. It is shared
// by all host adapters: the long-running server mounts it once, and stateless
// function hosts mount the identical chain per invocation, so the credential
// semantics never drift between deployment targets.
package pipeline

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/domain/auth"
	"github.com/engramhq/gateway/internal/domain/identity"
	"github.com/engramhq/gateway/internal/domain/org"
	"github.com/engramhq/gateway/internal/envelope"
	"github.com/engramhq/gateway/internal/ratelimit"
)

// Header names consumed by the pipeline.
const (
	HeaderAPIKey       = "X-API-Key"
	HeaderProjectScope = "X-Project-Scope"
)

const defaultStoreTimeout = 5 * time.Second

// Config holds the pipeline's fixed parameters.
type Config struct {
	// ProjectScope is this service's tenant label. A request whose
	// X-Project-Scope header is present and different is rejected before any
	// credential is inspected. An absent header passes.
	ProjectScope string

	// StoreTimeout bounds each credential/organization store call so a slow
	// store cannot stall every request indefinitely.
	StoreTimeout time.Duration
}

// Pipeline authenticates, resolves, and admits requests.
type Pipeline struct {
	cfg      Config
	apiKeys  *auth.APIKeyAuthenticator
	tokens   *auth.JWTAuthenticator
	orgs     *org.Resolver
	counters ratelimit.CounterStore
}

// New assembles the pipeline. The counter store is injected: process-local
// for a single long-running instance, a shared cache for multi-instance and
// stateless hosts (in-memory counters do not survive stateless invocations,
// so quotas there are best-effort only).
func New(cfg Config, apiKeys *auth.APIKeyAuthenticator, tokens *auth.JWTAuthenticator, orgs *org.Resolver, counters ratelimit.CounterStore) *Pipeline {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &Pipeline{
		cfg:      cfg,
		apiKeys:  apiKeys,
		tokens:   tokens,
		orgs:     orgs,
		counters: counters,
	}
}

// credState is the extractor's position in the credential state machine:
// unauthenticated → (api-key pending | jwt pending) → authenticated or
// rejected.
type credState int

const (
	stateUnauthenticated credState = iota
	stateAPIKeyPending
	stateJWTPending
)

// classify inspects the credential headers. X-API-Key takes precedence over
// Authorization: Bearer when both are sent.
func classify(r *http.Request) (credState, string, error) {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return stateAPIKeyPending, key, nil
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			return stateUnauthenticated, "", &apierror.Error{
				Status:  http.StatusUnauthorized,
				Type:    apierror.TypeAuth,
				Code:    apierror.CodeAuthFailed,
				Message: "unsupported authorization scheme, expected Bearer",
			}
		}
		return stateJWTPending, token, nil
	}
	return stateUnauthenticated, "", apierror.MissingAuth()
}

// Handler runs the full chain in front of next: project-scope equality,
// credential extraction, authentication, organization resolution, and the
// plan-tiered rate limit. On success the authenticated identity is available
// to next via identity.FromContext.
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Scope first: the wrong tenant label is rejected regardless of
		// credential validity.
		if err := p.checkScope(r); err != nil {
			envelope.Error(w, r, err)
			return
		}

		id, err := p.authenticate(r)
		if err != nil {
			envelope.Error(w, r, err)
			return
		}

		if !p.admit(w, r, id) {
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

// checkScope enforces X-Project-Scope equality.
func (p *Pipeline) checkScope(r *http.Request) error {
	scope := r.Header.Get(HeaderProjectScope)
	if scope != "" && scope != p.cfg.ProjectScope {
		return apierror.InvalidProjectScope(scope)
	}
	return nil
}

// authenticate runs the credential state machine to completion. Once started
// it runs synchronously to success or rejection; there is no user-triggered
// abort and no retry.
func (p *Pipeline) authenticate(r *http.Request) (*identity.Identity, error) {
	state, credential, err := classify(r)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.StoreTimeout)
	defer cancel()

	var (
		id           *identity.Identity
		orgCandidate string
	)
	switch state {
	case stateAPIKeyPending:
		id, orgCandidate, err = p.apiKeys.Authenticate(ctx, credential)
	case stateJWTPending:
		id, orgCandidate, err = p.tokens.Authenticate(ctx, credential)
	default:
		return nil, apierror.MissingAuth()
	}
	if err != nil {
		return nil, err
	}
	id.ProjectScope = p.cfg.ProjectScope

	res, err := p.orgs.Resolve(ctx, orgCandidate, id.UserID)
	if err != nil {
		return nil, err
	}
	id.OrganizationID = res.OrganizationID.String()

	zctx.From(r.Context()).Debug("request authenticated",
		zap.String("user_id", id.UserID),
		zap.String("org_id", id.OrganizationID),
		zap.String("org_source", string(res.Source)),
		zap.String("auth_type", string(id.AuthType)),
	)
	return id, nil
}
