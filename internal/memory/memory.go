// Package memory declares the interface to the memory-storage backend. The
// backend itself (CRUD, embeddings, search) lives in a separate service; the
// gateway only authenticates and forwards to whatever handler is injected.
package memory

import (
	"net/http"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/envelope"
)

// Service handles the /v1/memories routes after the pipeline has admitted
// the request. Implementations receive the authenticated identity via
// identity.FromContext.
type Service interface {
	http.Handler
}

// Unrouted is the placeholder Service used when no memory backend is wired
// in; it answers every request with a 503 envelope.
func Unrouted() Service {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope.Error(w, r, apierror.UpstreamUnavailable("memory"))
	})
}
