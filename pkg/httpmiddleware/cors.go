package httpmiddleware

import (
	"net/http"
	"strings"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/envelope"
)

// DevOrigins are always allowed so local extension and web clients work
// without configuration.
var DevOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
}

// corsAllowHeaders lists the request headers clients may send, including the
// gateway's own credential and scope headers.
const corsAllowHeaders = "Content-Type, Authorization, X-API-Key, X-Project-Scope, X-Request-ID"

const corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

// corsMaxAge lets browsers cache preflight results for 24 hours.
const corsMaxAge = "86400"

// CORSConfig configures the CORS guard.
type CORSConfig struct {
	// AllowOrigins is appended to DevOrigins. Matching is case-insensitive;
	// the original-case config value is echoed back.
	AllowOrigins []string
}

// CORS returns the origin-allowlist guard. Requests without an Origin header
// pass through untouched (same-origin and server-to-server traffic is outside
// CORS scope). Requests from an allowed origin get the Access-Control-Allow-*
// headers; preflights additionally stop at 204. A present-but-disallowed
// origin is rejected with a 403 ORIGIN_NOT_ALLOWED envelope and never reaches
// later stages.
//
// Every response, whatever the origin outcome, also receives the baseline
// security headers: X-Content-Type-Options, X-Frame-Options, and
// Referrer-Policy.
func CORS(cfg CORSConfig) Middleware {
	allowed := make(map[string]string, len(DevOrigins)+len(cfg.AllowOrigins)) // lowercase -> original
	for _, o := range DevOrigins {
		allowed[strings.ToLower(o)] = o
	}
	for _, o := range cfg.AllowOrigins {
		if o == "" {
			continue
		}
		allowed[strings.ToLower(o)] = o
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			setSecurityHeaders(w)

			origin := r.Header.Get("Origin")
			if origin == "" {
				w.Header().Add("Vary", "Origin")
				next.ServeHTTP(w, r)
				return
			}

			// Case-insensitive lookup, original-case echo-back.
			allowOrigin, ok := allowed[strings.ToLower(origin)]
			if !ok {
				envelope.Error(w, r, apierror.OriginNotAllowed(origin))
				return
			}

			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
