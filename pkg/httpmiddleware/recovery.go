package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/envelope"
	"github.com/engramhq/gateway/internal/reqctx"
)

// Recovery returns a middleware that recovers from panics, logs them with a
// stack trace, and responds with the 500 error envelope. The stack never
// reaches the client.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					zctx.From(r.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.Stack("stack"),
						zap.String("request_id", reqctx.ID(r.Context())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					envelope.Error(w, r, apierror.Internal())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
