// Package reqctx carries per-request tracing metadata through the context.
package reqctx

import (
	"context"
	"time"
)

// Request describes a single inbound request. It is created once by the
// request-id middleware and read by every later stage; the response envelope
// embeds its ID.
type Request struct {
	ID        string
	Timestamp time.Time
	Method    string
	Path      string
}

type ctxKey struct{}

// With returns a context carrying rc.
func With(ctx context.Context, rc Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// From extracts the request metadata from the context. The zero value is
// returned when no request-id middleware ran.
func From(ctx context.Context) Request {
	if rc, ok := ctx.Value(ctxKey{}).(Request); ok {
		return rc
	}
	return Request{}
}

// ID is shorthand for From(ctx).ID.
func ID(ctx context.Context) string {
	return From(ctx).ID
}
