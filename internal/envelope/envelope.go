// Package envelope frames every HTTP response body the gateway produces.
//
// Success bodies look like
//
//	{"data": ..., "request_id": "...", "timestamp": "...", "meta": {...}}
//
// and error bodies like
//
//	{"error": {"message","type","code"}, "request_id", "timestamp", "path", "method"}
//
// The request_id field always equals the X-Request-ID response header. Clients
// never receive a stack trace or an HTML error page.
package envelope

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/apierror"
	"github.com/engramhq/gateway/internal/reqctx"
)

const timeLayout = time.RFC3339

// Success writes a success envelope with the given payload. The payload is
// marshaled with encoding/json and spliced into the jx-built frame. A nil
// meta omits the meta field.
func Success(w http.ResponseWriter, r *http.Request, status int, data any, meta any) {
	raw, err := json.Marshal(data)
	if err != nil {
		Error(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("data")
	e.Raw(raw)
	e.FieldStart("request_id")
	e.Str(reqctx.ID(r.Context()))
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(timeLayout))
	if meta != nil {
		rawMeta, err := json.Marshal(meta)
		if err == nil {
			e.FieldStart("meta")
			e.Raw(rawMeta)
		}
	}
	e.ObjEnd()

	write(w, status, e.Bytes())
}

// Error maps err through apierror.From and writes the error envelope.
// Non-apierror values are logged with full context server-side and reported
// to the client as a bare 500 INTERNAL_ERROR.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apierror.Error
	if !errors.As(err, &ae) {
		ae = apierror.Internal()
		zctx.From(r.Context()).Error("unhandled error",
			zap.Error(err),
			zap.String("request_id", reqctx.ID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
	writeError(w, r, ae, nil)
}

// NotFound returns the global 404 handler. The envelope additionally lists
// the endpoint prefixes this service does serve.
func NotFound(prefixes []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apierror.NotFound(r.URL.Path), func(e *jx.Encoder) {
			e.FieldStart("available_endpoints")
			e.ArrStart()
			for _, p := range prefixes {
				e.Str(p)
			}
			e.ArrEnd()
		})
	})
}

func writeError(w http.ResponseWriter, r *http.Request, ae *apierror.Error, extra func(*jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("message")
	e.Str(ae.Message)
	e.FieldStart("type")
	e.Str(ae.Type)
	e.FieldStart("code")
	e.Str(ae.Code)
	e.ObjEnd()
	e.FieldStart("request_id")
	e.Str(reqctx.ID(r.Context()))
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(timeLayout))
	e.FieldStart("path")
	e.Str(r.URL.Path)
	e.FieldStart("method")
	e.Str(r.Method)
	if extra != nil {
		extra(&e)
	}
	e.ObjEnd()

	write(w, ae.Status, e.Bytes())
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
