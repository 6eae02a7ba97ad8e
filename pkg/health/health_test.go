package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var body probeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestService_NotReadyUntilGateOpens(t *testing.T) {
	s := New()

	code, body := probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body.Status)

	s.SetReady(true)
	code, body = probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	// Draining closes the gate again.
	s.SetReady(false)
	code, _ = probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestService_ChecksStartHealthy(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("down")
	})

	// Before any run the check reports healthy; failures accumulate in the
	// background loop.
	code, body := probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Checks["db"])
}

func TestCheck_FailureThresholdAndRecovery(t *testing.T) {
	var fail bool
	c := &check{name: "db", timeout: time.Second, fn: func(context.Context) error {
		if fail {
			return errors.New("connection refused")
		}
		return nil
	}}
	c.healthy.Store(true)

	fail = true
	c.run(context.Background())
	c.run(context.Background())
	assert.True(t, c.healthy.Load(), "below the threshold the check stays healthy")

	c.run(context.Background())
	assert.False(t, c.healthy.Load(), "third consecutive failure flips it")

	fail = false
	c.run(context.Background())
	assert.True(t, c.healthy.Load(), "a single success recovers")
}

func TestService_UnhealthyCheckFailsProbe(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	for range failureThreshold {
		s.readiness[0].run(context.Background())
	}

	code, body := probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", body.Checks["db"])

	// Liveness is independent of readiness checks.
	code, _ = probe(t, s.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
