package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.HandlerFunc) (int, HealthResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return rec.Code, resp
}

func TestHealthAlwaysOK(t *testing.T) {
	t.Parallel()

	hc := New()

	code, resp := probe(t, hc.Health())
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", resp.Status)
	require.NotEmpty(t, resp.Uptime)
}

func TestReadyFollowsReadiness(t *testing.T) {
	t.Parallel()

	hc := New()

	code, resp := probe(t, hc.Ready())
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "not_ready", resp.Status)

	hc.SetReady(true)

	code, resp = probe(t, hc.Ready())
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", resp.Status)

	// Readiness is revocable during shutdown.
	hc.SetReady(false)

	code, _ = probe(t, hc.Ready())
	require.Equal(t, http.StatusServiceUnavailable, code)
}
