package stats

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/metrics"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /metrics to be set")
	assert.Equal(t, "GET /metrics", pattern, "expected handler to be registered for GET method on /metrics")
}

func scrape(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStatsUpdater_IncrDecr(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(ConnectedClients)
	su.RegisterMetric(ConnectedClients)
	su.Run()
	defer su.Stop()

	su.Incr(ConnectedClients)
	su.Incr(ConnectedClients)
	su.Decr(ConnectedClients)
	su.Incr("unregistered")

	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(t, mux), "fellowship_connected_clients 1")
	}, time.Second, 10*time.Millisecond)

	out := scrape(t, mux)
	assert.Contains(t, out, "fellowship_uptime_seconds")
	assert.NotContains(t, out, "unregistered")
}

func TestStatsUpdater_StopTwice(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.Run()
	su.Stop()
	assert.NotPanics(t, su.Stop)
}
