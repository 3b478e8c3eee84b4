package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ProviderRequestsTotal.Inc()
	ProviderFailTotal.WithLabelValues("provider").Inc()
	PointQueriesTotal.WithLabelValues("ok").Inc()
	Subscribers.Set(0)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"aqimap_provider_requests_total",
		`aqimap_provider_fail_total{kind="provider"}`,
		`aqimap_point_queries_total{outcome="ok"}`,
		"aqimap_stale_drops_total",
		"aqimap_event_subscribers 0",
	} {
		assert.Contains(t, string(body), name)
	}
}
