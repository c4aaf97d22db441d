package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheLookup(t *testing.T) {
	r := NewRegistry()

	r.RecordCacheLookup("power", true)
	r.RecordCacheLookup("power", false)
	r.RecordCacheLookup("power", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookupsTotal.WithLabelValues("power", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookupsTotal.WithLabelValues("power", "miss")))
}

func TestRecordEndpointAttempt(t *testing.T) {
	r := NewRegistry()

	r.RecordEndpointAttempt("https://a.example/api", errors.New("timeout"))
	r.RecordEndpointAttempt("https://b.example/api", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.EndpointAttemptsTotal.WithLabelValues("https://a.example/api", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EndpointAttemptsTotal.WithLabelValues("https://b.example/api", "success")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordCacheLookup("boundary", true)
		r.RecordEndpointAttempt("x", nil)
		r.RecordFetch("power", time.Second)
		r.RecordPathResolution("found")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordPathResolution("found")
	r.RecordFetch("boundary", 2*time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `powergrid_path_resolutions_total{result="found"} 1`))
	assert.Contains(t, body, "powergrid_mapdata_fetch_duration_seconds_bucket")
}
