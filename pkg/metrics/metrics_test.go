package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/metrics"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

func TestMetrics_Hooks(t *testing.T) {
	t.Parallel()
	m := metrics.New("test")

	m.ObserveProvider("submit", "", 20*time.Millisecond)
	m.ObserveProvider("submit", processing.Transient, time.Second)
	m.ObserveAppend(1024)
	m.ObserveAppend(1024)
	m.ObserveTransition(video.StatusProcessing, video.StatusReady)
	m.ObserveViolation(&isolation.Violation{Op: "get", Table: "videos"})
	m.ObserveReport(jobs.Report{
		Job:        "usage_sync",
		Outcome:    jobs.OutcomeSucceededWithFailures,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
		Failures:   []jobs.TenantFailure{{Slug: "a"}, {Slug: "b"}},
	})
	m.ObserveSkip("usage_sync")

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	for _, want := range []string{
		`test_upload_bytes_total 2048`,
		`test_video_transitions_total{from="processing",to="ready"} 1`,
		`test_isolation_violations_total{op="get",table="videos"} 1`,
		`test_job_runs_total{job="usage_sync",outcome="succeeded_with_failures"} 1`,
		`test_job_tenant_failures_total{job="usage_sync"} 2`,
		`test_job_skipped_total{job="usage_sync"} 1`,
		`test_provider_call_duration_seconds_count{op="submit",result="ok"} 1`,
		`test_provider_call_duration_seconds_count{op="submit",result="transient"} 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()
	m := metrics.New("test")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/videos/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/"+id, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	expected := `
# HELP test_http_requests_total Total number of HTTP requests
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/videos/{id}",status="202"} 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_http_requests_total"))
}
