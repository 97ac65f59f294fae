package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.JobEnqueued("analyze")
	m.JobEnqueued("analyze")
	m.JobFinished("analyze", "completed", 2*time.Second)
	m.QueueDepth(3)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.jobsEnqueued.WithLabelValues("analyze")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("analyze", "completed")), 0.001)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.queueDepth), 0.001)
}

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveHTTP("GET", "/api/v1/tracks/:id", "200", 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/v1/tracks/:id", "200", 5*time.Millisecond)

	assert.InDelta(t, 2.0,
		testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/tracks/:id", "200")), 0.001)
}

func TestRegistryGathersAllCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAnalyze(time.Second)
	m.ObserveRender(30 * time.Second)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["automix_analyze_duration_seconds"])
	assert.True(t, names["automix_render_duration_seconds"])
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	t.Parallel()

	// Private registries keep MustRegister from panicking on the second
	// instance.
	_ = New()
	_ = New()
}
