package metrics_test

import (
	"testing"

	"github.com/jonesrussell/crawld/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "worker-1")

	m.Fetched.WithLabelValues("2xx").Inc()
	m.Failed.WithLabelValues("timeout").Inc()
	m.Dropped.WithLabelValues("robots_disallow").Inc()
	m.DuplicateContent.Inc()
	m.Recovered.Inc()

	assert.InDelta(t, 1, counterValue(t, m.Fetched.WithLabelValues("2xx")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Failed.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Dropped.WithLabelValues("robots_disallow")), 0)
	assert.InDelta(t, 1, counterValue(t, m.DuplicateContent), 0)
	assert.InDelta(t, 1, counterValue(t, m.Recovered), 0)
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg, "worker-1")
	assert.Panics(t, func() {
		metrics.New(reg, "worker-1")
	})
}
