package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/iGTsan/flow-inspector/internal/metrics"
)

func TestMetrics_CountersIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.PacketsProcessed.Inc()
	m.PacketsDropped.Inc()
	m.RuleMatches.WithLabelValues("r1", "Alert").Inc()
	m.QueueDepth.Set(3)

	assertCounterValue(t, m.PacketsProcessed, 1)
	assertCounterValue(t, m.PacketsDropped, 1)
}

func assertCounterValue(t *testing.T, c prometheus.Counter, want float64) {
	t.Helper()

	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	require.Equal(t, want, pb.GetCounter().GetValue())
}
