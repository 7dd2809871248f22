package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCounterIncAndAdd(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCounter("requests_total", "total requests", "method")
	require.NoError(t, m.Register(reg))
	require.Equal(t, KindCounter, m.GetType())

	require.NoError(t, m.Inc([]string{"GET"}))
	require.NoError(t, m.Add([]string{"GET"}, 4))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, 5.0, families[0].Metric[0].GetCounter().GetValue())
}

func TestGaugeSetAndAdd(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGauge("queue_size", "queue depth", "queue")
	require.NoError(t, g.Register(reg))

	require.NoError(t, g.SetGaugeValue([]string{"jobs"}, 42))
	require.NoError(t, g.Add([]string{"jobs"}, -3))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 39.0, families[0].Metric[0].GetGauge().GetValue())
}

func TestHistogramMetricObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHistogramMetric("duration_seconds", "duration", []float64{0.1, 0.5, 1}, "method")
	require.NoError(t, h.Register(reg))
	require.NoError(t, h.Observe([]string{"GET"}, 0.2))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.EqualValues(t, 1, families[0].Metric[0].GetHistogram().GetSampleCount())
}

func TestDoubleRegisterRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounter("dup", "dup")
	require.NoError(t, c.Register(reg))
	require.Error(t, c.Register(reg))
}

func TestAddOnHistogramRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHistogramMetric("h", "h", []float64{1, 2})
	require.NoError(t, h.Register(reg))
	require.Error(t, h.Add(nil, 1))
}
