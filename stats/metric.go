// Package stats implements spec §4.12's stats registry: every long-lived
// owner (server, escaper, listener, log target, worker) registers its
// counters/histograms at creation, a single ticking goroutine snapshots
// them at emit_interval and ships the delta to a Sink, and Prometheus
// remains the external query surface for whatever the sink forwards.
// Grounded on the teacher's prometheus/metrics package's NewMetrics/
// SetDesc/AddLabel/Register/Inc/Add/Observe API shape, rebuilt directly
// against prometheus/client_golang since the pack retains only that
// package's test suite and not its implementation (see DESIGN.md).
package stats

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind mirrors the teacher's prometheus/types.Kind enum (Counter, Gauge,
// Histogram, Summary, None); Summary and None are kept for parity with
// that enum's shape even though this repo only emits Counter/Gauge/
// Histogram metrics.
type Kind int

const (
	KindNone Kind = iota
	KindCounter
	KindGauge
	KindHistogram
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindSummary:
		return "summary"
	default:
		return "none"
	}
}

// Metric wraps one named Prometheus vector collector, deferring the
// label-value list to each call site the way the teacher's metrics type
// defers it to Inc/Add/Observe's []string argument.
type Metric struct {
	name    string
	desc    string
	kind    Kind
	labels  []string
	buckets []float64

	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

// NewCounter builds an unregistered Counter metric.
func NewCounter(name, desc string, labels ...string) *Metric {
	return &Metric{name: name, desc: desc, kind: KindCounter, labels: labels}
}

// NewGauge builds an unregistered Gauge metric.
func NewGauge(name, desc string, labels ...string) *Metric {
	return &Metric{name: name, desc: desc, kind: KindGauge, labels: labels}
}

// NewHistogramMetric builds an unregistered Histogram metric with
// explicit bucket boundaries.
func NewHistogramMetric(name, desc string, buckets []float64, labels ...string) *Metric {
	return &Metric{name: name, desc: desc, kind: KindHistogram, labels: labels, buckets: buckets}
}

func (m *Metric) GetName() string      { return m.name }
func (m *Metric) GetDesc() string      { return m.desc }
func (m *Metric) GetType() Kind        { return m.kind }
func (m *Metric) GetLabel() []string   { return m.labels }
func (m *Metric) GetBuckets() []float64 { return m.buckets }

// Register creates the backing Prometheus collector and registers it
// against reg. Calling Register twice is an error, matching the
// teacher's "duplicate name" rejection.
func (m *Metric) Register(reg *prometheus.Registry) error {
	switch m.kind {
	case KindCounter:
		if m.counter != nil {
			return fmt.Errorf("stats: metric %q already registered", m.name)
		}
		m.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: m.name, Help: m.desc}, m.labels)
		return reg.Register(m.counter)
	case KindGauge:
		if m.gauge != nil {
			return fmt.Errorf("stats: metric %q already registered", m.name)
		}
		m.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: m.name, Help: m.desc}, m.labels)
		return reg.Register(m.gauge)
	case KindHistogram:
		if m.histogram != nil {
			return fmt.Errorf("stats: metric %q already registered", m.name)
		}
		m.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: m.name, Help: m.desc, Buckets: m.buckets}, m.labels)
		return reg.Register(m.histogram)
	default:
		return fmt.Errorf("stats: metric %q has no collectible kind", m.name)
	}
}

func (m *Metric) Inc(labelValues []string) error {
	return m.Add(labelValues, 1)
}

func (m *Metric) Add(labelValues []string, v float64) error {
	switch m.kind {
	case KindCounter:
		if m.counter == nil {
			return fmt.Errorf("stats: metric %q not registered", m.name)
		}
		m.counter.WithLabelValues(labelValues...).Add(v)
		return nil
	case KindGauge:
		if m.gauge == nil {
			return fmt.Errorf("stats: metric %q not registered", m.name)
		}
		m.gauge.WithLabelValues(labelValues...).Add(v)
		return nil
	default:
		return fmt.Errorf("stats: metric %q does not support Add", m.name)
	}
}

func (m *Metric) SetGaugeValue(labelValues []string, v float64) error {
	if m.kind != KindGauge || m.gauge == nil {
		return fmt.Errorf("stats: metric %q is not a registered gauge", m.name)
	}
	m.gauge.WithLabelValues(labelValues...).Set(v)
	return nil
}

func (m *Metric) Observe(labelValues []string, v float64) error {
	if m.kind != KindHistogram || m.histogram == nil {
		return fmt.Errorf("stats: metric %q is not a registered histogram", m.name)
	}
	m.histogram.WithLabelValues(labelValues...).Observe(v)
	return nil
}
