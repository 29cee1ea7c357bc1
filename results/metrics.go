package results

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/branchbench/branchbench/model"
)

// Metrics aggregates flushed records into Prometheus collectors, so a run can
// be summarized as a node_exporter textfile.
type Metrics struct {
	registry *prometheus.Registry
	latency  *prometheus.HistogramVec
	records  *prometheus.CounterVec
	keys     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "branchbench",
			Name:      "operation_latency_seconds",
			Help:      "Latency of timed database operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"op_type"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branchbench",
			Name:      "records_total",
			Help:      "Number of flushed operation records.",
		}, []string{"op_type"}),
		keys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branchbench",
			Name:      "keys_touched_total",
			Help:      "Number of keys touched by flushed operations.",
		}, []string{"op_type"}),
	}
	m.registry.MustRegister(m.latency, m.records, m.keys)
	return m
}

// Registry exposes the underlying registry, e.g. for serving or testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(rec model.Record) {
	op := rec.OpType.String()
	m.records.WithLabelValues(op).Inc()
	m.keys.WithLabelValues(op).Add(float64(rec.NumKeysTouched))
	if rec.OpType != model.OpTypeUnspecified {
		m.latency.WithLabelValues(op).Observe(rec.Latency)
	}
}

// WriteTextfile writes the current metric values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
