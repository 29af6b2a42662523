package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

// passMetrics exposes orchestration passes to Prometheus: how many
// passes ran per disposition, how long they took, and the latest value
// of every numeric probe measurement.
type passMetrics struct {
	passes   *prometheus.CounterVec
	duration prometheus.Histogram
	values   *prometheus.GaugeVec
}

func newPassMetrics(reg prometheus.Registerer) *passMetrics {
	m := &passMetrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanari_passes_total",
			Help: "Orchestration passes by disposition (served or timed_out).",
		}, []string{"disposition"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kanari_pass_duration_seconds",
			Help:    "Wall-clock duration of one orchestration pass.",
			Buckets: prometheus.DefBuckets,
		}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kanari_probe_metric_milliseconds",
			Help: "Latest value of each numeric probe measurement.",
		}, []string{"key"}),
	}
	reg.MustRegister(m.passes, m.duration, m.values)
	return m
}

// observe records one finished pass. String-valued entries (error
// descriptions, disabled markers) are not exported as gauges.
func (m *passMetrics) observe(report probe.Report, seconds float64) {
	m.duration.Observe(seconds)

	if report.TimedOut {
		m.passes.WithLabelValues("timed_out").Inc()
		return
	}
	m.passes.WithLabelValues("served").Inc()

	for key, value := range report.Metrics {
		if v, ok := value.(float64); ok {
			m.values.WithLabelValues(key).Set(v)
		}
	}
}
