// Package metrics exposes Prometheus instrumentation for the rollout
// pipeline.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200}

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	gatesTotal  *prometheus.CounterVec
	probesTotal *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// New registers the pipeline collectors with the given registerer and
// returns the metrics handle. Re-registration reuses the existing
// collectors so tests can construct multiple services per process.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollout",
			Name:      "runs_total",
			Help:      "Count of finished rollout runs by terminal status",
		}, []string{"application", "status"}),
		gatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollout",
			Name:      "gate_results_total",
			Help:      "Count of gate evaluations by gate name and verdict",
		}, []string{"gate", "passed"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollout",
			Name:      "probes_total",
			Help:      "Count of finished readiness probes by environment and result",
		}, []string{"environment", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollout",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of rollout runs",
			Buckets:   durationBuckets,
		}, []string{"application"}),
	}

	m.runsTotal = registerCounterVec(reg, m.runsTotal)
	m.gatesTotal = registerCounterVec(reg, m.gatesTotal)
	m.probesTotal = registerCounterVec(reg, m.probesTotal)
	m.runDuration = registerHistogramVec(reg, m.runDuration)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(application, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(application, status).Inc()
	m.runDuration.WithLabelValues(application).Observe(duration.Seconds())
}

// ObserveProbe records one finished readiness probe.
func (m *Metrics) ObserveProbe(environment, result string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(environment, result).Inc()
}

// ObserveGate records one gate verdict.
func (m *Metrics) ObserveGate(gate string, passed bool) {
	if m == nil {
		return
	}
	verdict := "false"
	if passed {
		verdict = "true"
	}
	m.gatesTotal.WithLabelValues(gate, verdict).Inc()
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return h
}
