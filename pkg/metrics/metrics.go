package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Suite/phase metrics
	PhasesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrenbench_phases_started_total",
			Help: "Total number of test phases started, by phase name",
		},
		[]string{"phase"},
	)

	PhasesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrenbench_phases_completed_total",
			Help: "Total number of test phases completed, by phase name",
		},
		[]string{"phase"},
	)

	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warrenbench_phase_duration_seconds",
			Help:    "Time taken for all workers to clear a phase barrier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	TestSuiteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warrenbench_test_suite_duration_seconds",
			Help:    "Wall-clock time to run a test suite end to end",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// Failure metrics
	FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrenbench_failures_total",
			Help: "Total number of failure operations recorded, by failure kind",
		},
		[]string{"kind"},
	)

	// Worker population metrics
	WorkersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrenbench_workers_registered",
			Help: "Number of workers currently present in the component registry",
		},
	)

	WorkersFinished = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrenbench_workers_finished",
			Help: "Number of workers that have reported WorkerFinished or WorkerFinishedNormal",
		},
	)

	AgentsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrenbench_agents_registered",
			Help: "Number of agents currently present in the component registry",
		},
	)

	// Performance sample metrics, one gauge per currently-running test
	TestOperationsPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warrenbench_test_ops_per_second",
			Help: "Most recently reported operations/second for a running test",
		},
		[]string{"test_id"},
	)

	TestLatencyP50Ms = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warrenbench_test_latency_p50_ms",
			Help: "Most recently reported p50 latency in milliseconds for a running test",
		},
		[]string{"test_id"},
	)

	TestLatencyP99Ms = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warrenbench_test_latency_p99_ms",
			Help: "Most recently reported p99 latency in milliseconds for a running test",
		},
		[]string{"test_id"},
	)
)

func init() {
	prometheus.MustRegister(PhasesStarted)
	prometheus.MustRegister(PhasesCompleted)
	prometheus.MustRegister(PhaseDuration)
	prometheus.MustRegister(TestSuiteDuration)
	prometheus.MustRegister(FailuresTotal)
	prometheus.MustRegister(WorkersRegistered)
	prometheus.MustRegister(WorkersFinished)
	prometheus.MustRegister(AgentsRegistered)
	prometheus.MustRegister(TestOperationsPerSecond)
	prometheus.MustRegister(TestLatencyP50Ms)
	prometheus.MustRegister(TestLatencyP99Ms)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
