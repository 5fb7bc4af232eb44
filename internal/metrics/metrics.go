package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels cycles that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels cycles abandoned on a failure.
	OutcomeError = "error"

	// CycleAggregation and CycleDetection partition cyclesTotal by loop.
	CycleAggregation = "aggregation"
	CycleDetection   = "detection"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsehound",
			Name:      "cycles_total",
			Help:      "Scheduled cycles executed, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsehound",
			Name:      "anomalies_total",
			Help:      "Anomalies detected, partitioned by metric and severity.",
		},
		[]string{"metric", "severity"},
	)

	suppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulsehound",
			Name:      "suppressed_total",
			Help:      "Anomalies suppressed by the cooldown governor.",
		},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulsehound",
			Name:      "analysis_seconds",
			Help:      "Root-cause analysis latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
)

// Register attaches pulsehound collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		anomaliesTotal,
		suppressedTotal,
		analysisDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records one scheduled cycle outcome.
func ObserveCycle(kind string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	cyclesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveAnomaly records a detected anomaly.
func ObserveAnomaly(metric, severity string) {
	anomaliesTotal.WithLabelValues(metric, severity).Inc()
}

// ObserveSuppressed records a cooldown suppression.
func ObserveSuppressed() {
	suppressedTotal.Inc()
}

// ObserveAnalysis records how long a root-cause analysis took.
func ObserveAnalysis(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}
