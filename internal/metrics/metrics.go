package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeError labels evaluations that failed on configuration or data access.
	OutcomeError = "error"

	// AlertEmitted labels alerts written for the first time.
	AlertEmitted = "emitted"
	// AlertDuplicate labels alerts suppressed because they were already emitted.
	AlertDuplicate = "duplicate"
	// AlertFailed labels alerts that could not be persisted.
	AlertFailed = "failed"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benchguard",
			Name:      "evaluations_total",
			Help:      "Total number of regression evaluations, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	evaluationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "benchguard",
			Name:      "evaluation_seconds",
			Help:      "Regression evaluation latency in seconds, including history retrieval.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
	)

	historySamples = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "benchguard",
			Name:      "history_samples",
			Help:      "Number of historical samples retrieved per evaluation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benchguard",
			Name:      "alerts_total",
			Help:      "Alert emission attempts, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches benchguard collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		evaluationsTotal,
		evaluationDurationSeconds,
		historySamples,
		alertsTotal,
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

// ObserveEvaluation records an evaluation duration and its outcome label
// (a verdict outcome or OutcomeError).
func ObserveEvaluation(duration time.Duration, outcome string) {
	if outcome == "" {
		outcome = OutcomeError
	}
	evaluationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	evaluationDurationSeconds.Observe(duration.Seconds())
}

// ObserveHistory records how many samples backed an evaluation.
func ObserveHistory(count int) {
	historySamples.Observe(float64(count))
}

// ObserveAlert counts an alert emission attempt.
func ObserveAlert(result string) {
	alertsTotal.WithLabelValues(result).Inc()
}
