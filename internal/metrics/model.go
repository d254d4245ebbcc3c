package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matrix-factorization Prometheus metrics.
var (
	TrainingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "training_total",
			Help:      "Total number of training runs",
		},
		[]string{"operation", "status"}, // operation: "create" / "update"
	)

	TrainingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modeld",
			Name:      "training_duration_seconds",
			Help:      "Training duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"operation"},
	)

	TrainingRatings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modeld",
			Name:      "training_ratings",
			Help:      "Number of ratings per training request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "evaluations_total",
			Help:      "Total number of model evaluations",
		},
		[]string{"status"},
	)

	ArtifactOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "artifact_operations_total",
			Help:      "Artifact store operations",
		},
		[]string{"operation", "status"},
	)
)

var modelMetricsRegistered bool

// RegisterModelMetrics registers Prometheus model metrics. Must be called once from main.
func RegisterModelMetrics() {
	if modelMetricsRegistered {
		return
	}
	prometheus.MustRegister(TrainingTotal)
	prometheus.MustRegister(TrainingDuration)
	prometheus.MustRegister(TrainingRatings)
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(ArtifactOperationsTotal)
	modelMetricsRegistered = true
}

// Status maps an error to the "status" label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
