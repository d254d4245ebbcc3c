package metrics

import "github.com/prometheus/client_golang/prometheus"

// Word-vector Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "embedding_requests_total",
			Help:      "Total number of center computations",
		},
		[]string{"provider", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modeld",
			Name:      "embedding_request_duration_seconds",
			Help:      "Center computation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "embedding_errors_total",
			Help:      "Total embedder errors",
		},
		[]string{"provider", "error_type"},
	)

	EmbeddingWordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "embedding_words_total",
			Help:      "Words submitted to the embedder after filtering",
		},
		[]string{"provider"},
	)

	EmbedderLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modeld",
			Name:      "embedder_loaded",
			Help:      "1 when the word-vector table is loaded",
		},
		[]string{"provider"},
	)

	EmbedderLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modeld",
			Name:      "embedder_load_duration_seconds",
			Help:      "Time spent loading the word-vector table",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	CenterCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modeld",
			Name:      "center_cache_total",
			Help:      "Center cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers Prometheus word-vector metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(EmbeddingWordsTotal)
	prometheus.MustRegister(EmbedderLoaded)
	prometheus.MustRegister(EmbedderLoadDuration)
	prometheus.MustRegister(CenterCacheTotal)
	embMetricsRegistered = true
}
