package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model-service Prometheus metrics. The "service" label is either
// "embedding" or "generation".
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "model_requests_total",
			Help:      "Total number of model service requests",
		},
		[]string{"service", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpusqa",
			Name:      "model_request_duration_seconds",
			Help:      "Model service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "model"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "model_tokens_total",
			Help:      "Total model service tokens consumed",
		},
		[]string{"service", "model", "type"},
	)

	ModelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "model_errors_total",
			Help:      "Total model service errors",
		},
		[]string{"service", "model", "error_type"},
	)

	ModelRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "model_retries_total",
			Help:      "Total model service request retries",
		},
		[]string{"service", "model"},
	)
)

var modelMetricsRegistered bool

// RegisterModelMetrics registers Prometheus model metrics. Must be called once from main.
func RegisterModelMetrics() {
	if modelMetricsRegistered {
		return
	}
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(ModelTokensTotal)
	prometheus.MustRegister(ModelErrorsTotal)
	prometheus.MustRegister(ModelRetriesTotal)
	modelMetricsRegistered = true
}
