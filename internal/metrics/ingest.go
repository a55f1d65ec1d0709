package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	IngestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "ingest_rows_total",
			Help:      "Total number of tabular rows aggregated",
		},
		[]string{"status"}, // "ok" / "error"
	)

	IngestArtifactsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "ingest_artifacts_total",
			Help:      "Total number of document artifacts materialized",
		},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Name:      "ingest_chunks_total",
			Help:      "Total number of chunks indexed",
		},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestRowsTotal)
	prometheus.MustRegister(IngestArtifactsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	ingestMetricsRegistered = true
}
