package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatter"

var (
	// IngestSubmitted 入队结果，result: accepted / dropped / rejected / disabled / deleted
	IngestSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "submitted_total",
		Help:      "Messages submitted to the ingestion pipeline by result",
	}, []string{"result"})

	IngestFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "fragments_total",
		Help:      "Fragments written to the vector store",
	}, []string{"kind"})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Ingestion failures by step",
	}, []string{"step"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "batch_duration_seconds",
		Help:      "Time to chunk, embed and upsert one batch",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	RetrievalStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "stage_total",
		Help:      "Retrievals by the fallback stage that produced the result",
	}, []string{"stage"})

	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "duration_seconds",
		Help:      "Hybrid retrieval latency",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
	})

	RetrievalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "errors_total",
		Help:      "Retrieval errors by search kind",
	}, []string{"kind"})

	// EmbeddingCache result: hit / miss
	EmbeddingCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "cache_total",
		Help:      "Embedding cache lookups by result",
	}, []string{"result"})

	EmbeddingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Embedding API latency",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
	}, []string{"status"})

	ShortTermEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "short_term",
		Name:      "evicted_total",
		Help:      "Short-term conversations evicted by reason",
	}, []string{"reason"})

	ShortTermConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "short_term",
		Name:      "conversations",
		Help:      "Conversations currently held by the local short-term store",
	})

	ProfileUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "updates_total",
		Help:      "Profile writes by kind and result",
	}, []string{"kind", "result"})

	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "requests_total",
		Help:      "Chat requests by result",
	}, []string{"stream", "result"})
)
