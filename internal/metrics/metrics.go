package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futureecho_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futureecho_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futureecho_chat_turns_total",
			Help: "Chat turns by terminal outcome (completed, failed, abandoned).",
		},
		[]string{"outcome"},
	)

	ChatStreamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "futureecho_chat_stream_chunks_total",
			Help: "Generated text chunks forwarded to clients.",
		},
	)

	ChatTurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "futureecho_chat_turn_duration_seconds",
			Help:    "Time from turn start to terminal event.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futureecho_embedding_requests_total",
			Help: "Embedding gateway calls by outcome (ok, error, cache_hit).",
		},
		[]string{"outcome"},
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "futureecho_memory_retrieval_duration_seconds",
			Help:    "Memory retrieval latency, embedding included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futureecho_memory_index_jobs_total",
			Help: "Memory index jobs by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futureecho_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by scope.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChatTurnsTotal,
		ChatStreamChunksTotal,
		ChatTurnDuration,
		EmbeddingRequestsTotal,
		RetrievalDuration,
		IndexJobsTotal,
		RateLimitedTotal,
	)
}
