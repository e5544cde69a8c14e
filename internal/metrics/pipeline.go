package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics. Registered explicitly via RegisterPipelineMetrics (no init()).
var (
	// LLMRequestsTotal counts LLM calls by operation (generate, grade, reflect, embed) and status.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corag",
			Name:      "llm_requests_total",
			Help:      "Total LLM requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// LLMRequestDuration observes LLM call latency by operation.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corag",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds by operation",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// RelevanceLabelTotal counts CRAG routing decisions by derived label.
	RelevanceLabelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corag",
			Name:      "relevance_label_total",
			Help:      "CRAG relevance labels by routing outcome",
		},
		[]string{"label"},
	)

	// WebFallbackTotal counts web search fallback invocations by status.
	WebFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corag",
			Name:      "web_fallback_total",
			Help:      "Web search fallback calls by status",
		},
		[]string{"status"},
	)

	// ReflectionIterations observes how many iterations reflective queries ran.
	ReflectionIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corag",
			Name:      "reflection_iterations",
			Help:      "Iterations consumed per self-reflective query",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// QueriesTotal counts handled queries by mode and status.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corag",
			Name:      "queries_total",
			Help:      "Handled queries by mode and status",
		},
		[]string{"mode", "status"},
	)
)

var pipelineRegistered = false

// RegisterPipelineMetrics registers pipeline metrics with the default
// registry. Safe to call once from main; panics on double registration.
func RegisterPipelineMetrics() {
	if pipelineRegistered {
		return
	}
	pipelineRegistered = true

	prometheus.MustRegister(
		LLMRequestsTotal,
		LLMRequestDuration,
		RelevanceLabelTotal,
		WebFallbackTotal,
		ReflectionIterations,
		QueriesTotal,
	)
}
