package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_runs_started_total",
			Help: "Total number of generation runs started",
		},
		[]string{"domain", "format"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_runs_completed_total",
			Help: "Total number of generation runs finished, by terminal status",
		},
		[]string{"domain", "format", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabrica_run_duration_seconds",
			Help:    "Generation run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"domain", "format"},
	)

	// Batch metrics
	BatchesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_batches_generated_total",
			Help: "Total number of generation batches that returned records",
		},
	)

	RecordsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_records_generated_total",
			Help: "Total number of raw records returned by the generation service",
		},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_records_rejected_total",
			Help: "Total number of records dropped during evaluation",
		},
		[]string{"reason"},
	)

	RecordsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_records_persisted_total",
			Help: "Total number of records written to output files",
		},
	)

	// Evaluation metrics
	EvaluationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_evaluation_fallbacks_total",
			Help: "Times model-based evaluation failed and basic validation was used",
		},
	)

	// LLM client metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_llm_requests_total",
			Help: "Total number of LLM requests",
		},
		[]string{"operation", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabrica_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Enrichment metrics
	EnrichmentQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_enrichment_queries_total",
			Help: "Web enrichment queries issued, by outcome",
		},
		[]string{"outcome"},
	)

	// Research cache metrics
	ResearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_research_cache_hits_total",
			Help: "Research summaries served from cache",
		},
	)

	ResearchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabrica_research_cache_misses_total",
			Help: "Research cache lookups that fell through to live research",
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrica_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabrica_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
