package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	retrieverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchfuse_retriever_latency_ms",
		Help:    "Latency of retriever calls in milliseconds",
		Buckets: []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200},
	}, []string{"type"})

	retrieverResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchfuse_retriever_results",
		Help:    "Number of results returned by a retriever",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"type"})

	retrieverFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchfuse_retriever_failures_total",
		Help: "Retriever calls that failed and degraded to an empty list",
	}, []string{"type"})

	fusedCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "searchfuse_fused_candidates",
		Help:    "Candidate set size after fusion",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
	})

	rerankSkips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchfuse_rerank_skip_total",
		Help: "Rerank gate outcomes by reason",
	}, []string{"reason"})

	rerankLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "searchfuse_rerank_latency_ms",
		Help:    "Pairwise rerank latency in milliseconds",
		Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200},
	})

	qualityLevel = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchfuse_quality_level_total",
		Help: "Quality assessment level per run",
	}, []string{"level"})

	correctiveAction = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchfuse_corrective_action_total",
		Help: "Corrective actions executed",
	}, []string{"action"})

	pipelineLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchfuse_pipeline_latency_ms",
		Help:    "End-to-end pipeline latency in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
	}, []string{"status"})

	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchfuse_cache_total",
		Help: "Response cache lookups by outcome",
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(
			retrieverLatency, retrieverResults, retrieverFailures,
			fusedCandidates, rerankSkips, rerankLatency,
			qualityLevel, correctiveAction, pipelineLatency, cacheHits,
		)
	})
}

// ObserveRetriever records latency and result size for a retriever type.
func ObserveRetriever(typ string, start time.Time, results int) {
	ensureRegistered()
	retrieverLatency.WithLabelValues(typ).Observe(float64(time.Since(start).Milliseconds()))
	retrieverResults.WithLabelValues(typ).Observe(float64(results))
}

// IncRetrieverFailure counts a retriever call that degraded to an empty list.
func IncRetrieverFailure(typ string) {
	ensureRegistered()
	retrieverFailures.WithLabelValues(typ).Inc()
}

// ObserveFused records the candidate set size after fusion.
func ObserveFused(n int) {
	ensureRegistered()
	fusedCandidates.Observe(float64(n))
}

// IncRerankSkip counts a gate outcome. Reason is the bare label, not the
// formatted decision string.
func IncRerankSkip(reason string) {
	ensureRegistered()
	rerankSkips.WithLabelValues(reason).Inc()
}

// ObserveRerank records the rerank stage latency.
func ObserveRerank(start time.Time) {
	ensureRegistered()
	rerankLatency.Observe(float64(time.Since(start).Milliseconds()))
}

// IncQualityLevel counts the quality verdict of a run.
func IncQualityLevel(level string) {
	ensureRegistered()
	qualityLevel.WithLabelValues(level).Inc()
}

// IncCorrectiveAction counts one executed corrective action.
func IncCorrectiveAction(action string) {
	ensureRegistered()
	correctiveAction.WithLabelValues(action).Inc()
}

// ObservePipeline records the end-to-end latency with a done/degraded/error
// status label.
func ObservePipeline(status string, start time.Time) {
	ensureRegistered()
	pipelineLatency.WithLabelValues(status).Observe(float64(time.Since(start).Milliseconds()))
}

// IncCache counts a response cache lookup outcome (hit/miss).
func IncCache(outcome string) {
	ensureRegistered()
	cacheHits.WithLabelValues(outcome).Inc()
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		retrieverLatency, retrieverResults, retrieverFailures,
		fusedCandidates, rerankSkips, rerankLatency,
		qualityLevel, correctiveAction, pipelineLatency, cacheHits,
	}
}
