package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_items_collected_total",
		Help: "The total number of raw items collected",
	}, []string{"source_type"})

	ItemsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_items_deduplicated_total",
		Help: "The total number of items skipped as duplicates",
	}, []string{"source_type"})

	CollectorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_collector_errors_total",
		Help: "Total number of collector errors by source type",
	}, []string{"source_type"})

	ScreeningDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_screening_decisions_total",
		Help: "Total number of screening decisions by outcome",
	}, []string{"status"})

	AnalysisCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_analysis_completed_total",
		Help: "Total number of analysis attempts by outcome",
	}, []string{"status"})

	QualityScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casefeed_quality_score",
		Help:    "Distribution of quality scores assigned to cases",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	CasesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_cases_published_total",
		Help: "Total number of cases published by matrix cell",
	}, []string{"cell"})

	CasesReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_cases_reviewed_total",
		Help: "Total number of review decisions by outcome",
	}, []string{"decision"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casefeed_pipeline_stage_duration_seconds",
		Help:    "Duration in seconds of a pipeline stage run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	ScreeningBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "casefeed_screening_backlog_size",
		Help: "Number of raw items waiting for screening",
	})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_llm_requests_total",
		Help: "Total number of model requests",
	}, []string{"provider", "mode", "status"})

	LLMRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casefeed_llm_request_latency_seconds",
		Help:    "Latency of model requests by provider and mode",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider", "mode"})

	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_llm_fallbacks_total",
		Help: "Total number of model fallback events",
	}, []string{"from_provider", "to_provider"})

	LLMTokensPrompt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_llm_tokens_prompt_total",
		Help: "Total number of prompt tokens used",
	}, []string{"provider", "mode"})

	LLMTokensCompletion = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_llm_tokens_completion_total",
		Help: "Total number of completion tokens used",
	}, []string{"provider", "mode"})

	RevalidationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefeed_revalidation_requests_total",
		Help: "Total number of cache revalidation requests by result",
	}, []string{"path", "result"})
)
