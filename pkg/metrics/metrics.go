// Package metrics provides Prometheus metrics for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as label values.
const (
	StageOCR        = "ocr"
	StageTranscribe = "transcribe"
	StageNER        = "ner"
	StageRetrieve   = "retrieve"
	StageAnswer     = "answer"
	StageTranslate  = "translate"
	StageSpeak      = "speak"
	StageHistory    = "history"
	StageIngest     = "ingest"
)

var (
	// StageDuration observes the wall time of each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medilex_stage_duration_seconds",
		Help:    "Duration of pipeline stages in seconds, by stage.",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	// StageErrors counts failed stages.
	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medilex_stage_errors_total",
		Help: "Total number of pipeline stage failures, by stage.",
	}, []string{"stage"})

	MedicationsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medilex_medications_extracted_total",
		Help: "Total number of medications recognised across all analyses.",
	})

	// AnalysesTotal counts completed analyses by input source (image, text, audio).
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medilex_analyses_total",
		Help: "Total number of completed analyses, by input source.",
	}, []string{"source"})

	// CacheRequests counts cache lookups by result (hit, miss).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medilex_cache_requests_total",
		Help: "Total number of cache lookups, by result.",
	}, []string{"result"})

	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medilex_documents_ingested_total",
		Help: "Total number of documents ingested into the knowledge base.",
	})
)

// ObserveStage records the duration since start and, if err is non-nil, a failure.
func ObserveStage(stage string, start time.Time, err error) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordAnalysis counts a finished analysis and its medications.
func RecordAnalysis(source string, medications int) {
	AnalysesTotal.WithLabelValues(source).Inc()
	if medications > 0 {
		MedicationsExtracted.Add(float64(medications))
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(result).Inc()
}

func RecordIngested(documents int) {
	DocumentsIngested.Add(float64(documents))
}
