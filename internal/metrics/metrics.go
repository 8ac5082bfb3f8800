// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotrack_sessions_active",
			Help: "Number of live sessions currently registered",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_sessions_total",
			Help: "Live sessions ended, by outcome",
		},
		[]string{"outcome"},
	)

	FramesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emotrack_frames_ingested_total",
			Help: "Frames folded into live sessions",
		},
	)

	SnapshotsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emotrack_snapshots_written_total",
			Help: "Snapshot images persisted",
		},
	)

	// Analysis metrics
	FrameAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotrack_frame_analysis_seconds",
			Help:    "Time spent detecting and classifying faces in one frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_detections_total",
			Help: "Classified faces, by label",
		},
		[]string{"label"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_errors_total",
			Help: "Errors returned to callers, by kind",
		},
		[]string{"kind"},
	)

	// Cache metrics
	SummaryCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emotrack_summary_cache_hits_total",
			Help: "Session summary cache hits",
		},
	)

	SummaryCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emotrack_summary_cache_misses_total",
			Help: "Session summary cache misses",
		},
	)
)

// Session outcomes.
const (
	OutcomeStopped = "stopped"
	OutcomeEvicted = "evicted"
	OutcomeFailed  = "failed"
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsTotal,
		FramesIngested,
		SnapshotsWritten,
		FrameAnalysisDuration,
		DetectionsTotal,
		ErrorsTotal,
		SummaryCacheHits,
		SummaryCacheMisses,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
