package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	flashReports = "flash_reports"

	// Job metrics
	jobsTotal          = "jobs_total"
	jobDurationSeconds = "job_duration_seconds"

	// Compressor metrics
	compressorSafetyCapTotal = "compressor_safety_cap_total"

	// Evaluation metrics
	evaluationScores = "evaluation_scores"

	// Labels
	jobKindLabel   = "kind"
	jobStatusLabel = "status"
)

var jobsTotalLabels = []string{
	jobKindLabel,
	jobStatusLabel,
}

var jobDurationLabels = []string{
	jobKindLabel,
}

/**
* Metrics definition
**/
var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: flashReports,
		Name:      jobsTotal,
		Help:      "number of report jobs reaching each status",
	},
	jobsTotalLabels,
)

var jobDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: flashReports,
		Name:      jobDurationSeconds,
		Help:      "time spent processing a report job from submission to terminal state",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
	jobDurationLabels,
)

var compressorSafetyCapTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: flashReports,
		Name:      compressorSafetyCapTotal,
		Help:      "number of compressions that still exceeded the token budget after the final drop stage",
	},
)

var evaluationScoresMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: flashReports,
		Name:      evaluationScores,
		Help:      "distribution of quality scores returned by report evaluation",
		Buckets:   []float64{0, 20, 40, 50, 60, 65, 70, 80, 90, 100},
	},
)

func IncreaseJobsTotalMetric(kind string, status string) {
	labels := prometheus.Labels{
		jobKindLabel:   kind,
		jobStatusLabel: status,
	}
	jobsTotalMetric.With(labels).Inc()
}

func ObserveJobDurationMetric(kind string, duration time.Duration) {
	labels := prometheus.Labels{
		jobKindLabel: kind,
	}
	jobDurationSecondsMetric.With(labels).Observe(duration.Seconds())
}

func IncreaseCompressorSafetyCapMetric() {
	compressorSafetyCapTotalMetric.Inc()
}

func ObserveEvaluationScoreMetric(score int) {
	evaluationScoresMetric.Observe(float64(score))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(jobDurationSecondsMetric)
	prometheus.MustRegister(compressorSafetyCapTotalMetric)
	prometheus.MustRegister(evaluationScoresMetric)
}
