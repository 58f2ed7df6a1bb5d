// Package metrics defines calibration and source quality metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Calibration counter vectors
var (
	IntegrityErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calibration_integrity_errors_total",
		Help:      "Outcomes rejected for lacking an unresolved prediction",
	})

	OutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Recorded outcomes by result",
	}, []string{"result"})

	AdvisoriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calibration_advisories_total",
		Help:      "Advisories raised by calibration reports by kind",
	}, []string{"kind"})
)

// Calibration gauge vectors
var (
	SourceScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_overall_score",
		Help:      "Overall reliability score of each source",
	}, []string{"source_id"})

	EdgeRMSE = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "edge_rmse",
		Help:      "Edge RMSE of the latest calibration report by league",
	}, []string{"league"})

	ATSWinRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ats_win_rate",
		Help:      "Against-the-spread win rate of the latest calibration report by league",
	}, []string{"league"})
)

// RecordIntegrityError records a rejected outcome.
func RecordIntegrityError() {
	IntegrityErrorsTotal.Inc()
}

// RecordOutcome records an accepted outcome.
func RecordOutcome(result string) {
	OutcomesTotal.WithLabelValues(result).Inc()
}

// UpdateSourceScore sets the score gauge of a source.
func UpdateSourceScore(sourceID string, score float64) {
	SourceScore.WithLabelValues(sourceID).Set(score)
}

// RecordCalibrationReport publishes the headline numbers of a report.
func RecordCalibrationReport(league string, rmse, atsWinRate float64, advisoryKinds []string) {
	if league == "" {
		league = "all"
	}
	EdgeRMSE.WithLabelValues(league).Set(rmse)
	ATSWinRate.WithLabelValues(league).Set(atsWinRate)
	for _, kind := range advisoryKinds {
		AdvisoriesTotal.WithLabelValues(kind).Inc()
	}
}
