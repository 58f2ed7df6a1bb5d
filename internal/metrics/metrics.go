// Package metrics provides the centralized Prometheus metrics registry for the engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridiron_edge"

var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Total recommendations by market type, side and confidence tier",
	}, []string{"market_type", "side", "tier"})
	PredictionsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_created_total",
		Help:      "Total prediction records created by market type",
	}, []string{"market_type"})
	RatingUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rating_updates_total",
		Help:      "Total rating update attempts by result (applied, deferred, rejected)",
	}, []string{"result"})
)

// Gauge metrics
var (
	DeferredGames = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deferred_games",
		Help:      "Games waiting in the deferred rating queue",
	})
	Bankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bankroll",
		Help:      "Bankroll stakes are sized against",
	})
)

// Histogram metrics
var (
	EdgePoints = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "edge_points",
		Help:      "Absolute edge in points by market type",
		Buckets:   []float64{0.5, 1, 1.5, 2, 3, 4, 5, 7, 10},
	}, []string{"market_type"})
	StakeFraction = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stake_fraction",
		Help:      "Applied bankroll fraction of qualifying recommendations",
		Buckets:   []float64{0.0025, 0.005, 0.01, 0.015, 0.02, 0.03, 0.05},
	})
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a full game evaluation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RecommendationsTotal)
		registry.MustRegister(PredictionsCreatedTotal)
		registry.MustRegister(RatingUpdatesTotal)

		registry.MustRegister(DeferredGames)
		registry.MustRegister(Bankroll)

		registry.MustRegister(EdgePoints)
		registry.MustRegister(StakeFraction)
		registry.MustRegister(EvaluationDuration)

		registry.MustRegister(FetchesTotal)
		registry.MustRegister(FetchDuration)
		registry.MustRegister(CacheLookupsTotal)
		registry.MustRegister(StreamMessagesTotal)

		registry.MustRegister(IntegrityErrorsTotal)
		registry.MustRegister(OutcomesTotal)
		registry.MustRegister(SourceScore)
		registry.MustRegister(EdgeRMSE)
		registry.MustRegister(ATSWinRate)
		registry.MustRegister(AdvisoriesTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRecommendation records an issued recommendation, play or no play.
func RecordRecommendation(marketType, side, tier string, absEdge, stakeFraction float64) {
	RecommendationsTotal.WithLabelValues(marketType, side, tier).Inc()
	EdgePoints.WithLabelValues(marketType).Observe(absEdge)
	if stakeFraction > 0 {
		StakeFraction.Observe(stakeFraction)
	}
}

// RecordPredictionCreated records a new prediction record.
func RecordPredictionCreated(marketType string) {
	PredictionsCreatedTotal.WithLabelValues(marketType).Inc()
}

// RecordRatingUpdate records a rating update attempt.
// result should be one of: "applied", "deferred", "rejected"
func RecordRatingUpdate(result string) {
	RatingUpdatesTotal.WithLabelValues(result).Inc()
}

// UpdateDeferredGames sets the deferred queue depth.
func UpdateDeferredGames(n int) {
	DeferredGames.Set(float64(n))
}

// UpdateBankroll updates the bankroll gauge.
func UpdateBankroll(amount float64) {
	Bankroll.Set(amount)
}

// RecordEvaluationDuration records how long a game evaluation took.
func RecordEvaluationDuration(durationSeconds float64) {
	EvaluationDuration.Observe(durationSeconds)
}
