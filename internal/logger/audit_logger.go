// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRecommendation logs an issued betting recommendation.
func (al *AuditLogger) LogRecommendation(gameID, marketType, side, tier string, edge, stakeFraction float64, stakeAmount decimal.Decimal, degraded []string) {
	al.WithFields(logrus.Fields{
		"game_id":        gameID,
		"market_type":    marketType,
		"side":           side,
		"tier":           tier,
		"edge":           edge,
		"stake_fraction": stakeFraction,
		"stake_amount":   stakeAmount.StringFixed(2),
		"degraded":       degraded,
	}).Info("Recommendation issued")
}

// LogPredictionCreated logs a new prediction record.
func (al *AuditLogger) LogPredictionCreated(predictionID uuid.UUID, gameID, marketType string, predictedEdge float64, sources []string) {
	al.WithFields(logrus.Fields{
		"prediction_id":  predictionID.String(),
		"game_id":        gameID,
		"market_type":    marketType,
		"predicted_edge": predictedEdge,
		"sources":        sources,
	}).Info("Prediction recorded")
}

// LogOutcomeRecorded logs an outcome attached to a prediction.
func (al *AuditLogger) LogOutcomeRecorded(predictionID uuid.UUID, result string, actualMargin, clv float64, recordedAt time.Time) {
	al.WithFields(logrus.Fields{
		"prediction_id": predictionID.String(),
		"result":        result,
		"actual_margin": actualMargin,
		"clv":           clv,
		"recorded_at":   recordedAt.Unix(),
	}).Info("Outcome recorded")
}

// LogIntegrityViolation logs a rejected calibration write.
func (al *AuditLogger) LogIntegrityViolation(predictionID uuid.UUID, reason string) {
	al.WithFields(logrus.Fields{
		"prediction_id": predictionID.String(),
		"reason":        reason,
	}).Error("Calibration integrity violation")
}

// LogSourceSuppression logs an operator suppressing or reinstating a source.
func (al *AuditLogger) LogSourceSuppression(sourceID string, suppressed bool, reason string) {
	al.WithFields(logrus.Fields{
		"source_id":  sourceID,
		"suppressed": suppressed,
		"reason":     reason,
	}).Warn("Source suppression changed")
}
