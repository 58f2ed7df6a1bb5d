// Package logger provides edge evaluation logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// EdgeLogger provides dedicated logging for edge evaluation.
type EdgeLogger struct {
	*logrus.Entry
}

// NewEdgeLogger creates a new edge logger.
func NewEdgeLogger(baseLogger *logrus.Logger) *EdgeLogger {
	return &EdgeLogger{
		Entry: baseLogger.WithField("component", "edge"),
	}
}

// LogEvaluation logs a completed game evaluation.
func (el *EdgeLogger) LogEvaluation(gameID string, marketsEvaluated, plays int, durationMs float64) {
	el.WithFields(logrus.Fields{
		"game_id":                gameID,
		"markets_evaluated":      marketsEvaluated,
		"plays":                  plays,
		"evaluation_duration_ms": durationMs,
	}).Info("Game evaluation completed")
}

// LogEdgeDetected logs an edge for one market.
func (el *EdgeLogger) LogEdgeDetected(gameID, marketType string, modelLine, marketLine, edge float64, sharpAligned bool) {
	el.WithFields(logrus.Fields{
		"game_id":       gameID,
		"market_type":   marketType,
		"model_line":    modelLine,
		"market_line":   marketLine,
		"edge":          edge,
		"sharp_aligned": sharpAligned,
	}).Debug("Edge computed")
}

// LogNoPlay logs a market that did not qualify.
func (el *EdgeLogger) LogNoPlay(gameID, marketType string, edge, threshold float64) {
	el.WithFields(logrus.Fields{
		"game_id":     gameID,
		"market_type": marketType,
		"edge":        edge,
		"threshold":   threshold,
	}).Debug("No play")
}

// LogDegradedInput logs a collaborator feed that was unavailable or stale.
func (el *EdgeLogger) LogDegradedInput(gameID, sourceID, status, reason string) {
	el.WithFields(logrus.Fields{
		"game_id":   gameID,
		"source_id": sourceID,
		"status":    status,
		"reason":    reason,
	}).Warn("Degraded input")
}
