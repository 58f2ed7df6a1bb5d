// Package logger provides rating and calibration logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// RatingLogger provides dedicated logging for rating and calibration updates.
type RatingLogger struct {
	*logrus.Entry
}

// NewRatingLogger creates a new rating logger.
func NewRatingLogger(baseLogger *logrus.Logger) *RatingLogger {
	return &RatingLogger{
		Entry: baseLogger.WithField("component", "rating"),
	}
}

// LogRatingUpdate logs a team rating change.
func (rl *RatingLogger) LogRatingUpdate(teamID, gameID string, oldRating, newRating, truePerformance float64) {
	rl.WithFields(logrus.Fields{
		"team_id":          teamID,
		"game_id":          gameID,
		"old_rating":       oldRating,
		"new_rating":       newRating,
		"true_performance": truePerformance,
	}).Info("Rating updated")
}

// LogRatingDeferred logs a game held back until its inputs are available.
func (rl *RatingLogger) LogRatingDeferred(gameID, reason string, queueDepth int) {
	rl.WithFields(logrus.Fields{
		"game_id":     gameID,
		"reason":      reason,
		"queue_depth": queueDepth,
	}).Warn("Rating update deferred")
}

// LogDeferredReplay logs a replay pass over deferred games.
func (rl *RatingLogger) LogDeferredReplay(applied, remaining int) {
	rl.WithFields(logrus.Fields{
		"applied":   applied,
		"remaining": remaining,
	}).Info("Deferred games replayed")
}

// LogCalibrationAdvisory logs an advisory raised by a calibration report.
func (rl *RatingLogger) LogCalibrationAdvisory(league, kind, subject, message string) {
	rl.WithFields(logrus.Fields{
		"league":  league,
		"kind":    kind,
		"subject": subject,
		"message": message,
	}).Warn("Calibration advisory")
}
