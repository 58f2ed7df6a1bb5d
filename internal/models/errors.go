package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Custom errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrInvalidID    = errors.New("invalid ID format")

	// ErrDataUnavailable marks a source that could not be fetched in time. Non-fatal.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrStaleData marks a cached value past its time-to-live. Non-fatal.
	ErrStaleData = errors.New("stale data")
	// ErrThresholdNotMet marks an edge below the minimum threshold.
	ErrThresholdNotMet = errors.New("edge threshold not met")
	// ErrRateLimitExceeded marks an upstream source signalling throttling.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCalibrationIntegrity marks an outcome without a matching unresolved prediction.
	ErrCalibrationIntegrity = errors.New("calibration integrity violation")
	// ErrConfiguration marks invalid or missing risk configuration.
	ErrConfiguration = errors.New("invalid configuration")

	ErrOutOfOrder     = errors.New("game applied out of chronological order")
	ErrRatingDeferred = errors.New("rating update deferred")
)

// CalibrationIntegrityError is returned when an outcome cannot be attached to a prediction.
type CalibrationIntegrityError struct {
	PredictionID uuid.UUID
	Reason       string
}

func (e *CalibrationIntegrityError) Error() string {
	return fmt.Sprintf("calibration integrity: prediction %s: %s", e.PredictionID, e.Reason)
}

// Unwrap allows errors.Is(err, ErrCalibrationIntegrity).
func (e *CalibrationIntegrityError) Unwrap() error {
	return ErrCalibrationIntegrity
}

// ConfigurationError describes an invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
