// Package sourcequality scores the historical reliability of upstream data sources.
package sourcequality

import (
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Weights of the overall score components. They sum to 1.0.
const (
	WeightAccuracy    = 0.35
	WeightCoverage    = 0.20
	WeightLatency     = 0.15
	WeightConsistency = 0.15
	WeightAgreement   = 0.15
)

// Neutral is the starting value of every component for a new source
const Neutral = 0.5

// Config holds the tracker's tunables
type Config struct {
	Alpha          float64
	LatencyScale   time.Duration
	ReferenceScore float64
}

// DefaultConfig returns α = 0.1, a one hour latency scale and a 0.5 reference
func DefaultConfig() Config {
	return Config{Alpha: 0.1, LatencyScale: time.Hour, ReferenceScore: Neutral}
}

// LatencyQuality maps an average latency into (0, 1]; a latency equal to the
// scale scores 0.5
func LatencyQuality(avg, scale time.Duration) float64 {
	if scale <= 0 {
		return 1
	}
	if avg < 0 {
		avg = 0
	}
	return 1 / (1 + float64(avg)/float64(scale))
}

// OverallScore combines the components of a record into a bounded score
func OverallScore(rec *models.SourceQualityRecord, latencyScale time.Duration) float64 {
	score := WeightAccuracy*clamp01(rec.Accuracy) +
		WeightCoverage*clamp01(rec.Coverage) +
		WeightLatency*LatencyQuality(rec.AvgLatency, latencyScale) +
		WeightConsistency*clamp01(rec.Consistency) +
		WeightAgreement*clamp01(rec.Agreement)
	return clamp01(score)
}

func ema(prev, sample, alpha float64) float64 {
	return clamp01(alpha*clamp01(sample) + (1-alpha)*prev)
}

func emaDuration(prev, sample time.Duration, alpha float64) time.Duration {
	if sample < 0 {
		sample = 0
	}
	return time.Duration(alpha*float64(sample) + (1-alpha)*float64(prev))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func boolSample(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
