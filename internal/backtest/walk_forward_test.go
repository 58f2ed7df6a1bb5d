package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWalkForward(t *testing.T) {
	f := newFixture(t)

	result, err := RunWalkForward(context.Background(), f.engine, WalkForwardConfig{
		WindowDays: 7,
		StepDays:   7,
		MinBets:    1,
	})
	require.NoError(t, err)

	require.Len(t, result.Windows, 2)
	assert.Equal(t, 1, result.Windows[0].WindowID)
	assert.Equal(t, 4, result.Windows[1].WindowID)
	assert.Greater(t, result.Windows[0].Metrics.TotalReturn, 0.0)
	assert.Zero(t, result.Windows[1].Metrics.TotalReturn)
	assert.InDelta(t, 0.5, result.ConsistencyScore, 1e-9)
	assert.Equal(t, 2, result.AggregatedMetrics.TotalBets)
}

func TestRunWalkForwardRejectsBadWindows(t *testing.T) {
	f := newFixture(t)
	_, err := RunWalkForward(context.Background(), f.engine, WalkForwardConfig{})
	assert.Error(t, err)

	_, err = RunWalkForward(context.Background(), nil, WalkForwardConfig{WindowDays: 7})
	assert.Error(t, err)
}

func TestCalculateConsistency(t *testing.T) {
	assert.Zero(t, CalculateConsistency(nil))
	windows := []WalkForwardWindow{
		{Metrics: Metrics{TotalReturn: 0.1}},
		{Metrics: Metrics{TotalReturn: -0.1}},
		{Metrics: Metrics{TotalReturn: 0.2}},
		{Metrics: Metrics{TotalReturn: 0}},
	}
	assert.InDelta(t, 0.5, CalculateConsistency(windows), 1e-9)
}
