package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{98.1, 101.4, 99.0, 104.2})
	assert.InDelta(t, 104.2, s.Current, 1e-9)
	assert.InDelta(t, 104.2, s.Max, 1e-9)
	assert.InDelta(t, 98.1, s.Min, 1e-9)
	assert.InDelta(t, 100.675, s.Mean, 1e-9)
	assert.Equal(t, 4, s.Count)

	assert.Equal(t, Stats{}, Summarize(nil))
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, Pearson([]float64{20, 50, 80}, []float64{80, 50, 20}), 1e-9)
	assert.Equal(t, 0.0, Pearson([]float64{1}, []float64{2}))
	assert.Equal(t, 0.0, Pearson([]float64{3, 3, 3}, []float64{1, 2, 3}))
}

func TestWhatIf(t *testing.T) {
	r := WhatIf(4_000_000, 37, 25)
	assert.InDelta(t, 1_000_000, r.RevenueSaved, 1e-6)
	assert.Equal(t, int64(9), r.ProvidersSaved)
	assert.InDelta(t, 3_000_000, r.RemainingAtRisk, 1e-6)

	zero := WhatIf(4_000_000, 37, 0)
	assert.Zero(t, zero.RevenueSaved)
	assert.Zero(t, zero.ProvidersSaved)
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 25.0, Percent(5, 20), 1e-9)
	assert.Zero(t, Percent(5, 0))
}

func TestCorrelationStrength(t *testing.T) {
	assert.Equal(t, "strong", CorrelationStrength(-0.82))
	assert.Equal(t, "moderate", CorrelationStrength(0.45))
	assert.Equal(t, "weak", CorrelationStrength(0.2))
	assert.Equal(t, "negligible", CorrelationStrength(0.05))
}
