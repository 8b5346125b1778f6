package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskBucketsPartitionProbabilities(t *testing.T) {
	cases := map[float64]RiskLevel{
		0.99: RiskCritical,
		0.86: RiskCritical,
		0.85: RiskHigh,
		0.71: RiskHigh,
		0.70: RiskMedium,
		0.51: RiskMedium,
		0.50: RiskLow,
		0.0:  RiskLow,
	}
	for p, want := range cases {
		var hits []RiskLevel
		for _, l := range RiskLevels() {
			if l.Range("p").Contains(p) {
				hits = append(hits, l)
			}
		}
		assert.Equal(t, []RiskLevel{want}, hits, "p=%v", p)
	}
}

func TestParseRiskLevel(t *testing.T) {
	l, err := ParseRiskLevel("Critical (>85%)")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, l)

	l, err = ParseRiskLevel("medium")
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, l)

	_, err = ParseRiskLevel("severe")
	assert.Error(t, err)
}

func TestRiskRangesComposeAsOneOrGroup(t *testing.T) {
	sql, args, err := From(FleetHealthScored, Question).
		In("region", []string{"Texas"}).
		AnyOf(RiskRanges("failure_probability", []RiskLevel{RiskCritical, RiskHigh})...).
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM fleet_health_scored WHERE region IN (?) AND ((failure_probability > ?) OR (failure_probability > ? AND failure_probability <= ?))",
		sql)
	assert.Equal(t, []any{"Texas", 0.85, 0.70, 0.85}, args)
}

func TestNoRiskSelectionAddsNoPredicate(t *testing.T) {
	sql, _, err := From(FleetHealthScored, Question).AnyOf(RiskRanges("failure_probability", nil)...).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM fleet_health_scored", sql)
}
