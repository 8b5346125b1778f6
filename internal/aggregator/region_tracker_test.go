package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionTrackerRateLimitsPerRegion(t *testing.T) {
	rt := NewRegionTracker(AlertPolicy{Threshold: 15, Interval: 5 * time.Minute})
	t0 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	assert.False(t, rt.Observe("Texas", 14, t0), "below threshold")
	assert.True(t, rt.Observe("Texas", 15, t0))
	assert.False(t, rt.Observe("TEXAS", 20, t0.Add(time.Minute)), "same region inside the interval")
	assert.True(t, rt.Observe("Ohio", 30, t0.Add(time.Minute)), "regions are limited independently")
	assert.True(t, rt.Observe("texas", 16, t0.Add(5*time.Minute)))

	state, ok := rt.Snapshot("Texas")
	require.True(t, ok)
	assert.Equal(t, "texas", state.Region)
	assert.Equal(t, int64(16), state.LastCritical)
	assert.Equal(t, 2, state.Alerts)
	assert.Equal(t, t0.Add(5*time.Minute), state.LastAlert)

	_, ok = rt.Snapshot("Florida")
	assert.False(t, ok)
}

func TestRegionTrackerRecordsQuietObservations(t *testing.T) {
	rt := NewRegionTracker(AlertPolicy{Threshold: 15, Interval: time.Minute})
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	rt.Observe("all", 3, now)
	state, ok := rt.Snapshot("All")
	require.True(t, ok)
	assert.Equal(t, int64(3), state.LastCritical)
	assert.Equal(t, now, state.LastObserved)
	assert.True(t, state.LastAlert.IsZero())
}
