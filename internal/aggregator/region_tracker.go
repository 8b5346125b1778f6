package aggregator

import (
	"strings"
	"sync"
	"time"
)

// AlertPolicy decides when a region's critical device count raises an alert
type AlertPolicy struct {
	Threshold int64         // critical devices needed to alert
	Interval  time.Duration // minimum time between two alerts for one region
}

// RegionState holds the latest critical device observation for a region
type RegionState struct {
	Region       string
	LastCritical int64
	LastObserved time.Time
	LastAlert    time.Time
	Alerts       int
}

// RegionTracker follows critical device counts per region and rate limits
// the alerts they raise. Region keys are case-insensitive.
type RegionTracker struct {
	regions map[string]*RegionState
	policy  AlertPolicy
	mu      sync.Mutex
}

// NewRegionTracker creates a new region tracker
func NewRegionTracker(policy AlertPolicy) *RegionTracker {
	return &RegionTracker{
		regions: make(map[string]*RegionState),
		policy:  policy,
	}
}

// getOrCreateRegion must be called with rt.mu held
func (rt *RegionTracker) getOrCreateRegion(key string) *RegionState {
	if region, exists := rt.regions[key]; exists {
		return region
	}

	region := &RegionState{
		Region: key,
	}
	rt.regions[key] = region
	return region
}

// Observe records the critical device count of region at now and reports
// whether an alert is due: the count reaches the threshold and the region
// has not alerted within the interval.
func (rt *RegionTracker) Observe(region string, critical int64, now time.Time) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	state := rt.getOrCreateRegion(strings.ToLower(region))
	state.LastCritical = critical
	state.LastObserved = now

	if critical < rt.policy.Threshold {
		return false
	}

	// Rate limiting: at most one alert per interval
	if !state.LastAlert.IsZero() && now.Sub(state.LastAlert) < rt.policy.Interval {
		return false
	}

	state.LastAlert = now
	state.Alerts++
	return true
}

// Snapshot returns a copy of the state of region
func (rt *RegionTracker) Snapshot(region string) (RegionState, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	state, ok := rt.regions[strings.ToLower(region)]
	if !ok {
		return RegionState{}, false
	}
	return *state, true
}
