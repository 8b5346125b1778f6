package viewmodel

// AllRegions is the region selection that applies no restriction.
const AllRegions = "All"

// AllConditions in a condition selection disables the condition filter.
const AllConditions = "All"

// Regions lists the command center region choices, "All" first.
func Regions() []string {
	return []string{
		AllRegions,
		"California", "Florida", "Illinois", "Massachusetts", "Michigan",
		"New York", "Ohio", "Pennsylvania", "Texas", "Washington",
	}
}

// HealthStatuses lists the priority queue health choices.
func HealthStatuses() []string {
	return []string{"HEALTHY", "WARNING", "CRITICAL"}
}

// Outcomes lists the health outcomes the engagement chart can analyze.
func Outcomes() []string {
	return []string{"A1C_LEVEL", "BLOOD_PRESSURE_SYSTOLIC", "MEDICATION_ADHERENCE", "APPOINTMENT_KEPT"}
}

func Conditions() []string {
	return []string{"Diabetes", "Hypertension", "Heart Disease", "Mental Health", AllConditions}
}

// ChurnThresholds are the leaderboard slider stops.
func ChurnThresholds() []int {
	return []int{30, 40, 50, 60, 70, 80, 90}
}

// Churn reduction slider bounds, in percent.
const (
	MinChurnReduction  = 0
	MaxChurnReduction  = 50
	ChurnReductionStep = 5
)

// Target calculator goals.
const (
	TargetReduceChurn     = "Reduce provider churn by 20%"
	TargetImproveOutcomes = "Improve patient outcomes by 15%"
	TargetSaveRevenue     = "Save $2M in revenue"
)

func Targets() []string {
	return []string{TargetReduceChurn, TargetImproveOutcomes, TargetSaveRevenue}
}

// Defaults of a new session.
const (
	DefaultOutcome        = "A1C_LEVEL"
	DefaultChurnThreshold = 60
	DefaultChurnReduction = 25
	DefaultTarget         = TargetReduceChurn
)
