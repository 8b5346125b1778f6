package services

import "fleet-dashboard/internal/viewmodel"

// TargetPlan is what it would take to reach one business goal.
type TargetPlan struct {
	Goal       string     `json:"goal"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Investment string     `json:"investment,omitempty"`
	Return     string     `json:"return,omitempty"`
	Insight    string     `json:"insight,omitempty"`
}

// PlanFor returns the plan of target, falling back to the default goal.
func PlanFor(target string) TargetPlan {
	switch target {
	case viewmodel.TargetImproveOutcomes:
		return TargetPlan{
			Goal:    target,
			Columns: []string{"Action", "Target", "Current", "Gap"},
			Rows: [][]string{
				{"Personalized content by condition", "100%", "35%", "+65pp"},
				{"Average dwell time", "45+ seconds", "32 seconds", "+13 seconds"},
				{"Interactive content mix", "50%", "25%", "+25pp"},
				{"Multi-visit engagement", "3+ touchpoints", "1.8", "+1.2 visits"},
			},
			Investment: "$200K in content development",
			Return:     "Pharma partner premium pricing + provider retention value",
		}
	case viewmodel.TargetSaveRevenue:
		return TargetPlan{
			Goal:    target,
			Columns: []string{"Lever", "Required Improvement", "Impact"},
			Rows: [][]string{
				{"Reduce high-risk providers", "From 47 to 28", "$950K saved"},
				{"Improve at-risk to healthy", "Convert 15 providers", "$720K saved"},
				{"Win-back churned providers", "8 providers", "$330K recovered"},
			},
			Return:  "Total: $2M protected",
			Insight: "80% of the savings comes from early intervention on currently at-risk accounts. Focus resources there first.",
		}
	default:
		return TargetPlan{
			Goal:    viewmodel.TargetReduceChurn,
			Columns: []string{"Action", "Target", "Current", "Gap"},
			Rows: [][]string{
				{"Increase avg patient engagement", "72+", "58", "+14 points"},
				{"Improve content completion rate", "65%+", "48%", "+17pp"},
				{"Quarterly business reviews", "100% of at-risk", "40%", "+60pp"},
				{"Response time to declining engagement", "<48 hours", "2 weeks", "-12 days"},
			},
			Investment: "$150K in content + $80K in customer success resources",
			Return:     "$840K in protected revenue (5.6x ROI)",
		}
	}
}
