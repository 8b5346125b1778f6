// Package viewmodel holds the per-session dashboard selections and the pure
// reducer that applies user events to them.
package viewmodel

import (
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
)

// CommandCenterFilters are the command center sidebar selections.
type CommandCenterFilters struct {
	Region     string            `json:"region"`
	RiskLevels []query.RiskLevel `json:"risk_levels"`
}

// FleetFilters are the fleet monitoring selections. Empty slices mean no
// restriction.
type FleetFilters struct {
	States []string `json:"states"`
	Models []string `json:"models"`
	Health []string `json:"health"`
	// Device is the deep-dive selection; empty picks the default device
	Device string `json:"device,omitempty"`
}

// HypothesisFilters are the hypothesis lab controls.
type HypothesisFilters struct {
	Outcome        string   `json:"outcome"`
	Conditions     []string `json:"conditions"`
	ChurnThreshold int      `json:"churn_threshold"`
	ChurnReduction int      `json:"churn_reduction"`
	Target         string   `json:"target"`
}

// State is everything one session has selected. It is a value: Reduce
// returns a new State and never mutates its input.
type State struct {
	Version       uint64               `json:"version"`
	CommandCenter CommandCenterFilters `json:"command_center"`
	Fleet         FleetFilters         `json:"fleet"`
	Hypothesis    HypothesisFilters    `json:"hypothesis"`

	Question string                `json:"question"`
	Answer   *models.AgentResponse `json:"answer,omitempty"`
}

// NewState returns the selections of a freshly opened dashboard.
func NewState() State {
	return State{
		CommandCenter: CommandCenterFilters{
			Region:     AllRegions,
			RiskLevels: query.DefaultRiskLevels(),
		},
		Fleet: FleetFilters{
			Health: HealthStatuses(),
		},
		Hypothesis: HypothesisFilters{
			Outcome:        DefaultOutcome,
			Conditions:     []string{AllConditions},
			ChurnThreshold: DefaultChurnThreshold,
			ChurnReduction: DefaultChurnReduction,
			Target:         DefaultTarget,
		},
	}
}

// RegionFilter is the command center region selection as a query filter.
func (s State) RegionFilter() query.Filter {
	f := query.Filter{Column: "region"}
	if s.CommandCenter.Region != "" && s.CommandCenter.Region != AllRegions {
		f.Values = []string{s.CommandCenter.Region}
	}
	return f
}

// ConditionFilter is the hypothesis lab condition selection as a query
// filter. Selecting "All", or nothing, applies no restriction.
func (s State) ConditionFilter() query.Filter {
	f := query.Filter{Column: "primary_condition"}
	for _, c := range s.Hypothesis.Conditions {
		if c == AllConditions {
			return f
		}
	}
	f.Values = append([]string(nil), s.Hypothesis.Conditions...)
	return f
}

// clone copies every slice so the result can be changed independently.
func (s State) clone() State {
	out := s
	out.CommandCenter.RiskLevels = append([]query.RiskLevel(nil), s.CommandCenter.RiskLevels...)
	out.Fleet.States = append([]string(nil), s.Fleet.States...)
	out.Fleet.Models = append([]string(nil), s.Fleet.Models...)
	out.Fleet.Health = append([]string(nil), s.Fleet.Health...)
	out.Hypothesis.Conditions = append([]string(nil), s.Hypothesis.Conditions...)
	return out
}
