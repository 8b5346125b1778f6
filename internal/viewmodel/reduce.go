package viewmodel

import (
	"fmt"
	"slices"
	"strings"

	"fleet-dashboard/internal/agent"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
)

// Effects are the side effects an event asks the caller to perform after
// the new state is stored.
type Effects struct {
	// Refresh drops every memoized warehouse result
	Refresh bool
	// Ask sends State.Question to the agent
	Ask bool
}

// Reduce applies e to s. It is pure: s is never modified and the same inputs
// always produce the same outputs. An invalid event returns s unchanged.
func Reduce(s State, e Event) (State, Effects, error) {
	next := s.clone()
	var fx Effects

	switch ev := e.(type) {
	case SetRegion:
		region := strings.TrimSpace(ev.Region)
		if region == "" {
			region = AllRegions
		}
		if !slices.Contains(Regions(), region) {
			return s, Effects{}, invalid("region %q", ev.Region)
		}
		next.CommandCenter.Region = region

	case SetRiskLevels:
		levels := make([]query.RiskLevel, 0, len(ev.Levels))
		for _, raw := range selection(ev.Levels) {
			l, err := query.ParseRiskLevel(raw)
			if err != nil {
				return s, Effects{}, invalid("%v", err)
			}
			if !slices.Contains(levels, l) {
				levels = append(levels, l)
			}
		}
		next.CommandCenter.RiskLevels = levels

	case SetStates:
		next.Fleet.States = selection(ev.States)

	case SetModels:
		next.Fleet.Models = selection(ev.Models)

	case SetHealth:
		statuses := make([]string, 0, len(ev.Statuses))
		for _, st := range selection(ev.Statuses) {
			up := strings.ToUpper(st)
			if !slices.Contains(HealthStatuses(), up) {
				return s, Effects{}, invalid("health status %q", st)
			}
			if !slices.Contains(statuses, up) {
				statuses = append(statuses, up)
			}
		}
		next.Fleet.Health = statuses

	case SelectDevice:
		next.Fleet.Device = strings.TrimSpace(ev.DeviceID)

	case SetOutcome:
		if !slices.Contains(Outcomes(), ev.Outcome) {
			return s, Effects{}, invalid("outcome %q", ev.Outcome)
		}
		next.Hypothesis.Outcome = ev.Outcome

	case SetConditions:
		conditions := selection(ev.Conditions)
		for _, c := range conditions {
			if !slices.Contains(Conditions(), c) {
				return s, Effects{}, invalid("condition %q", c)
			}
		}
		if len(conditions) == 0 {
			conditions = []string{AllConditions}
		}
		next.Hypothesis.Conditions = conditions

	case SetChurnThreshold:
		if !slices.Contains(ChurnThresholds(), ev.Threshold) {
			return s, Effects{}, invalid("churn threshold %d", ev.Threshold)
		}
		next.Hypothesis.ChurnThreshold = ev.Threshold

	case SetChurnReduction:
		if ev.Percent < MinChurnReduction || ev.Percent > MaxChurnReduction || ev.Percent%ChurnReductionStep != 0 {
			return s, Effects{}, invalid("churn reduction %d%%", ev.Percent)
		}
		next.Hypothesis.ChurnReduction = ev.Percent

	case SetTarget:
		if !slices.Contains(Targets(), ev.Target) {
			return s, Effects{}, invalid("target %q", ev.Target)
		}
		next.Hypothesis.Target = ev.Target

	case AskAgent:
		next.Question = strings.TrimSpace(ev.Question)
		next.Answer = nil
		fx.Ask = true

	case UseSuggestion:
		suggestions := agent.Suggestions()
		if ev.Index < 0 || ev.Index >= len(suggestions) {
			return s, Effects{}, invalid("suggestion %d", ev.Index)
		}
		next.Question = suggestions[ev.Index].Question

	case Refresh:
		fx.Refresh = true

	default:
		return s, Effects{}, invalid("unsupported event %T", e)
	}

	next.Version++
	return next, fx, nil
}

// WithAnswer records the agent's answer if it still matches the current
// question; an answer to a superseded question is dropped.
func WithAnswer(s State, resp models.AgentResponse) State {
	if resp.Question != s.Question {
		return s
	}
	next := s.clone()
	next.Answer = &resp
	next.Version++
	return next
}

// selection trims a multi-select, dropping blanks and duplicates while
// keeping the order the user chose.
func selection(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}
