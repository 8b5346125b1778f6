package query

import (
	"fmt"
	"strings"
)

// Range is a half-open numeric interval on one column: Lower < column <= Upper.
// A nil bound is unbounded on that side.
type Range struct {
	Column string
	Lower  *float64
	Upper  *float64
}

func (r Range) Contains(v float64) bool {
	if r.Lower != nil && v <= *r.Lower {
		return false
	}
	if r.Upper != nil && v > *r.Upper {
		return false
	}
	return true
}

func (r Range) render(bind func(any) string) string {
	var parts []string
	if r.Lower != nil {
		parts = append(parts, fmt.Sprintf("%s > %s", r.Column, bind(*r.Lower)))
	}
	if r.Upper != nil {
		parts = append(parts, fmt.Sprintf("%s <= %s", r.Column, bind(*r.Upper)))
	}
	if len(parts) == 0 {
		return "1 = 1"
	}
	return strings.Join(parts, " AND ")
}

func bound(v float64) *float64 { return &v }

// RiskLevel is one failure-probability bucket offered by the command center.
type RiskLevel string

const (
	RiskCritical RiskLevel = "Critical (>85%)"
	RiskHigh     RiskLevel = "High (70-85%)"
	RiskMedium   RiskLevel = "Medium (50-70%)"
	RiskLow      RiskLevel = "Low (<50%)"
)

// RiskLevels lists the buckets in display order.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}
}

// DefaultRiskLevels is the initial selection of a new session.
func DefaultRiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh}
}

func ParseRiskLevel(s string) (RiskLevel, error) {
	for _, l := range RiskLevels() {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, nil
		}
	}
	// short forms used by query strings: "critical", "high", ...
	for _, l := range RiskLevels() {
		if strings.EqualFold(strings.Fields(string(l))[0], strings.TrimSpace(s)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Range returns the failure-probability interval of the bucket on column.
func (l RiskLevel) Range(column string) Range {
	switch l {
	case RiskCritical:
		return Range{Column: column, Lower: bound(0.85)}
	case RiskHigh:
		return Range{Column: column, Lower: bound(0.70), Upper: bound(0.85)}
	case RiskMedium:
		return Range{Column: column, Lower: bound(0.50), Upper: bound(0.70)}
	default:
		return Range{Column: column, Upper: bound(0.50)}
	}
}

// RiskRanges maps a selection of buckets to ranges for AnyOf.
func RiskRanges(column string, levels []RiskLevel) []Range {
	out := make([]Range, 0, len(levels))
	for _, l := range levels {
		out = append(out, l.Range(column))
	}
	return out
}
