package aggregator

import "math"

// Stats summarizes one telemetry series in time order
type Stats struct {
	Current float64 `json:"current"`
	Mean    float64 `json:"mean"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Sum     float64 `json:"sum"`
	Count   int     `json:"count"`
}

// Summarize computes the stats of values. Current is the last sample.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{
		Current: values[len(values)-1],
		Max:     math.Inf(-1),
		Min:     math.Inf(1),
		Count:   len(values),
	}
	for _, v := range values {
		s.Sum += v
		s.Max = math.Max(s.Max, v)
		s.Min = math.Min(s.Min, v)
	}
	s.Mean = s.Sum / float64(len(values))
	return s
}

// Pearson returns the correlation coefficient of xs and ys, or 0 when it is
// undefined (fewer than two pairs or a constant series).
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// Percent returns part/whole*100, or 0 for an empty whole.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// WhatIfResult is the projected effect of a churn reduction
type WhatIfResult struct {
	ReductionPct    int     `json:"reduction_pct"`
	RevenueSaved    float64 `json:"revenue_saved"`
	ProvidersSaved  int64   `json:"providers_saved"`
	RemainingAtRisk float64 `json:"remaining_at_risk"`
}

// WhatIf projects revenue and providers retained if churn among at-risk
// providers drops by reductionPct percent.
func WhatIf(atRiskRevenue float64, atRiskProviders int64, reductionPct int) WhatIfResult {
	share := float64(reductionPct) / 100
	saved := atRiskRevenue * share
	return WhatIfResult{
		ReductionPct:    reductionPct,
		RevenueSaved:    saved,
		ProvidersSaved:  int64(float64(atRiskProviders) * share),
		RemainingAtRisk: atRiskRevenue - saved,
	}
}

// CorrelationStrength describes a coefficient the way the flywheel insight reports it
func CorrelationStrength(r float64) string {
	switch a := math.Abs(r); {
	case a >= 0.7:
		return "strong"
	case a >= 0.4:
		return "moderate"
	case a >= 0.2:
		return "weak"
	default:
		return "negligible"
	}
}
