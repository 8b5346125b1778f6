package render

// Map marker policy. Boundaries are exclusive: 0.80 is orange and 0.50 is green.
const (
	CriticalProbability = 0.80
	MediumProbability   = 0.50
	// AtRiskProbability is the legend's at-risk cutoff
	AtRiskProbability = 0.70

	CriticalRadius = 15000
	DefaultRadius  = 10000
)

var (
	Red    = RGBA{255, 0, 0, 200}
	Orange = RGBA{255, 165, 0, 200}
	Green  = RGBA{0, 255, 0, 200}
)

func RiskColor(p float64) RGBA {
	switch {
	case p > CriticalProbability:
		return Red
	case p > MediumProbability:
		return Orange
	default:
		return Green
	}
}

func MarkerRadius(p float64) int {
	if p > CriticalProbability {
		return CriticalRadius
	}
	return DefaultRadius
}

// StatusColor maps a device health status to its badge color.
func StatusColor(status string) string {
	switch status {
	case "CRITICAL":
		return "red"
	case "WARNING":
		return "orange"
	default:
		return "green"
	}
}
