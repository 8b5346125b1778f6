package models

// EngagementROI is the single-row revenue-at-risk summary for the provider base
type EngagementROI struct {
	AnnualAtRiskRevenue        float64 `json:"annual_at_risk_revenue"`
	AtRiskProviders            int64   `json:"at_risk_providers"`
	TotalProviders             int64   `json:"total_providers"`
	ChurnPredictionAccuracyPct float64 `json:"churn_prediction_accuracy_pct"`
}

func EngagementROIFrom(f *Frame) (EngagementROI, bool) {
	if f.Empty() {
		return EngagementROI{}, false
	}
	return EngagementROI{
		AnnualAtRiskRevenue:        f.Float(0, "annual_at_risk_revenue"),
		AtRiskProviders:            f.Int(0, "at_risk_providers"),
		TotalProviders:             f.Int(0, "total_providers"),
		ChurnPredictionAccuracyPct: f.Float(0, "churn_prediction_accuracy_pct"),
	}, true
}

// TierRate is the improvement rate of one engagement tier for the selected outcome
type TierRate struct {
	Tier            string  `json:"tier"`
	PatientCount    int64   `json:"patient_count"`
	ImprovementRate float64 `json:"improvement_rate"`
}

func TierRatesFrom(f *Frame) []TierRate {
	out := make([]TierRate, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		out = append(out, TierRate{
			Tier:            f.String(r, "engagement_tier"),
			PatientCount:    f.Int(r, "patient_count"),
			ImprovementRate: f.Float(r, "improvement_rate"),
		})
	}
	return out
}
