package services

import (
	"context"
	"fmt"
	"io"
	"math"

	"fleet-dashboard/internal/aggregator"
	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/internal/render"
	"fleet-dashboard/internal/viewmodel"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProvidersFileName is the download name of the leaderboard export.
const ProvidersFileName = "at_risk_providers.csv"

// LeaderboardSize caps the churn leaderboard.
const LeaderboardSize = 20

var tierColors = map[string]string{
	"HIGH":   "#2ecc71",
	"MEDIUM": "#f39c12",
	"LOW":    "#e74c3c",
}

// flywheelTrend is the reference line drawn over the flywheel scatter.
var flywheelTrend = []render.XY{{X: 20, Y: 80}, {X: 80, Y: 20}}

// WhatIfPanel is the churn reduction slider and its projection.
type WhatIfPanel struct {
	Min     int                     `json:"min"`
	Max     int                     `json:"max"`
	Step    int                     `json:"step"`
	Result  aggregator.WhatIfResult `json:"result"`
	Notices []render.Notice         `json:"notices"`
}

// FlywheelPanel relates patient engagement to provider churn risk.
type FlywheelPanel struct {
	Chart       render.Panel `json:"chart"`
	Correlation float64      `json:"correlation"`
	Insight     string       `json:"insight,omitempty"`
}

// HypothesisView is one rendering of the hypothesis lab.
type HypothesisView struct {
	Filters          viewmodel.HypothesisFilters `json:"filters"`
	OutcomeOptions   []string                    `json:"outcome_options"`
	ConditionOptions []string                    `json:"condition_options"`
	ThresholdOptions []int                       `json:"threshold_options"`
	TargetOptions    []string                    `json:"target_options"`
	Outcomes         render.Panel                `json:"outcomes"`
	Impact           render.Panel                `json:"impact"`
	ROI              []render.Panel              `json:"roi"`
	WhatIf           WhatIfPanel                 `json:"what_if"`
	Leaderboard      render.Panel                `json:"leaderboard"`
	Flywheel         FlywheelPanel               `json:"flywheel"`
	Target           TargetPlan                  `json:"target"`
}

// HypothesisService renders the engagement and provider churn analyses.
type HypothesisService struct {
	loader
}

func NewHypothesisService(w database.Warehouse, log zerolog.Logger) *HypothesisService {
	return &HypothesisService{
		loader: loader{warehouse: w, log: log.With().Str("component", "hypothesis").Logger()},
	}
}

// Render loads every hypothesis lab query concurrently and builds the view.
func (s *HypothesisService) Render(ctx context.Context, st viewmodel.State) (*HypothesisView, error) {
	h := st.Hypothesis
	var tiers, roi, providers, flywheel *models.Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tiers, err = s.load(gctx, "engagement outcomes", s.TierQuery(st))
		return err
	})
	g.Go(func() (err error) {
		roi, err = s.load(gctx, "engagement roi", query.From(query.EngagementROI, s.dialect()))
		return err
	})
	g.Go(func() (err error) {
		providers, err = s.load(gctx, "provider leaderboard", s.LeaderboardQuery(h.ChurnThreshold))
		return err
	})
	g.Go(func() (err error) {
		flywheel, err = s.load(gctx, "engagement flywheel", s.flywheelQuery())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &HypothesisView{
		Filters:          h,
		OutcomeOptions:   viewmodel.Outcomes(),
		ConditionOptions: viewmodel.Conditions(),
		ThresholdOptions: viewmodel.ChurnThresholds(),
		TargetOptions:    viewmodel.Targets(),
		Outcomes: render.BarFrom(tiers, render.BarOptions{
			Title:      "Health Outcome Improvement Rate by Engagement Level",
			X:          "engagement_tier",
			Y:          "improvement_rate",
			XLabel:     "Engagement Level",
			YLabel:     "Patients Improved (%)",
			Colors:     tierColors,
			TextFormat: "%.1f%%",
		}),
		Impact:      impactPanel(models.TierRatesFrom(tiers)),
		Leaderboard: leaderboardTable(providers),
		Flywheel:    flywheelPanel(flywheel),
		Target:      PlanFor(h.Target),
	}

	m, ok := models.EngagementROIFrom(roi)
	if ok {
		view.ROI = roiPanels(m)
	} else {
		view.ROI = []render.Panel{render.Empty("")}
	}
	view.WhatIf = whatIf(m, h.ChurnReduction)
	return view, nil
}

// TierQuery computes the improvement rate of each engagement tier for the
// selected outcome and conditions.
func (s *HypothesisService) TierQuery(st viewmodel.State) *query.Select {
	return query.From(query.EngagementOutcomes, s.dialect()).
		Columns("engagement_tier",
			"COUNT(*) AS patient_count",
			"ROUND(AVG(CASE WHEN is_improved THEN 1 ELSE 0 END) * 100, 1) AS improvement_rate").
		Filterable("outcome_type", "primary_condition").
		Where("outcome_type", query.Eq, st.Hypothesis.Outcome).
		Apply(st.ConditionFilter()).
		GroupBy("engagement_tier").
		OrderBy("CASE engagement_tier WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END")
}

// LeaderboardQuery lists the providers at or above the churn threshold,
// riskiest first.
func (s *HypothesisService) LeaderboardQuery(threshold int) *query.Select {
	return query.From(query.ProviderHealth, s.dialect()).
		Columns("facility_name", "facility_type", "city", "state", "account_manager",
			"churn_risk_score", "annual_revenue_at_risk", "patient_engagement_score",
			"nps_score", "churn_risk_category").
		Filterable("churn_risk_score").
		Where("churn_risk_score", query.Gte, threshold).
		OrderBy("churn_risk_score DESC").
		Limit(LeaderboardSize)
}

func (s *HypothesisService) flywheelQuery() *query.Select {
	return query.From(query.ProviderHealth, s.dialect()).
		Columns("avg_patient_engagement", "churn_risk_score", "facility_name",
			"annual_revenue_at_risk", "contract_status").
		Filterable("avg_patient_engagement").
		WhereNotNull("avg_patient_engagement")
}

// ExportProviders writes the leaderboard of the session's threshold as CSV.
func (s *HypothesisService) ExportProviders(ctx context.Context, st viewmodel.State, w io.Writer) error {
	providers, err := s.load(ctx, "provider export", s.LeaderboardQuery(st.Hypothesis.ChurnThreshold))
	if err != nil {
		return err
	}
	return render.WriteCSV(w, providers)
}

func impactPanel(rates []models.TierRate) render.Panel {
	if len(rates) == 0 {
		return render.Empty("")
	}
	var high, low float64
	for _, r := range rates {
		switch r.Tier {
		case "HIGH":
			high = r.ImprovementRate
		case "LOW":
			low = r.ImprovementRate
		}
	}
	diff := high - low
	return render.NewMetric("Engagement Impact",
		fmt.Sprintf("%.1fpp difference", diff),
		fmt.Sprintf("High engagement patients are %.1f percentage points more likely to improve", diff),
		render.DeltaNormal)
}

func roiPanels(m models.EngagementROI) []render.Panel {
	return []render.Panel{
		render.NewMetric("Annual Revenue at Risk", render.Money(m.AnnualAtRiskRevenue), "From at-risk providers", render.DeltaInverse),
		render.NewMetric("Providers at Risk", render.Count(m.AtRiskProviders),
			fmt.Sprintf("%.1f%% of provider base", aggregator.Percent(float64(m.AtRiskProviders), float64(m.TotalProviders))),
			render.DeltaInverse),
		render.NewMetric("Prediction Accuracy", fmt.Sprintf("%.0f%%", m.ChurnPredictionAccuracyPct), "Based on historical validation", render.DeltaNormal),
	}
}

func whatIf(m models.EngagementROI, reduction int) WhatIfPanel {
	res := aggregator.WhatIf(m.AnnualAtRiskRevenue, m.AtRiskProviders, reduction)
	return WhatIfPanel{
		Min:    viewmodel.MinChurnReduction,
		Max:    viewmodel.MaxChurnReduction,
		Step:   viewmodel.ChurnReductionStep,
		Result: res,
		Notices: []render.Notice{
			render.NewNotice(render.LevelSuccess, "Revenue Protected: "+render.Money(res.RevenueSaved)),
			render.NewNotice(render.LevelSuccess, "Providers Retained: "+render.Count(res.ProvidersSaved)),
			render.NewNotice(render.LevelInfo, fmt.Sprintf(
				"A %d%% reduction in provider churn protects %s in annual revenue. "+
					"If the intervention program costs less than this, it is ROI-positive from day one.",
				reduction, render.Money(res.RevenueSaved))),
		},
	}
}

func leaderboardTable(f *models.Frame) render.Panel {
	p := render.TableFrom(f, "Accounts Needing Attention", "No providers at or above this churn risk score.",
		render.Column{Name: "facility_name", Label: "Facility"},
		render.Column{Name: "facility_type", Label: "Type"},
		render.Column{Name: "city", Label: "City"},
		render.Column{Name: "state", Label: "State"},
		render.Column{Name: "account_manager", Label: "Account Manager"},
		render.Column{Name: "churn_risk_score", Label: "Churn Risk"},
		render.Column{Name: "annual_revenue_at_risk", Label: "Revenue at Risk"},
		render.Column{Name: "patient_engagement_score", Label: "Engagement"},
		render.Column{Name: "nps_score", Label: "NPS"},
		render.Column{Name: "churn_risk_category", Label: "Category"},
	)
	return render.WithGradient(p, "Churn Risk")
}

func flywheelPanel(f *models.Frame) FlywheelPanel {
	chart := render.ScatterFrom(f, render.ScatterOptions{
		Title:  "Patient Engagement vs. Provider Churn Risk",
		X:      "avg_patient_engagement",
		Y:      "churn_risk_score",
		XLabel: "Average Patient Engagement Score",
		YLabel: "Provider Churn Risk Score",
		Size:   "annual_revenue_at_risk",
		Group:  "contract_status",
		Label:  "facility_name",
		Trend:  flywheelTrend,
	})
	if f.Empty() {
		return FlywheelPanel{Chart: chart}
	}

	r := aggregator.Pearson(f.Pairs("avg_patient_engagement", "churn_risk_score"))
	direction := "negative"
	if r > 0 {
		direction = "positive"
	}
	return FlywheelPanel{
		Chart:       chart,
		Correlation: r,
		Insight: fmt.Sprintf("There is a %.2f %s correlation (%s) between patient engagement and provider churn risk.",
			math.Abs(r), direction, aggregator.CorrelationStrength(r)),
	}
}
