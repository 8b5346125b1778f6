package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"fleet-dashboard/internal/aggregator"
	"fleet-dashboard/internal/render"
	"fleet-dashboard/internal/viewmodel"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedOutcomes = `
	INSERT INTO engagement_outcomes (patient_id, engagement_tier, outcome_type, primary_condition, is_improved) VALUES
		('p1', 'HIGH', 'A1C_LEVEL', 'Diabetes', 1),
		('p2', 'HIGH', 'A1C_LEVEL', 'Diabetes', 1),
		('p3', 'HIGH', 'A1C_LEVEL', 'Diabetes', 1),
		('p4', 'HIGH', 'A1C_LEVEL', 'Diabetes', 0),
		('p5', 'MEDIUM', 'A1C_LEVEL', 'Diabetes', 1),
		('p6', 'MEDIUM', 'A1C_LEVEL', 'Diabetes', 0),
		('p7', 'LOW', 'A1C_LEVEL', 'Diabetes', 1),
		('p8', 'LOW', 'A1C_LEVEL', 'Diabetes', 0),
		('p9', 'LOW', 'A1C_LEVEL', 'Diabetes', 0),
		('p10', 'LOW', 'A1C_LEVEL', 'Diabetes', 0),
		('p11', 'LOW', 'A1C_LEVEL', 'Hypertension', 1),
		('p12', 'HIGH', 'BLOOD_PRESSURE_SYSTOLIC', 'Hypertension', 0)
`

const seedProviders = `
	INSERT INTO provider_health_scored
		(facility_name, facility_type, city, state, account_manager, churn_risk_score, churn_risk_category,
		 annual_revenue_at_risk, patient_engagement_score, avg_patient_engagement, nps_score, contract_status)
	VALUES
		('P1', 'Clinic', 'Austin', 'TX', 'Dana', 85, 'HIGH', 400000, 30, 25, 10, 'Renewal Due'),
		('P2', 'Hospital', 'Dallas', 'TX', 'Dana', 72, 'HIGH', 300000, 40, 35, 20, 'Active'),
		('P3', 'Clinic', 'Columbus', 'OH', 'Lee', 65, 'MEDIUM', 200000, 50, 45, 30, 'Active'),
		('P4', 'Practice', 'Albany', 'NY', 'Lee', 40, 'LOW', 100000, 70, 70, 60, 'Active'),
		('P5', 'Practice', 'Seattle', 'WA', 'Kim', 20, 'LOW', 50000, 80, NULL, 70, 'Active')
`

const seedValidation = `
	INSERT INTO churn_model_validation VALUES ('2026-09-01', 84.0), ('2026-10-01', 87.0)
`

func newHypothesis(t *testing.T) *HypothesisService {
	t.Helper()
	return NewHypothesisService(openWarehouse(t, seedOutcomes, seedProviders, seedValidation), zerolog.Nop())
}

func TestEngagementOutcomes(t *testing.T) {
	svc := newHypothesis(t)
	ctx := context.Background()

	view, err := svc.Render(ctx, viewmodel.NewState())
	require.NoError(t, err)

	chart := view.Outcomes.(render.BarChart)
	require.Len(t, chart.Bars, 3)
	assert.Equal(t, "HIGH", chart.Bars[0].Category)
	assert.Equal(t, 75.0, chart.Bars[0].Value)
	assert.Equal(t, "#2ecc71", chart.Bars[0].Color)
	assert.Equal(t, "MEDIUM", chart.Bars[1].Category)
	assert.Equal(t, "LOW", chart.Bars[2].Category)
	assert.Equal(t, 40.0, chart.Bars[2].Value)

	impact := view.Impact.(render.Metric)
	assert.Equal(t, "35.0pp difference", impact.Value)

	st := reduce(t, viewmodel.NewState(), viewmodel.SetConditions{Conditions: []string{"Hypertension"}})
	view, err = svc.Render(ctx, st)
	require.NoError(t, err)
	chart = view.Outcomes.(render.BarChart)
	require.Len(t, chart.Bars, 1)
	assert.Equal(t, "LOW", chart.Bars[0].Category)
	assert.Equal(t, 100.0, chart.Bars[0].Value)
	assert.Equal(t, "-100.0pp difference", view.Impact.(render.Metric).Value)

	st = reduce(t, viewmodel.NewState(), viewmodel.SetOutcome{Outcome: "APPOINTMENT_KEPT"})
	view, err = svc.Render(ctx, st)
	require.NoError(t, err)
	assert.True(t, render.IsEmptyState(view.Outcomes))
	assert.True(t, render.IsEmptyState(view.Impact))
}

func TestTierQueryConditionFilter(t *testing.T) {
	svc := newHypothesis(t)

	sql, args, err := svc.TierQuery(viewmodel.NewState()).Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE outcome_type = ? GROUP BY engagement_tier")
	assert.Equal(t, []any{"A1C_LEVEL"}, args)

	st := reduce(t, viewmodel.NewState(), viewmodel.SetConditions{Conditions: []string{"Diabetes", "Heart Disease"}})
	sql, args, err = svc.TierQuery(st).Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE primary_condition IN (?, ?) AND outcome_type = ?")
	assert.Equal(t, []any{"Diabetes", "Heart Disease", "A1C_LEVEL"}, args)
}

func TestRevenueAtRiskAndWhatIf(t *testing.T) {
	svc := newHypothesis(t)

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)

	require.Len(t, view.ROI, 3)
	assert.Equal(t, "$900,000", view.ROI[0].(render.Metric).Value)
	providers := view.ROI[1].(render.Metric)
	assert.Equal(t, "3", providers.Value)
	assert.Equal(t, "60.0% of provider base", providers.Delta)
	assert.Equal(t, "87%", view.ROI[2].(render.Metric).Value)

	assert.Equal(t, 0, view.WhatIf.Min)
	assert.Equal(t, 50, view.WhatIf.Max)
	assert.Equal(t, 5, view.WhatIf.Step)
	assert.Equal(t, 25, view.WhatIf.Result.ReductionPct)
	assert.InDelta(t, 225000, view.WhatIf.Result.RevenueSaved, 1e-6)
	assert.Equal(t, "Revenue Protected: $225,000", view.WhatIf.Notices[0].Text)

	view, err = svc.Render(context.Background(), reduce(t, viewmodel.NewState(), viewmodel.SetChurnReduction{Percent: 50}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.WhatIf.Result.ProvidersSaved)
}

func TestLeaderboardAndExport(t *testing.T) {
	svc := newHypothesis(t)
	ctx := context.Background()

	view, err := svc.Render(ctx, viewmodel.NewState())
	require.NoError(t, err)
	assert.Equal(t, []any{"P1", "P2", "P3"}, column(t, view.Leaderboard, "Facility"))
	assert.Equal(t, "Churn Risk", view.Leaderboard.(render.Table).Gradient)

	st := reduce(t, viewmodel.NewState(), viewmodel.SetChurnThreshold{Threshold: 80})
	view, err = svc.Render(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []any{"P1"}, column(t, view.Leaderboard, "Facility"))

	var buf bytes.Buffer
	require.NoError(t, svc.ExportProviders(ctx, viewmodel.NewState(), &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "facility_name,facility_type,city,state,account_manager,churn_risk_score,"+
		"annual_revenue_at_risk,patient_engagement_score,nps_score,churn_risk_category", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "P1,Clinic,Austin,TX,Dana,85,"))

	st = reduce(t, viewmodel.NewState(), viewmodel.SetChurnThreshold{Threshold: 90})
	view, err = svc.Render(ctx, st)
	require.NoError(t, err)
	assert.True(t, render.IsEmptyState(view.Leaderboard))
}

func TestFlywheel(t *testing.T) {
	svc := newHypothesis(t)

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)

	chart := view.Flywheel.Chart.(render.Scatter)
	assert.Len(t, chart.Points, 4, "providers without engagement data are left out")
	assert.Equal(t, flywheelTrend, chart.Trend)
	assert.Less(t, view.Flywheel.Correlation, -0.9)
	assert.Contains(t, view.Flywheel.Insight, "negative correlation (strong)")
}

func TestFlywheelPairsValuesByRow(t *testing.T) {
	const providers = `
		INSERT INTO provider_health_scored (facility_name, churn_risk_score, annual_revenue_at_risk, avg_patient_engagement, contract_status)
		VALUES
			('P0', NULL, 10000, 10, 'Active'),
			('P1', 85, 400000, 25, 'Renewal Due'),
			('P2', 72, 300000, 35, 'Active'),
			('P3', 65, 200000, 45, 'Active'),
			('P4', 40, 100000, 70, 'Active')
	`
	svc := NewHypothesisService(openWarehouse(t, providers), zerolog.Nop())

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)

	want := aggregator.Pearson([]float64{25, 35, 45, 70}, []float64{85, 72, 65, 40})
	assert.InDelta(t, want, view.Flywheel.Correlation, 1e-9)
	assert.Len(t, view.Flywheel.Chart.(render.Scatter).Points, 4, "a provider without a churn score is not plotted")
}

func TestTargetPlans(t *testing.T) {
	svc := newHypothesis(t)

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)
	assert.Equal(t, viewmodel.TargetReduceChurn, view.Target.Goal)
	assert.Len(t, view.Target.Rows, 4)

	plan := PlanFor(viewmodel.TargetSaveRevenue)
	assert.Equal(t, []string{"Lever", "Required Improvement", "Impact"}, plan.Columns)
	assert.Equal(t, "Total: $2M protected", plan.Return)

	assert.Equal(t, viewmodel.TargetReduceChurn, PlanFor("unknown").Goal)
}
