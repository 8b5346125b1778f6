package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/internal/render"
	"fleet-dashboard/internal/viewmodel"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommandCenter(t *testing.T, cfg CommandCenterConfig, n AlertNotifier) *CommandCenterService {
	t.Helper()
	return NewCommandCenterService(openWarehouse(t, seedFleetScores), cfg, n, zerolog.Nop())
}

func reduce(t *testing.T, s viewmodel.State, events ...viewmodel.Event) viewmodel.State {
	t.Helper()
	for _, e := range events {
		var err error
		s, _, err = viewmodel.Reduce(s, e)
		require.NoError(t, err)
	}
	return s
}

func criticalRows(t *testing.T, p render.Panel) [][]any {
	t.Helper()
	table, ok := p.(render.Table)
	require.True(t, ok, "expected a table, got %T", p)
	assert.Equal(t, "failure_probability", table.Gradient)
	return table.Rows
}

func TestCriticalTableTexasCritical(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)
	st := reduce(t, viewmodel.NewState(),
		viewmodel.SetRegion{Region: "Texas"},
		viewmodel.SetRiskLevels{Levels: []string{"Critical (>85%)"}},
	)

	view, err := svc.Render(context.Background(), st)
	require.NoError(t, err)

	rows := criticalRows(t, view.CriticalDevices)
	require.Len(t, rows, 2)
	prev := 1.0
	for _, row := range rows {
		assert.Equal(t, "Texas", row[2])
		p := row[3].(float64)
		assert.Greater(t, p, 0.85)
		assert.LessOrEqual(t, p, prev, "rows must be sorted by failure probability, highest first")
		prev = p
	}
	assert.Equal(t, "T1", rows[0][0])
	assert.Equal(t, "T2", rows[1][0])
}

func TestCriticalTableDefaultSelection(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)

	rows := criticalRows(t, view.CriticalDevices)
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[0])
	}
	assert.Equal(t, []any{"O1", "T1", "T2", "T3"}, ids)
}

func TestCriticalTableEmptySelection(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)
	st := reduce(t, viewmodel.NewState(),
		viewmodel.SetRegion{Region: "Ohio"},
		viewmodel.SetRiskLevels{Levels: []string{"low"}},
	)

	view, err := svc.Render(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, render.NewNotice(render.LevelSuccess, NoCriticalDevices), view.CriticalDevices)
}

func TestCriticalDevicesQueryBindsEverySelection(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)
	st := reduce(t, viewmodel.NewState(),
		viewmodel.SetRegion{Region: "Texas"},
		viewmodel.SetRiskLevels{Levels: []string{"Critical (>85%)"}},
	)

	sql, args, err := svc.CriticalDevicesQuery(st).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT device_id, hospital_name, region, failure_probability, predicted_failure_type, "+
		"cpu_load, temperature, last_ping FROM fleet_health_scored "+
		"WHERE region IN (?) AND failure_probability > ? AND ((failure_probability > ?)) "+
		"ORDER BY failure_probability DESC", sql)
	assert.Equal(t, []any{"Texas", 0.80, 0.85}, args)
}

func TestCommandCenterKPIsAndCharts(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)

	require.Len(t, view.KPIs, 4)
	health := view.KPIs[0].(render.Metric)
	assert.Equal(t, "Fleet Health Score", health.Label)
	assert.Equal(t, "25.1%", health.Value)

	failures := view.KPIs[1].(render.Metric)
	assert.Equal(t, "3 Devices", failures.Value)
	assert.Equal(t, "Stable", failures.Delta)
	assert.Equal(t, render.DeltaInverse, failures.DeltaColor)

	revenue := view.KPIs[2].(render.Metric)
	assert.Equal(t, "$30,000", revenue.Value)
	assert.Equal(t, render.DeltaOff, revenue.DeltaColor)

	offline := view.KPIs[3].(render.Metric)
	assert.Equal(t, "2", offline.Value)
	assert.Equal(t, "Normal", offline.Delta)
	assert.Equal(t, render.DeltaNormal, offline.DeltaColor)

	assert.Nil(t, view.Alert)

	m := view.Map.(render.ScatterMap)
	assert.Len(t, m.Markers, 7)
	assert.Equal(t, Legend{Bands: view.Legend.Bands, Total: 7, Critical: 4, AtRisk: 5}, view.Legend)

	regional := view.Regional.(render.BarChart)
	require.NotEmpty(t, regional.Bars)
	assert.Equal(t, "Texas", regional.Bars[0].Category)
	assert.Equal(t, 2.0, regional.Bars[0].Value)
	assert.Contains(t, regional.Bars[0].Hover, "revenue_at_risk")

	failureTypes := view.FailureTypes.(render.BarChart)
	require.Len(t, failureTypes.Bars, 2)
	assert.Equal(t, "Overheating", failureTypes.Bars[0].Category)
	assert.Equal(t, 3.0, failureTypes.Bars[0].Value)

	assert.Len(t, view.Agent.Suggestions, 3)
	assert.Equal(t, query.RiskLevels(), view.RiskLevels)
}

func TestRegionFilterNarrowsMapAndLegend(t *testing.T) {
	svc := newCommandCenter(t, DefaultCommandCenterConfig(), nil)
	st := reduce(t, viewmodel.NewState(), viewmodel.SetRegion{Region: "Texas"})

	view, err := svc.Render(context.Background(), st)
	require.NoError(t, err)

	m := view.Map.(render.ScatterMap)
	require.Len(t, m.Markers, 4)
	assert.Equal(t, "T1", m.Markers[0].ID)
	assert.Equal(t, render.Red, m.Markers[0].Color)
	assert.Equal(t, render.Orange, m.Markers[3].Color)
	assert.Equal(t, 4, view.Legend.Total)
	assert.Equal(t, 3, view.Legend.Critical)
	assert.Equal(t, 3, view.Legend.AtRisk)
}

func TestCriticalAlertIsThrottledPerRegion(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := DefaultCommandCenterConfig()
	cfg.AlertThreshold = 2
	svc := newCommandCenter(t, cfg, notifier)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	view, err := svc.Render(ctx, viewmodel.NewState())
	require.NoError(t, err)
	require.NotNil(t, view.Alert)
	assert.Equal(t, "ALERT: 3 devices require immediate attention!", view.Alert.Text)
	assert.Equal(t, "+1 from yesterday", view.KPIs[1].(render.Metric).Delta)

	_, err = svc.Render(ctx, viewmodel.NewState())
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1, "a second render inside the window must not notify again")
	assert.Equal(t, "all", notifier.alerts[0].Region)
	assert.Equal(t, int64(3), notifier.alerts[0].CriticalDevices)

	_, err = svc.Render(ctx, reduce(t, viewmodel.NewState(), viewmodel.SetRegion{Region: "Texas"}))
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, "texas", notifier.alerts[1].Region)

	now = now.Add(cfg.AlertInterval)
	_, err = svc.Render(ctx, viewmodel.NewState())
	require.NoError(t, err)
	assert.Len(t, notifier.alerts, 3)
}

func TestCommandCenterUnavailableWarehouse(t *testing.T) {
	w := brokenWarehouse{err: errors.Join(database.ErrUnavailable, errors.New("dial tcp: connection refused"))}
	svc := NewCommandCenterService(w, DefaultCommandCenterConfig(), nil, zerolog.Nop())

	_, err := svc.Render(context.Background(), viewmodel.NewState())
	assert.ErrorIs(t, err, database.ErrUnavailable)
}

func TestCommandCenterMissingViewsShowEmptyStates(t *testing.T) {
	db, err := database.NewSQLiteDB(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	svc := NewCommandCenterService(db, DefaultCommandCenterConfig(), nil, zerolog.Nop())

	view, err := svc.Render(context.Background(), viewmodel.NewState())
	require.NoError(t, err)
	assert.Equal(t, render.Empty(render.NoDevicesMessage), view.Map)
	assert.True(t, render.IsEmptyState(view.Regional))
	assert.True(t, render.IsEmptyState(view.FailureTypes))
	require.Len(t, view.KPIs, 1)
	assert.True(t, render.IsEmptyState(view.KPIs[0]))
	assert.Zero(t, view.Legend.Total)
}
