package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-dashboard/internal/agent"
	"fleet-dashboard/internal/aggregator"
	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/internal/render"
	"fleet-dashboard/internal/viewmodel"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AlertNotifier receives the critical alerts raised by the command center.
type AlertNotifier interface {
	Notify(ctx context.Context, alert models.FleetAlert) error
}

// CommandCenterConfig holds command center settings
type CommandCenterConfig struct {
	// AlertThreshold is the critical device count that raises the alert banner
	AlertThreshold int
	// AlertInterval is the minimum time between two notifications for one region
	AlertInterval time.Duration
	// OfflineReviewAt is the offline device count that needs review
	OfflineReviewAt int64
}

// DefaultCommandCenterConfig returns default command center configuration
func DefaultCommandCenterConfig() CommandCenterConfig {
	return CommandCenterConfig{
		AlertThreshold:  15,
		AlertInterval:   5 * time.Minute,
		OfflineReviewAt: 5,
	}
}

// LegendEntry is one color band of the map legend.
type LegendEntry struct {
	Label string      `json:"label"`
	Color render.RGBA `json:"color"`
}

// Legend summarizes the devices on the map.
type Legend struct {
	Bands    []LegendEntry `json:"bands"`
	Total    int           `json:"total"`
	Critical int           `json:"critical"`
	AtRisk   int           `json:"at_risk"`
}

// AgentPanel is the question box with its suggestions and last answer.
type AgentPanel struct {
	Suggestions []agent.Suggestion    `json:"suggestions"`
	Question    string                `json:"question"`
	Answer      *models.AgentResponse `json:"answer,omitempty"`
}

// CommandCenterView is one rendering of the command center.
type CommandCenterView struct {
	Filters         viewmodel.CommandCenterFilters `json:"filters"`
	Regions         []string                       `json:"regions"`
	RiskLevels      []query.RiskLevel              `json:"risk_level_choices"`
	Alert           *render.Notice                 `json:"alert,omitempty"`
	KPIs            []render.Panel                 `json:"kpis"`
	Map             render.Panel                   `json:"map"`
	Legend          Legend                         `json:"legend"`
	FailureTypes    render.Panel                   `json:"failure_types"`
	Regional        render.Panel                   `json:"regional"`
	CriticalDevices render.Panel                   `json:"critical_devices"`
	Agent           AgentPanel                     `json:"agent"`
	RenderedAt      time.Time                      `json:"rendered_at"`
}

// NoCriticalDevices replaces the critical device table when it is empty.
const NoCriticalDevices = "No critical devices at this time!"

// CommandCenterService renders fleet health KPIs, the risk map and the
// critical device table.
type CommandCenterService struct {
	loader
	cfg      CommandCenterConfig
	notifier AlertNotifier
	now      func() time.Time
	alerts   *aggregator.RegionTracker
}

// NewCommandCenterService creates the command center. notifier may be nil.
func NewCommandCenterService(w database.Warehouse, cfg CommandCenterConfig, notifier AlertNotifier, log zerolog.Logger) *CommandCenterService {
	return &CommandCenterService{
		loader:   loader{warehouse: w, log: log.With().Str("component", "command_center").Logger()},
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
		alerts: aggregator.NewRegionTracker(aggregator.AlertPolicy{
			Threshold: int64(cfg.AlertThreshold),
			Interval:  cfg.AlertInterval,
		}),
	}
}

// Render loads every command center query concurrently and builds the view.
func (s *CommandCenterService) Render(ctx context.Context, st viewmodel.State) (*CommandCenterView, error) {
	var fleet, metrics, regional, failures, critical *models.Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fleet, err = s.load(gctx, "fleet health", s.fleetQuery(st))
		return err
	})
	g.Go(func() (err error) {
		metrics, err = s.load(gctx, "fleet metrics", query.From(query.FleetHealthMetrics, s.dialect()))
		return err
	})
	g.Go(func() (err error) {
		regional, err = s.load(gctx, "regional health", query.From(query.RegionalHealth, s.dialect()).
			OrderBy("critical_count DESC").
			Limit(10))
		return err
	})
	g.Go(func() (err error) {
		failures, err = s.load(gctx, "failure types", query.From(query.FailureTypeAnalysis, s.dialect()).
			OrderBy("device_count DESC"))
		return err
	})
	g.Go(func() (err error) {
		critical, err = s.load(gctx, "critical devices", s.CriticalDevicesQuery(st))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &CommandCenterView{
		Filters:    st.CommandCenter,
		Regions:    viewmodel.Regions(),
		RiskLevels: query.RiskLevels(),
		Map: render.MapFrom(fleet, render.MapColumns{
			ID:      "device_id",
			Lat:     "latitude",
			Lon:     "longitude",
			Risk:    "failure_probability",
			Tooltip: []string{"device_id", "hospital_name", "region", "failure_probability", "predicted_failure_type"},
		}),
		Legend: legendFor(fleet),
		FailureTypes: render.BarFrom(failures, render.BarOptions{
			Title:      "At-Risk Devices by Failure Type",
			X:          "predicted_failure_type",
			Y:          "device_count",
			XLabel:     "Failure Type",
			YLabel:     "Device Count",
			SortBy:     "device_count",
			Desc:       true,
			ShadeBy:    "avg_probability",
			TextFormat: "%.0f",
		}),
		Regional: render.BarFrom(regional, render.BarOptions{
			Title:      "Critical Devices by Region",
			X:          "region",
			Y:          "critical_count",
			XLabel:     "State",
			YLabel:     "Critical Device Count",
			SortBy:     "critical_count",
			Desc:       true,
			ShadeBy:    "avg_failure_prob",
			Hover:      []string{"total_devices", "revenue_at_risk"},
			TextFormat: "%.0f",
		}),
		CriticalDevices: criticalTable(critical),
		Agent: AgentPanel{
			Suggestions: agent.Suggestions(),
			Question:    st.Question,
			Answer:      st.Answer,
		},
		RenderedAt: s.now(),
	}

	if m, ok := models.FleetMetricsFrom(metrics); ok {
		view.KPIs = s.kpis(m)
		if m.CriticalDevices >= int64(s.cfg.AlertThreshold) {
			alert := render.NewNotice(render.LevelError,
				fmt.Sprintf("ALERT: %d devices require immediate attention!", m.CriticalDevices))
			view.Alert = &alert
			s.notify(ctx, st.CommandCenter.Region, m.CriticalDevices, alert.Text)
		}
	} else {
		view.KPIs = []render.Panel{render.Empty("Fleet metrics are not available.")}
	}
	return view, nil
}

func (s *CommandCenterService) fleetQuery(st viewmodel.State) *query.Select {
	return query.From(query.FleetHealthScored, s.dialect()).
		Columns("device_id", "region", "hospital_name", "last_ping", "cpu_load", "voltage",
			"memory_usage", "temperature", "uptime_hours", "failure_probability",
			"predicted_failure_type", "latitude", "longitude").
		Filterable("region").
		Apply(st.RegionFilter()).
		OrderBy("failure_probability DESC")
}

// CriticalDevicesQuery selects devices above the critical map threshold in
// the selected region, restricted to the selected risk levels.
func (s *CommandCenterService) CriticalDevicesQuery(st viewmodel.State) *query.Select {
	return query.From(query.FleetHealthScored, s.dialect()).
		Columns("device_id", "hospital_name", "region", "failure_probability",
			"predicted_failure_type", "cpu_load", "temperature", "last_ping").
		Filterable("region", "failure_probability").
		Apply(st.RegionFilter()).
		Where("failure_probability", query.Gt, render.CriticalProbability).
		AnyOf(query.RiskRanges("failure_probability", st.CommandCenter.RiskLevels)...).
		OrderBy("failure_probability DESC")
}

func (s *CommandCenterService) kpis(m models.FleetMetrics) []render.Panel {
	threshold := int64(s.cfg.AlertThreshold)
	failuresDelta := "Stable"
	if m.CriticalDevices > threshold {
		failuresDelta = fmt.Sprintf("+%d from yesterday", m.CriticalDevices-threshold)
	}

	offlineDelta, offlineColor := "Normal", render.DeltaNormal
	if m.OfflineDevices >= s.cfg.OfflineReviewAt {
		offlineDelta, offlineColor = "Review needed", render.DeltaInverse
	}

	return []render.Panel{
		render.NewMetric("Fleet Health Score", render.Pct(m.FleetHealthPct()), "", render.DeltaNormal),
		render.NewMetric("Predicted Failures (24h)", fmt.Sprintf("%d Devices", m.CriticalDevices), failuresDelta, render.DeltaInverse),
		render.NewMetric("Revenue Protected", render.Money(m.RevenueAtRiskUSD), "Potential 24h loss prevented", render.DeltaOff),
		render.NewMetric("Offline Devices", render.Count(m.OfflineDevices), offlineDelta, offlineColor),
	}
}

// notify forwards an alert at most once per AlertInterval for each region.
func (s *CommandCenterService) notify(ctx context.Context, region string, critical int64, message string) {
	now := s.now()
	if !s.alerts.Observe(region, critical, now) || s.notifier == nil {
		return
	}

	key := strings.ToLower(region)
	alert := models.FleetAlert{
		Timestamp:       now,
		Region:          key,
		CriticalDevices: critical,
		Threshold:       s.cfg.AlertThreshold,
		Message:         message,
	}
	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.log.Warn().Err(err).Str("region", key).Msg("failed to send fleet alert")
	}
}

func legendFor(fleet *models.Frame) Legend {
	l := Legend{
		Bands: []LegendEntry{
			{Label: "Critical (>80%)", Color: render.Red},
			{Label: "Medium (50-80%)", Color: render.Orange},
			{Label: "Healthy (<50%)", Color: render.Green},
		},
		Total: fleet.Len(),
	}
	for _, p := range fleet.Floats("failure_probability") {
		if p > render.CriticalProbability {
			l.Critical++
		}
		if p > render.AtRiskProbability {
			l.AtRisk++
		}
	}
	return l
}

func criticalTable(f *models.Frame) render.Panel {
	if f.Empty() {
		return render.NewNotice(render.LevelSuccess, NoCriticalDevices)
	}
	return render.WithGradient(render.TableFrom(f, "Critical Devices Requiring Immediate Action", ""),
		"failure_probability")
}
