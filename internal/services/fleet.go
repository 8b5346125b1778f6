package services

import (
	"context"
	"fmt"
	"slices"

	"fleet-dashboard/internal/aggregator"
	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/internal/render"
	"fleet-dashboard/internal/viewmodel"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultDevice is the deep-dive selection when the session has not picked one.
const DefaultDevice = "4532"

// TelemetryWindow is 30 days of 5-minute samples.
const TelemetryWindow = 8640

// BaselineMissing replaces the baseline metrics when the view is not deployed.
const BaselineMissing = "Baseline views not found. Re-run the schema setup to create v_baseline_metrics."

// Scenario is a demo device with a known failure pattern.
type Scenario struct {
	DeviceID    string `json:"device_id"`
	Description string `json:"description"`
}

// Scenarios lists the walkthrough devices in display order.
func Scenarios() []Scenario {
	return []Scenario{
		{"4532", "Power supply degradation (temp↑, power↑, errors↑)"},
		{"7821", "Display degradation (brightness↓, driver warnings)"},
		{"4512", "Network degradation (latency↑, packet loss↑)"},
		{"4523", "Software/memory leak (cpu↑, mem↑, temp↑)"},
		{"4545", "Intermittent issues (sporadic spikes)"},
		{"4556", "Early-stage subtle drift (below thresholds; good early-warning example)"},
	}
}

// priorityOrder sorts critical devices first, then warning, then healthy.
const priorityOrder = `CASE overall_status WHEN 'CRITICAL' THEN 1 WHEN 'WARNING' THEN 2 ELSE 3 END`

// DeviceDeepDive is the selected device with its telemetry history.
type DeviceDeepDive struct {
	Options     []string                `json:"options"`
	Selected    string                  `json:"selected"`
	Detail      *models.DeviceDetail    `json:"detail,omitempty"`
	StatusColor string                  `json:"status_color,omitempty"`
	Thresholds  *models.ModelThresholds `json:"thresholds,omitempty"`
	Temperature render.Panel            `json:"temperature"`
	Power       render.Panel            `json:"power"`
	Errors      render.Panel            `json:"errors"`
	CPU         render.Panel            `json:"cpu"`
	Latency     render.Panel            `json:"latency"`

	TemperatureStats []render.Panel `json:"temperature_stats,omitempty"`
	PowerStats       []render.Panel `json:"power_stats,omitempty"`
	ErrorStats       []render.Panel `json:"error_stats,omitempty"`
}

// FleetView is one rendering of the fleet monitoring screen.
type FleetView struct {
	Filters        viewmodel.FleetFilters `json:"filters"`
	StateOptions   []string               `json:"state_options"`
	ModelOptions   []string               `json:"model_options"`
	HealthOptions  []string               `json:"health_options"`
	Summary        []render.Panel         `json:"summary"`
	Baseline       []render.Panel         `json:"baseline"`
	Scenarios      render.Panel           `json:"scenarios"`
	Queue          render.Panel           `json:"queue"`
	QueueCount     int                    `json:"queue_count"`
	Device         *DeviceDeepDive        `json:"device,omitempty"`
}

// FleetService renders device health by state and model, the priority queue
// and the single-device deep dive.
type FleetService struct {
	loader
}

func NewFleetService(w database.Warehouse, log zerolog.Logger) *FleetService {
	return &FleetService{
		loader: loader{warehouse: w, log: log.With().Str("component", "fleet").Logger()},
	}
}

// Render loads the fleet overview, then the selected device.
func (s *FleetService) Render(ctx context.Context, st viewmodel.State) (*FleetView, error) {
	f := st.Fleet
	var states, modelNames, summary, baseline, scenarios, queue *models.Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		states, err = s.load(gctx, "state options", s.optionsQuery("facility_state"))
		return err
	})
	g.Go(func() (err error) {
		modelNames, err = s.load(gctx, "model options", s.optionsQuery("device_model"))
		return err
	})
	g.Go(func() (err error) {
		summary, err = s.load(gctx, "fleet summary", s.summaryQuery(f))
		return err
	})
	g.Go(func() (err error) {
		baseline, err = s.load(gctx, "baseline metrics", query.From(query.BaselineMetrics, s.dialect()))
		return err
	})
	g.Go(func() (err error) {
		scenarios, err = s.load(gctx, "demo scenarios", s.scenarioQuery())
		return err
	})
	g.Go(func() (err error) {
		queue, err = s.load(gctx, "priority queue", s.PriorityQueueQuery(f))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &FleetView{
		Filters:       f,
		StateOptions:  states.Strings("facility_state"),
		ModelOptions:  modelNames.Strings("device_model"),
		HealthOptions: viewmodel.HealthStatuses(),
		Summary:       summaryPanels(summary),
		Baseline:      baselinePanels(baseline),
		Scenarios:     scenarioTable(scenarios),
		Queue:         queueTable(queue),
		QueueCount:    queue.Len(),
	}

	options := queue.Strings("device_id")
	if selected := SelectDevice(options, f.Device); selected != "" {
		dive, err := s.deepDive(ctx, selected)
		if err != nil {
			return nil, err
		}
		dive.Options = options
		view.Device = dive
	}
	return view, nil
}

func (s *FleetService) optionsQuery(column string) *query.Select {
	return query.From(query.DeviceInventory, s.dialect()).
		Columns(column).
		Distinct().
		Filterable("operational_status").
		Where("operational_status", query.Eq, "Active").
		OrderBy(column)
}

func (s *FleetService) summaryQuery(f viewmodel.FleetFilters) *query.Select {
	return query.From(query.DeviceHealthSummary, s.dialect()).
		Columns(
			"COUNT(*) AS total_devices",
			"SUM(CASE WHEN overall_status = 'HEALTHY' THEN 1 ELSE 0 END) AS healthy_devices",
			"SUM(CASE WHEN overall_status = 'WARNING' THEN 1 ELSE 0 END) AS warning_devices",
			"SUM(CASE WHEN overall_status = 'CRITICAL' THEN 1 ELSE 0 END) AS critical_devices",
			"AVG(temperature_f) AS avg_temp",
			"AVG(power_consumption_w) AS avg_power",
			"SUM(error_count) AS total_errors",
		).
		Filterable("facility_state", "device_model").
		In("facility_state", f.States).
		In("device_model", f.Models)
}

func (s *FleetService) scenarioQuery() *query.Select {
	ids := make([]string, 0, len(Scenarios()))
	for _, sc := range Scenarios() {
		ids = append(ids, sc.DeviceID)
	}
	return query.From(query.DeviceHealthSummary, s.dialect()).
		Columns("device_id", "device_model", "facility_city", "facility_state", "environment_type",
			"temp_status", "power_status", "temperature_f", "power_consumption_w", "error_count").
		Filterable("device_id").
		In("device_id", ids).
		OrderBy("device_id")
}

// PriorityQueueQuery lists devices in the selected states, models and
// health statuses, most urgent first.
func (s *FleetService) PriorityQueueQuery(f viewmodel.FleetFilters) *query.Select {
	return query.From(query.DeviceHealthSummary, s.dialect()).
		Columns("device_id", "device_model", "facility_name", "facility_city", "facility_state",
			"environment_type", "temperature_f", "power_consumption_w", "error_count",
			"temp_status", "power_status", "overall_status", "last_report_time",
			"device_age_days", "days_since_maintenance").
		Filterable("facility_state", "device_model", "overall_status").
		In("facility_state", f.States).
		In("device_model", f.Models).
		In("overall_status", f.Health).
		OrderBy(priorityOrder, "error_count DESC", "temperature_f DESC")
}

// SelectDevice picks the deep-dive device: the requested one if it is in
// options, else DefaultDevice if present, else the first option.
func SelectDevice(options []string, requested string) string {
	if len(options) == 0 {
		return ""
	}
	if requested != "" && slices.Contains(options, requested) {
		return requested
	}
	if slices.Contains(options, DefaultDevice) {
		return DefaultDevice
	}
	return options[0]
}

func (s *FleetService) deepDive(ctx context.Context, deviceID string) (*DeviceDeepDive, error) {
	var detail, telemetry *models.Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		detail, err = s.load(gctx, "device detail", s.detailQuery(deviceID))
		return err
	})
	g.Go(func() (err error) {
		telemetry, err = s.load(gctx, "device telemetry", s.telemetryQuery(deviceID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dive := &DeviceDeepDive{Selected: deviceID}
	if d, ok := models.DeviceDetailFrom(detail); ok {
		dive.Detail = &d
		dive.StatusColor = render.StatusColor(d.OverallStatus)
		thresholds, err := s.load(ctx, "model thresholds", query.From(query.DeviceModelsReference, s.dialect()).
			Columns("model_name", "temp_warning_threshold_f", "temp_critical_threshold_f",
				"power_warning_threshold_w", "power_critical_threshold_w").
			Filterable("model_name").
			Where("model_name", query.Eq, d.DeviceModel))
		if err != nil {
			return nil, err
		}
		if t, ok := models.ModelThresholdsFrom(thresholds); ok {
			dive.Thresholds = &t
		}
	}

	// the warehouse returns newest first; charts and stats read oldest first
	history := telemetry.SortBy("timestamp", false)

	var tempRules, powerRules []render.Rule
	if t := dive.Thresholds; t != nil {
		tempRules = thresholdRules(t.TempWarningF, t.TempCriticalF)
		powerRules = thresholdRules(t.PowerWarningW, t.PowerCriticalW)
	}
	dive.Temperature = render.SeriesFrom(history, render.SeriesOptions{
		Title: "Device Temperature Over Time", T: "timestamp", Y: "temperature_f",
		YLabel: "Temperature (°F)", Rules: tempRules,
	})
	dive.Power = render.SeriesFrom(history, render.SeriesOptions{
		Title: "Power Consumption Over Time", T: "timestamp", Y: "power_consumption_w",
		YLabel: "Power (W)", Rules: powerRules,
	})
	dive.Errors = render.SeriesFrom(history, render.SeriesOptions{
		Title: "Error Count Over Time", T: "timestamp", Y: "error_count",
		YLabel: "Errors per Hour", Mark: render.MarkBar,
	})
	dive.CPU = render.SeriesFrom(history, render.SeriesOptions{
		Title: "CPU Usage", T: "timestamp", Y: "cpu_usage_pct", YLabel: "CPU Usage (%)",
	})
	dive.Latency = render.SeriesFrom(history, render.SeriesOptions{
		Title: "Network Latency", T: "timestamp", Y: "network_latency_ms", YLabel: "Latency (ms)",
	})

	if !history.Empty() {
		dive.TemperatureStats = statPanels(aggregator.Summarize(history.Floats("temperature_f")), "%.1f°F")
		dive.PowerStats = statPanels(aggregator.Summarize(history.Floats("power_consumption_w")), "%.1fW")
		errs := aggregator.Summarize(history.Floats("error_count"))
		dive.ErrorStats = []render.Panel{
			render.NewMetric("Current", fmt.Sprintf("%.0f", errs.Current), "", ""),
			render.NewMetric("Total (30d)", fmt.Sprintf("%.0f", errs.Sum), "", ""),
			render.NewMetric("Average", fmt.Sprintf("%.1f", errs.Mean), "", ""),
		}
	}
	return dive, nil
}

func (s *FleetService) detailQuery(deviceID string) *query.Select {
	return query.From("device_inventory AS d LEFT JOIN v_device_health_summary AS s ON d.device_id = s.device_id", s.dialect()).
		Columns("d.device_id AS device_id", "d.device_model AS device_model", "d.manufacturer AS manufacturer",
			"d.firmware_version AS firmware_version", "d.warranty_status AS warranty_status",
			"d.facility_name AS facility_name", "d.facility_city AS facility_city",
			"d.facility_state AS facility_state", "d.environment_type AS environment_type",
			"d.installation_date AS installation_date", "d.last_maintenance_date AS last_maintenance_date",
			"d.operational_status AS operational_status",
			"s.temp_status AS temp_status", "s.power_status AS power_status", "s.overall_status AS overall_status",
			"s.temperature_f AS temperature_f", "s.power_consumption_w AS power_consumption_w",
			"s.error_count AS error_count", "s.last_report_time AS last_report_time",
			"s.device_age_days AS device_age_days", "s.days_since_maintenance AS days_since_maintenance").
		Filterable("d.device_id").
		Where("d.device_id", query.Eq, deviceID)
}

func (s *FleetService) telemetryQuery(deviceID string) *query.Select {
	return query.From(query.ScreenTelemetry, s.dialect()).
		Columns("timestamp", "temperature_f", "power_consumption_w", "error_count",
			"cpu_usage_pct", "network_latency_ms").
		Filterable("device_id").
		Where("device_id", query.Eq, deviceID).
		OrderBy("timestamp DESC").
		Limit(TelemetryWindow)
}

func thresholdRules(warning, critical float64) []render.Rule {
	return []render.Rule{
		{Label: "Warning", Value: warning, Color: "orange"},
		{Label: "Critical", Value: critical, Color: "red"},
	}
}

func statPanels(st aggregator.Stats, format string) []render.Panel {
	return []render.Panel{
		render.NewMetric("Current", fmt.Sprintf(format, st.Current), "", ""),
		render.NewMetric("Average", fmt.Sprintf(format, st.Mean), "", ""),
		render.NewMetric("Max", fmt.Sprintf(format, st.Max), "", ""),
		render.NewMetric("Min", fmt.Sprintf(format, st.Min), "", ""),
	}
}

func summaryPanels(f *models.Frame) []render.Panel {
	sum, ok := models.FleetSummaryFrom(f)
	if !ok {
		return []render.Panel{render.Empty(render.NoDevicesMessage)}
	}
	share := func(n int64) string {
		return render.Pct(aggregator.Percent(float64(n), float64(sum.TotalDevices)))
	}
	return []render.Panel{
		render.NewMetric("Healthy Devices", render.Count(sum.HealthyDevices), share(sum.HealthyDevices), render.DeltaNormal),
		render.NewMetric("Warning Devices", render.Count(sum.WarningDevices), share(sum.WarningDevices), render.DeltaInverse),
		render.NewMetric("Critical Devices", render.Count(sum.CriticalDevices), share(sum.CriticalDevices), render.DeltaInverse),
		render.NewMetric("Total Fleet Size", render.Count(sum.TotalDevices), "", ""),
		render.NewMetric("Fleet Avg Temperature", fmt.Sprintf("%.1f°F", sum.AvgTemperatureF), "", ""),
		render.NewMetric("Fleet Avg Power", fmt.Sprintf("%.1fW", sum.AvgPowerW), "", ""),
		render.NewMetric("Total Active Errors", render.Count(sum.TotalErrors), "", ""),
	}
}

func baselinePanels(f *models.Frame) []render.Panel {
	b, ok := models.BaselineMetricsFrom(f)
	if !ok {
		return []render.Panel{render.NewNotice(render.LevelWarning, BaselineMissing)}
	}
	return []render.Panel{
		render.NewMetric("Fleet size", render.Count(b.FleetSize), "", ""),
		render.NewMetric("Devices needing review today", render.Count(b.DevicesRequiringReviewToday), "", ""),
		render.NewMetric("Manual charts to review (proxy)", render.Count(b.ChartsToReviewIfManual), "", ""),
		render.NewMetric("Critical devices", render.Count(b.DevicesCritical), "", ""),
	}
}

func scenarioTable(f *models.Frame) render.Panel {
	labels := make(map[string]string, len(Scenarios()))
	for _, sc := range Scenarios() {
		labels[sc.DeviceID] = sc.Description
	}
	out := models.NewFrame(append([]string{"scenario"}, f.Columns...)...)
	for r := 0; r < f.Len(); r++ {
		row := append([]any{labels[f.String(r, "device_id")]}, f.Rows[r]...)
		out.Append(row...)
	}
	return render.TableFrom(out, "Demo Scenario Devices", "",
		render.Column{Name: "device_id", Label: "Device ID"},
		render.Column{Name: "scenario", Label: "Scenario"},
		render.Column{Name: "device_model", Label: "Model"},
		render.Column{Name: "facility_city", Label: "City"},
		render.Column{Name: "facility_state", Label: "State"},
		render.Column{Name: "environment_type", Label: "Environment"},
		render.Column{Name: "temp_status", Label: "Temp Status"},
		render.Column{Name: "power_status", Label: "Power Status"},
		render.Column{Name: "temperature_f", Label: "Temp (°F)"},
		render.Column{Name: "power_consumption_w", Label: "Power (W)"},
		render.Column{Name: "error_count", Label: "Errors"},
	)
}

func queueTable(f *models.Frame) render.Panel {
	return render.TableFrom(f, "Device Priority Queue", render.NoDevicesMessage,
		render.Column{Name: "overall_status", Label: "Status"},
		render.Column{Name: "device_id", Label: "Device ID"},
		render.Column{Name: "device_model", Label: "Model"},
		render.Column{Name: "facility_name", Label: "Facility"},
		render.Column{Name: "facility_city", Label: "City"},
		render.Column{Name: "facility_state", Label: "State"},
		render.Column{Name: "temperature_f", Label: "Temp (°F)"},
		render.Column{Name: "power_consumption_w", Label: "Power (W)"},
		render.Column{Name: "error_count", Label: "Errors"},
	)
}
