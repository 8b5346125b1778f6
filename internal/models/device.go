package models

import "time"

// Device health statuses reported by the health summary view.
const (
	StatusCritical = "CRITICAL"
	StatusWarning  = "WARNING"
	StatusHealthy  = "HEALTHY"
	StatusNormal   = "NORMAL"
)

// FleetMetrics is the single-row fleet-wide aggregate behind the command center KPIs
type FleetMetrics struct {
	TotalDevices          int64   `json:"total_devices"`
	CriticalDevices       int64   `json:"critical_devices"`
	AvgFailureProbability float64 `json:"avg_failure_probability"`
	RevenueAtRiskUSD      float64 `json:"revenue_at_risk_usd"`
	OfflineDevices        int64   `json:"offline_devices"`
}

// FleetHealthPct is the fleet health score shown as a percentage
func (m FleetMetrics) FleetHealthPct() float64 {
	return (1 - m.AvgFailureProbability) * 100
}

func FleetMetricsFrom(f *Frame) (FleetMetrics, bool) {
	if f.Empty() {
		return FleetMetrics{}, false
	}
	return FleetMetrics{
		TotalDevices:          f.Int(0, "total_devices"),
		CriticalDevices:       f.Int(0, "critical_devices"),
		AvgFailureProbability: f.Float(0, "avg_failure_probability"),
		RevenueAtRiskUSD:      f.Float(0, "revenue_at_risk_usd"),
		OfflineDevices:        f.Int(0, "offline_devices"),
	}, true
}

// FleetSummary counts active devices by combined temperature/power status
type FleetSummary struct {
	TotalDevices    int64   `json:"total_devices"`
	HealthyDevices  int64   `json:"healthy_devices"`
	WarningDevices  int64   `json:"warning_devices"`
	CriticalDevices int64   `json:"critical_devices"`
	AvgTemperatureF float64 `json:"avg_temperature_f"`
	AvgPowerW       float64 `json:"avg_power_w"`
	TotalErrors     int64   `json:"total_errors"`
}

func FleetSummaryFrom(f *Frame) (FleetSummary, bool) {
	if f.Empty() || f.Int(0, "total_devices") == 0 {
		return FleetSummary{}, false
	}
	return FleetSummary{
		TotalDevices:    f.Int(0, "total_devices"),
		HealthyDevices:  f.Int(0, "healthy_devices"),
		WarningDevices:  f.Int(0, "warning_devices"),
		CriticalDevices: f.Int(0, "critical_devices"),
		AvgTemperatureF: f.Float(0, "avg_temp"),
		AvgPowerW:       f.Float(0, "avg_power"),
		TotalErrors:     f.Int(0, "total_errors"),
	}, true
}

// BaselineMetrics describes the manual-review workload the monitoring replaces
type BaselineMetrics struct {
	FleetSize                   int64 `json:"fleet_size"`
	DevicesRequiringReviewToday int64 `json:"devices_requiring_review_today"`
	ChartsToReviewIfManual      int64 `json:"charts_to_review_if_manual"`
	DevicesCritical             int64 `json:"devices_critical"`
}

func BaselineMetricsFrom(f *Frame) (BaselineMetrics, bool) {
	if f.Empty() {
		return BaselineMetrics{}, false
	}
	return BaselineMetrics{
		FleetSize:                   f.Int(0, "fleet_size"),
		DevicesRequiringReviewToday: f.Int(0, "devices_requiring_review_today"),
		ChartsToReviewIfManual:      f.Int(0, "charts_to_review_if_manual"),
		DevicesCritical:             f.Int(0, "devices_critical"),
	}, true
}

// DeviceDetail is the inventory record joined with its latest health summary
type DeviceDetail struct {
	DeviceID             string    `json:"device_id"`
	DeviceModel          string    `json:"device_model"`
	Manufacturer         string    `json:"manufacturer"`
	FacilityName         string    `json:"facility_name"`
	FacilityCity         string    `json:"facility_city"`
	FacilityState        string    `json:"facility_state"`
	EnvironmentType      string    `json:"environment_type"`
	FirmwareVersion      string    `json:"firmware_version"`
	WarrantyStatus       string    `json:"warranty_status"`
	InstallationDate     string    `json:"installation_date"`
	LastMaintenanceDate  string    `json:"last_maintenance_date"`
	OperationalStatus    string    `json:"operational_status"`
	TemperatureF         float64   `json:"temperature_f"`
	PowerConsumptionW    float64   `json:"power_consumption_w"`
	ErrorCount           int64     `json:"error_count"`
	TempStatus           string    `json:"temp_status"`
	PowerStatus          string    `json:"power_status"`
	OverallStatus        string    `json:"overall_status"`
	LastReportTime       time.Time `json:"last_report_time"`
	DeviceAgeDays        int64     `json:"device_age_days"`
	DaysSinceMaintenance int64     `json:"days_since_maintenance"`
}

func DeviceDetailFrom(f *Frame) (DeviceDetail, bool) {
	if f.Empty() {
		return DeviceDetail{}, false
	}
	return DeviceDetail{
		DeviceID:             f.String(0, "device_id"),
		DeviceModel:          f.String(0, "device_model"),
		Manufacturer:         f.String(0, "manufacturer"),
		FacilityName:         f.String(0, "facility_name"),
		FacilityCity:         f.String(0, "facility_city"),
		FacilityState:        f.String(0, "facility_state"),
		EnvironmentType:      f.String(0, "environment_type"),
		FirmwareVersion:      f.String(0, "firmware_version"),
		WarrantyStatus:       f.String(0, "warranty_status"),
		InstallationDate:     f.String(0, "installation_date"),
		LastMaintenanceDate:  f.String(0, "last_maintenance_date"),
		OperationalStatus:    f.String(0, "operational_status"),
		TemperatureF:         f.Float(0, "temperature_f"),
		PowerConsumptionW:    f.Float(0, "power_consumption_w"),
		ErrorCount:           f.Int(0, "error_count"),
		TempStatus:           f.String(0, "temp_status"),
		PowerStatus:          f.String(0, "power_status"),
		OverallStatus:        f.String(0, "overall_status"),
		LastReportTime:       f.Time(0, "last_report_time"),
		DeviceAgeDays:        f.Int(0, "device_age_days"),
		DaysSinceMaintenance: f.Int(0, "days_since_maintenance"),
	}, true
}

// ModelThresholds are the per-model warning/critical limits from the reference table
type ModelThresholds struct {
	Model          string  `json:"model"`
	TempWarningF   float64 `json:"temp_warning_f"`
	TempCriticalF  float64 `json:"temp_critical_f"`
	PowerWarningW  float64 `json:"power_warning_w"`
	PowerCriticalW float64 `json:"power_critical_w"`
}

func ModelThresholdsFrom(f *Frame) (ModelThresholds, bool) {
	if f.Empty() {
		return ModelThresholds{}, false
	}
	return ModelThresholds{
		Model:          f.String(0, "model_name"),
		TempWarningF:   f.Float(0, "temp_warning_threshold_f"),
		TempCriticalF:  f.Float(0, "temp_critical_threshold_f"),
		PowerWarningW:  f.Float(0, "power_warning_threshold_w"),
		PowerCriticalW: f.Float(0, "power_critical_threshold_w"),
	}, true
}

// OverallStatus combines temperature and power statuses into one health status
func OverallStatus(tempStatus, powerStatus string) string {
	switch {
	case tempStatus == StatusCritical || powerStatus == StatusCritical:
		return StatusCritical
	case tempStatus == StatusWarning || powerStatus == StatusWarning:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
