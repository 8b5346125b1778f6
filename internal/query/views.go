package query

// Warehouse relations read by the dashboards.
const (
	FleetHealthScored   = "fleet_health_scored"
	FleetHealthMetrics  = "vw_fleet_health_metrics"
	RegionalHealth      = "vw_regional_health"
	FailureTypeAnalysis = "vw_failure_type_analysis"

	DeviceInventory       = "device_inventory"
	DeviceHealthSummary   = "v_device_health_summary"
	BaselineMetrics       = "v_baseline_metrics"
	ScreenTelemetry       = "screen_telemetry"
	DeviceModelsReference = "device_models_reference"

	EngagementOutcomes = "v_engagement_outcomes_correlation"
	EngagementROI      = "v_engagement_roi"
	ProviderHealth     = "v_provider_health"

	RunbookDocuments = "runbook_documents"
)

// AnalystTables are the relations generated SQL may read.
func AnalystTables() []string {
	return []string{
		FleetHealthScored, FleetHealthMetrics, RegionalHealth, FailureTypeAnalysis,
		DeviceInventory, DeviceHealthSummary, ScreenTelemetry, DeviceModelsReference,
	}
}
