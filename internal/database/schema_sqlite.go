package database

import (
	"context"
	"fmt"
)

// SQLite renditions of the dashboard tables and views. They use only
// portable SQL so a single-file demo warehouse behaves like the ClickHouse
// one for every dashboard query.
const (
	sqliteDeviceInventory = `
		CREATE TABLE IF NOT EXISTS device_inventory (
			device_id TEXT PRIMARY KEY,
			device_model TEXT,
			manufacturer TEXT,
			firmware_version TEXT,
			warranty_status TEXT,
			facility_name TEXT,
			facility_city TEXT,
			facility_state TEXT,
			environment_type TEXT,
			installation_date TEXT,
			last_maintenance_date TEXT,
			operational_status TEXT
		)
	`

	sqliteScreenTelemetry = `
		CREATE TABLE IF NOT EXISTS screen_telemetry (
			timestamp TEXT,
			device_id TEXT,
			temperature_f REAL,
			power_consumption_w REAL,
			error_count INTEGER,
			cpu_usage_pct REAL,
			network_latency_ms REAL
		)
	`

	sqliteDeviceModelsReference = `
		CREATE TABLE IF NOT EXISTS device_models_reference (
			model_name TEXT PRIMARY KEY,
			temp_warning_threshold_f REAL,
			temp_critical_threshold_f REAL,
			power_warning_threshold_w REAL,
			power_critical_threshold_w REAL
		)
	`

	sqliteFleetHealthScored = `
		CREATE TABLE IF NOT EXISTS fleet_health_scored (
			device_id TEXT PRIMARY KEY,
			region TEXT,
			hospital_name TEXT,
			last_ping TEXT,
			cpu_load REAL,
			voltage REAL,
			memory_usage REAL,
			temperature REAL,
			uptime_hours REAL,
			failure_probability REAL,
			predicted_failure_type TEXT,
			latitude REAL,
			longitude REAL,
			revenue_impact_usd REAL,
			is_offline INTEGER,
			scored_at TEXT
		)
	`

	sqliteProviderHealthScored = `
		CREATE TABLE IF NOT EXISTS provider_health_scored (
			facility_name TEXT PRIMARY KEY,
			facility_type TEXT,
			city TEXT,
			state TEXT,
			account_manager TEXT,
			churn_risk_score REAL,
			churn_risk_category TEXT,
			annual_revenue_at_risk REAL,
			patient_engagement_score REAL,
			avg_patient_engagement REAL,
			nps_score REAL,
			contract_status TEXT,
			scored_at TEXT
		)
	`

	sqliteEngagementOutcomes = `
		CREATE TABLE IF NOT EXISTS engagement_outcomes (
			patient_id TEXT,
			engagement_tier TEXT,
			outcome_type TEXT,
			primary_condition TEXT,
			is_improved INTEGER,
			measured_at TEXT
		)
	`

	sqliteChurnModelValidation = `
		CREATE TABLE IF NOT EXISTS churn_model_validation (
			validated_at TEXT,
			accuracy_pct REAL
		)
	`

	// embeddings are stored as JSON arrays; ranking needs the ClickHouse warehouse
	sqliteRunbookDocuments = `
		CREATE TABLE IF NOT EXISTS runbook_documents (
			doc_id TEXT PRIMARY KEY,
			title TEXT,
			failure_category TEXT,
			content TEXT,
			severity TEXT,
			estimated_repair_time TEXT,
			safety_notes TEXT,
			embedding TEXT
		)
	`
)

const (
	sqliteDeviceHealthSummary = `
		CREATE VIEW IF NOT EXISTS v_device_health_summary AS
		SELECT
			device_id, device_model, manufacturer, facility_name, facility_city,
			facility_state, environment_type, temperature_f, power_consumption_w, error_count,
			temp_status, power_status,
			CASE
				WHEN temp_status = 'CRITICAL' OR power_status = 'CRITICAL' THEN 'CRITICAL'
				WHEN temp_status = 'WARNING' OR power_status = 'WARNING' THEN 'WARNING'
				ELSE 'HEALTHY'
			END AS overall_status,
			last_report_time, device_age_days, days_since_maintenance
		FROM (
			SELECT
				d.device_id AS device_id,
				d.device_model AS device_model,
				d.manufacturer AS manufacturer,
				d.facility_name AS facility_name,
				d.facility_city AS facility_city,
				d.facility_state AS facility_state,
				d.environment_type AS environment_type,
				t.temperature_f AS temperature_f,
				t.power_consumption_w AS power_consumption_w,
				t.error_count AS error_count,
				CASE
					WHEN t.temperature_f >= r.temp_critical_threshold_f THEN 'CRITICAL'
					WHEN t.temperature_f >= r.temp_warning_threshold_f THEN 'WARNING'
					ELSE 'NORMAL'
				END AS temp_status,
				CASE
					WHEN t.power_consumption_w >= r.power_critical_threshold_w THEN 'CRITICAL'
					WHEN t.power_consumption_w >= r.power_warning_threshold_w THEN 'WARNING'
					ELSE 'NORMAL'
				END AS power_status,
				t.timestamp AS last_report_time,
				CAST(julianday('now') - julianday(d.installation_date) AS INTEGER) AS device_age_days,
				CAST(julianday('now') - julianday(d.last_maintenance_date) AS INTEGER) AS days_since_maintenance
			FROM device_inventory AS d
			INNER JOIN screen_telemetry AS t ON t.device_id = d.device_id
				AND t.timestamp = (SELECT MAX(timestamp) FROM screen_telemetry WHERE device_id = d.device_id)
			LEFT JOIN device_models_reference AS r ON d.device_model = r.model_name
			WHERE d.operational_status = 'Active'
		)
	`

	sqliteBaselineMetrics = `
		CREATE VIEW IF NOT EXISTS v_baseline_metrics AS
		SELECT
			COUNT(*) AS fleet_size,
			SUM(CASE WHEN overall_status != 'HEALTHY' THEN 1 ELSE 0 END) AS devices_requiring_review_today,
			COUNT(*) * 288 AS charts_to_review_if_manual,
			SUM(CASE WHEN overall_status = 'CRITICAL' THEN 1 ELSE 0 END) AS devices_critical
		FROM v_device_health_summary
	`

	sqliteFleetHealthMetrics = `
		CREATE VIEW IF NOT EXISTS vw_fleet_health_metrics AS
		SELECT
			COUNT(*) AS total_devices,
			SUM(CASE WHEN failure_probability > 0.85 THEN 1 ELSE 0 END) AS critical_devices,
			SUM(CASE WHEN failure_probability > 0.70 THEN 1 ELSE 0 END) AS at_risk_devices,
			AVG(failure_probability) AS avg_failure_probability,
			SUM(CASE WHEN failure_probability > 0.85 THEN revenue_impact_usd ELSE 0 END) AS revenue_at_risk_usd,
			SUM(CASE WHEN is_offline THEN 1 ELSE 0 END) AS offline_devices
		FROM fleet_health_scored
	`

	sqliteRegionalHealth = `
		CREATE VIEW IF NOT EXISTS vw_regional_health AS
		SELECT
			region,
			COUNT(*) AS total_devices,
			SUM(CASE WHEN failure_probability > 0.85 THEN 1 ELSE 0 END) AS critical_count,
			AVG(failure_probability) AS avg_failure_prob,
			SUM(CASE WHEN failure_probability > 0.70 THEN revenue_impact_usd ELSE 0 END) AS revenue_at_risk
		FROM fleet_health_scored
		GROUP BY region
	`

	sqliteFailureTypeAnalysis = `
		CREATE VIEW IF NOT EXISTS vw_failure_type_analysis AS
		SELECT
			predicted_failure_type,
			COUNT(*) AS device_count,
			AVG(failure_probability) AS avg_probability
		FROM fleet_health_scored
		WHERE failure_probability > 0.70
		GROUP BY predicted_failure_type
	`

	sqliteProviderHealth = `
		CREATE VIEW IF NOT EXISTS v_provider_health AS
		SELECT
			facility_name, facility_type, city, state, account_manager,
			churn_risk_score, churn_risk_category, annual_revenue_at_risk,
			patient_engagement_score, avg_patient_engagement, nps_score, contract_status
		FROM provider_health_scored
	`

	sqliteEngagementOutcomesCorrelation = `
		CREATE VIEW IF NOT EXISTS v_engagement_outcomes_correlation AS
		SELECT engagement_tier, outcome_type, primary_condition, is_improved
		FROM engagement_outcomes
	`

	sqliteEngagementROI = `
		CREATE VIEW IF NOT EXISTS v_engagement_roi AS
		SELECT
			SUM(CASE WHEN churn_risk_score >= 60 THEN annual_revenue_at_risk ELSE 0 END) AS annual_at_risk_revenue,
			SUM(CASE WHEN churn_risk_score >= 60 THEN 1 ELSE 0 END) AS at_risk_providers,
			COUNT(*) AS total_providers,
			(SELECT accuracy_pct FROM churn_model_validation ORDER BY validated_at DESC LIMIT 1) AS churn_prediction_accuracy_pct
		FROM provider_health_scored
	`
)

// SQLiteTables returns the SQLite table statements.
func SQLiteTables() []Statement {
	return []Statement{
		{"device_inventory", sqliteDeviceInventory},
		{"screen_telemetry", sqliteScreenTelemetry},
		{"device_models_reference", sqliteDeviceModelsReference},
		{"fleet_health_scored", sqliteFleetHealthScored},
		{"provider_health_scored", sqliteProviderHealthScored},
		{"engagement_outcomes", sqliteEngagementOutcomes},
		{"churn_model_validation", sqliteChurnModelValidation},
		{"runbook_documents", sqliteRunbookDocuments},
	}
}

// SQLiteViews returns the SQLite view statements in dependency order.
func SQLiteViews() []Statement {
	return []Statement{
		{"v_device_health_summary", sqliteDeviceHealthSummary},
		{"v_baseline_metrics", sqliteBaselineMetrics},
		{"vw_fleet_health_metrics", sqliteFleetHealthMetrics},
		{"vw_regional_health", sqliteRegionalHealth},
		{"vw_failure_type_analysis", sqliteFailureTypeAnalysis},
		{"v_provider_health", sqliteProviderHealth},
		{"v_engagement_outcomes_correlation", sqliteEngagementOutcomesCorrelation},
		{"v_engagement_roi", sqliteEngagementROI},
	}
}

// InitSchema creates the demo tables and dashboard views if they don't exist
func (s *SQLDB) InitSchema(ctx context.Context) error {
	for _, stmt := range SQLiteTables() {
		if err := s.Exec(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.Name, err)
		}
	}
	for _, stmt := range SQLiteViews() {
		if err := s.Exec(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("failed to create view %s: %w", stmt.Name, err)
		}
	}

	s.log.Info().Int("tables", len(SQLiteTables())).Int("views", len(SQLiteViews())).Msg("schema initialized")
	return nil
}
