package database

// Statement is one named DDL statement.
type Statement struct {
	Name string
	SQL  string
}

// SQL schemas for the ClickHouse tables the dashboards read. The scoring and
// provider pipelines own the data; these definitions let a local warehouse be
// created for development.
const (
	// DeviceInventoryTableSQL creates the device_inventory table
	DeviceInventoryTableSQL = `
		CREATE TABLE IF NOT EXISTS device_inventory (
			device_id String,
			device_model String,
			manufacturer String,
			firmware_version String,
			warranty_status String,
			facility_name String,
			facility_city String,
			facility_state String,
			environment_type String,
			installation_date Date,
			last_maintenance_date Date,
			operational_status String
		) ENGINE = ReplacingMergeTree()
		ORDER BY device_id
	`

	// ScreenTelemetryTableSQL creates the screen_telemetry table (5-minute samples)
	ScreenTelemetryTableSQL = `
		CREATE TABLE IF NOT EXISTS screen_telemetry (
			timestamp DateTime64(3),
			device_id String,
			temperature_f Float64,
			power_consumption_w Float64,
			error_count UInt32,
			cpu_usage_pct Float64,
			network_latency_ms Float64
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// DeviceModelsReferenceTableSQL creates the per-model threshold reference
	DeviceModelsReferenceTableSQL = `
		CREATE TABLE IF NOT EXISTS device_models_reference (
			model_name String,
			temp_warning_threshold_f Float64,
			temp_critical_threshold_f Float64,
			power_warning_threshold_w Float64,
			power_critical_threshold_w Float64
		) ENGINE = ReplacingMergeTree()
		ORDER BY model_name
	`

	// FleetHealthScoredTableSQL creates the scored fleet table written by the risk model
	FleetHealthScoredTableSQL = `
		CREATE TABLE IF NOT EXISTS fleet_health_scored (
			device_id String,
			region String,
			hospital_name String,
			last_ping DateTime64(3),
			cpu_load Float64,
			voltage Float64,
			memory_usage Float64,
			temperature Float64,
			uptime_hours Float64,
			failure_probability Float64,
			predicted_failure_type String,
			latitude Float64,
			longitude Float64,
			revenue_impact_usd Float64,
			is_offline Bool,
			scored_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(scored_at)
		ORDER BY device_id
	`

	// ProviderHealthScoredTableSQL creates the provider churn score table
	ProviderHealthScoredTableSQL = `
		CREATE TABLE IF NOT EXISTS provider_health_scored (
			facility_name String,
			facility_type String,
			city String,
			state String,
			account_manager String,
			churn_risk_score Float64,
			churn_risk_category String,
			annual_revenue_at_risk Float64,
			patient_engagement_score Float64,
			avg_patient_engagement Nullable(Float64),
			nps_score Float64,
			contract_status String,
			scored_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(scored_at)
		ORDER BY facility_name
	`

	// EngagementOutcomesTableSQL creates the patient outcome table
	EngagementOutcomesTableSQL = `
		CREATE TABLE IF NOT EXISTS engagement_outcomes (
			patient_id String,
			engagement_tier LowCardinality(String),
			outcome_type LowCardinality(String),
			primary_condition LowCardinality(String),
			is_improved Bool,
			measured_at Date
		) ENGINE = MergeTree()
		ORDER BY (outcome_type, patient_id)
	`

	// ChurnModelValidationTableSQL records back-test accuracy of the churn model
	ChurnModelValidationTableSQL = `
		CREATE TABLE IF NOT EXISTS churn_model_validation (
			validated_at DateTime64(3),
			accuracy_pct Float64
		) ENGINE = MergeTree()
		ORDER BY validated_at
	`

	// RunbookDocumentsTableSQL creates the repair runbook corpus with embeddings
	RunbookDocumentsTableSQL = `
		CREATE TABLE IF NOT EXISTS runbook_documents (
			doc_id String,
			title String,
			failure_category String,
			content String,
			severity String,
			estimated_repair_time String,
			safety_notes String,
			embedding Array(Float32)
		) ENGINE = ReplacingMergeTree()
		ORDER BY doc_id
	`
)

// Dashboard views over the tables above.
const (
	DeviceHealthSummaryViewSQL = `
		CREATE VIEW IF NOT EXISTS v_device_health_summary AS
		SELECT
			device_id, device_model, manufacturer, facility_name, facility_city,
			facility_state, environment_type, temperature_f, power_consumption_w, error_count,
			temp_status, power_status,
			multiIf(temp_status = 'CRITICAL' OR power_status = 'CRITICAL', 'CRITICAL',
				temp_status = 'WARNING' OR power_status = 'WARNING', 'WARNING', 'HEALTHY') AS overall_status,
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
				multiIf(t.temperature_f >= r.temp_critical_threshold_f, 'CRITICAL',
					t.temperature_f >= r.temp_warning_threshold_f, 'WARNING', 'NORMAL') AS temp_status,
				multiIf(t.power_consumption_w >= r.power_critical_threshold_w, 'CRITICAL',
					t.power_consumption_w >= r.power_warning_threshold_w, 'WARNING', 'NORMAL') AS power_status,
				t.last_report_time AS last_report_time,
				dateDiff('day', d.installation_date, today()) AS device_age_days,
				dateDiff('day', d.last_maintenance_date, today()) AS days_since_maintenance
			FROM device_inventory AS d FINAL
			INNER JOIN (
				SELECT
					device_id,
					argMax(temperature_f, timestamp) AS temperature_f,
					argMax(power_consumption_w, timestamp) AS power_consumption_w,
					argMax(error_count, timestamp) AS error_count,
					max(timestamp) AS last_report_time
				FROM screen_telemetry
				GROUP BY device_id
			) AS t ON d.device_id = t.device_id
			LEFT JOIN device_models_reference AS r ON d.device_model = r.model_name
			WHERE d.operational_status = 'Active'
		)
	`

	BaselineMetricsViewSQL = `
		CREATE VIEW IF NOT EXISTS v_baseline_metrics AS
		SELECT
			count() AS fleet_size,
			countIf(overall_status != 'HEALTHY') AS devices_requiring_review_today,
			count() * 288 AS charts_to_review_if_manual,
			countIf(overall_status = 'CRITICAL') AS devices_critical
		FROM v_device_health_summary
	`

	FleetHealthMetricsViewSQL = `
		CREATE VIEW IF NOT EXISTS vw_fleet_health_metrics AS
		SELECT
			count() AS total_devices,
			countIf(failure_probability > 0.85) AS critical_devices,
			countIf(failure_probability > 0.70) AS at_risk_devices,
			avg(failure_probability) AS avg_failure_probability,
			sumIf(revenue_impact_usd, failure_probability > 0.85) AS revenue_at_risk_usd,
			countIf(is_offline) AS offline_devices
		FROM fleet_health_scored FINAL
	`

	RegionalHealthViewSQL = `
		CREATE VIEW IF NOT EXISTS vw_regional_health AS
		SELECT
			region,
			count() AS total_devices,
			countIf(failure_probability > 0.85) AS critical_count,
			avg(failure_probability) AS avg_failure_prob,
			sumIf(revenue_impact_usd, failure_probability > 0.70) AS revenue_at_risk
		FROM fleet_health_scored FINAL
		GROUP BY region
	`

	FailureTypeAnalysisViewSQL = `
		CREATE VIEW IF NOT EXISTS vw_failure_type_analysis AS
		SELECT
			predicted_failure_type,
			count() AS device_count,
			avg(failure_probability) AS avg_probability
		FROM fleet_health_scored FINAL
		WHERE failure_probability > 0.70
		GROUP BY predicted_failure_type
	`

	ProviderHealthViewSQL = `
		CREATE VIEW IF NOT EXISTS v_provider_health AS
		SELECT
			facility_name, facility_type, city, state, account_manager,
			churn_risk_score, churn_risk_category, annual_revenue_at_risk,
			patient_engagement_score, avg_patient_engagement, nps_score, contract_status
		FROM provider_health_scored FINAL
	`

	EngagementOutcomesViewSQL = `
		CREATE VIEW IF NOT EXISTS v_engagement_outcomes_correlation AS
		SELECT engagement_tier, outcome_type, primary_condition, is_improved
		FROM engagement_outcomes
	`

	EngagementROIViewSQL = `
		CREATE VIEW IF NOT EXISTS v_engagement_roi AS
		SELECT
			sumIf(annual_revenue_at_risk, churn_risk_score >= 60) AS annual_at_risk_revenue,
			countIf(churn_risk_score >= 60) AS at_risk_providers,
			count() AS total_providers,
			(SELECT argMax(accuracy_pct, validated_at) FROM churn_model_validation) AS churn_prediction_accuracy_pct
		FROM provider_health_scored FINAL
	`
)

// AllTables returns all table creation statements
func AllTables() []Statement {
	return []Statement{
		{"device_inventory", DeviceInventoryTableSQL},
		{"screen_telemetry", ScreenTelemetryTableSQL},
		{"device_models_reference", DeviceModelsReferenceTableSQL},
		{"fleet_health_scored", FleetHealthScoredTableSQL},
		{"provider_health_scored", ProviderHealthScoredTableSQL},
		{"engagement_outcomes", EngagementOutcomesTableSQL},
		{"churn_model_validation", ChurnModelValidationTableSQL},
		{"runbook_documents", RunbookDocumentsTableSQL},
	}
}

// AllViews returns view creation statements in dependency order
func AllViews() []Statement {
	return []Statement{
		{"v_device_health_summary", DeviceHealthSummaryViewSQL},
		{"v_baseline_metrics", BaselineMetricsViewSQL},
		{"vw_fleet_health_metrics", FleetHealthMetricsViewSQL},
		{"vw_regional_health", RegionalHealthViewSQL},
		{"vw_failure_type_analysis", FailureTypeAnalysisViewSQL},
		{"v_provider_health", ProviderHealthViewSQL},
		{"v_engagement_outcomes_correlation", EngagementOutcomesViewSQL},
		{"v_engagement_roi", EngagementROIViewSQL},
	}
}
