package migrations

import "time"

// RetentionPolicies bounds the time series tables and adds hourly rollups.
var RetentionPolicies = &Migration{
	ID:   "002_retention_policies",
	Name: "002_retention_policies",
	UpSQL: `
	SELECT add_retention_policy('location_reports', INTERVAL '30 days');
	SELECT add_retention_policy('status_events', INTERVAL '30 days');
	SELECT add_retention_policy('system_stats', INTERVAL '90 days');

	CREATE MATERIALIZED VIEW IF NOT EXISTS location_reports_hourly
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 hour', time) AS hour,
		broadcaster,
		COUNT(*) AS report_count,
		MAX(geo_altitude) AS max_geo_altitude,
		MAX(horizontal_speed) AS max_horizontal_speed
	FROM location_reports
	GROUP BY hour, broadcaster
	WITH NO DATA;

	CREATE MATERIALIZED VIEW IF NOT EXISTS system_stats_daily
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 day', time) AS day,
		MAX(scans_completed) AS scans_completed,
		MAX(scans_failed) AS scans_failed,
		MAX(advertisements) AS advertisements,
		MAX(decoded_messages) AS decoded_messages,
		MAX(decode_anomalies) AS decode_anomalies
	FROM system_stats
	GROUP BY day
	WITH NO DATA;
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS system_stats_daily;
	DROP MATERIALIZED VIEW IF EXISTS location_reports_hourly;
	SELECT remove_retention_policy('system_stats');
	SELECT remove_retention_policy('status_events');
	SELECT remove_retention_policy('location_reports');
	`,
	CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
}
