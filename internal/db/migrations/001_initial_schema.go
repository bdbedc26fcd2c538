package migrations

import "time"

// InitialSchema creates the scan session, status, location and statistics tables.
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		CREATE EXTENSION IF NOT EXISTS timescaledb;

		CREATE TABLE IF NOT EXISTS scan_sessions (
			session_id TEXT PRIMARY KEY,
			interface_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_scan_sessions_started_at ON scan_sessions (started_at DESC);

		CREATE TABLE IF NOT EXISTS status_events (
			time TIMESTAMPTZ NOT NULL,
			session_id TEXT,
			level TEXT NOT NULL,
			message TEXT NOT NULL
		);
		SELECT create_hypertable('status_events', 'time');
		CREATE INDEX IF NOT EXISTS idx_status_events_session ON status_events (session_id, time DESC);

		-- NULL marks a value the broadcaster flagged as not provided.
		CREATE TABLE IF NOT EXISTS location_reports (
			time TIMESTAMPTZ NOT NULL,
			session_id TEXT,
			broadcaster TEXT NOT NULL,
			status TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			geo_altitude DOUBLE PRECISION,
			baro_altitude DOUBLE PRECISION,
			height DOUBLE PRECISION,
			direction DOUBLE PRECISION,
			horizontal_speed DOUBLE PRECISION,
			vertical_speed DOUBLE PRECISION NOT NULL
		);
		SELECT create_hypertable('location_reports', 'time');
		CREATE INDEX IF NOT EXISTS idx_location_reports_broadcaster ON location_reports (broadcaster, time DESC);

		CREATE TABLE IF NOT EXISTS system_stats (
			time TIMESTAMPTZ NOT NULL,
			scans_completed BIGINT NOT NULL,
			scans_failed BIGINT NOT NULL,
			advertisements BIGINT NOT NULL,
			decoded_messages BIGINT NOT NULL,
			decode_anomalies BIGINT NOT NULL,
			kind_counts BIGINT[] NOT NULL,
			active_broadcasters BIGINT NOT NULL,
			uptime_seconds BIGINT NOT NULL
		);
		SELECT create_hypertable('system_stats', 'time');
		CREATE INDEX IF NOT EXISTS idx_system_stats_time ON system_stats (time DESC);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS system_stats;
		DROP TABLE IF EXISTS location_reports;
		DROP TABLE IF EXISTS status_events;
		DROP TABLE IF EXISTS scan_sessions;
	`,
	CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
}
