package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// DB exposes the underlying handle for the migrator.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// CreateSession records the start of a scan session
func (c *Client) CreateSession(s *types.ScanSession) error {
	query := `
		INSERT INTO scan_sessions (session_id, interface_id, started_at)
		VALUES ($1, $2, $3)
	`
	_, err := c.db.Exec(query, s.SessionID, s.InterfaceID, s.StartedAt)
	return err
}

// EndSession records the end of a scan session
func (c *Client) EndSession(sessionID string, endedAt time.Time) error {
	query := `UPDATE scan_sessions SET ended_at = $1 WHERE session_id = $2`
	res, err := c.db.Exec(query, endedAt, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("scan session %s not found", sessionID)
	}
	return nil
}

// GetSessions returns the most recent scan sessions, newest first
func (c *Client) GetSessions(limit int) ([]*types.ScanSession, error) {
	query := `
		SELECT session_id, interface_id, started_at, ended_at
		FROM scan_sessions
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*types.ScanSession
	for rows.Next() {
		var (
			s     types.ScanSession
			ended sql.NullTime
		)
		if err := rows.Scan(&s.SessionID, &s.InterfaceID, &s.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.EndedAt = ended.Time
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// StoreStatusEvent stores one status line
func (c *Client) StoreStatusEvent(e *types.StatusEvent) error {
	query := `
		INSERT INTO status_events (time, session_id, level, message)
		VALUES ($1, $2, $3, $4)
	`
	_, err := c.db.Exec(query, e.Time, nullString(e.SessionID), e.Level, e.Message)
	return err
}

// StoreLocationReport stores a flattened Location message
func (c *Client) StoreLocationReport(r *types.LocationReport) error {
	query := `
		INSERT INTO location_reports (
			time, session_id, broadcaster, status,
			latitude, longitude, geo_altitude, baro_altitude, height,
			direction, horizontal_speed, vertical_speed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := c.db.Exec(query,
		r.Time, nullString(r.SessionID), r.Broadcaster, r.Status,
		r.Latitude, r.Longitude, r.GeoAltitude, r.BaroAltitude, r.Height,
		r.Direction, r.HorizontalSpeed, r.VerticalSpeed,
	)
	return err
}

// NewLocationReport flattens loc for storage. Values carrying a "not
// provided" sentinel become nil.
func NewLocationReport(sessionID, broadcaster string, loc *remoteid.Location, at time.Time) *types.LocationReport {
	return &types.LocationReport{
		Time:            at,
		SessionID:       sessionID,
		Broadcaster:     broadcaster,
		Status:          loc.Status.String(),
		Latitude:        valid(remoteid.Coordinate(loc.Latitude)),
		Longitude:       valid(remoteid.Coordinate(loc.Longitude)),
		GeoAltitude:     valid(remoteid.Altitude(loc.GeoAltitude)),
		BaroAltitude:    valid(remoteid.Altitude(loc.BaroAltitude)),
		Height:          valid(remoteid.Altitude(loc.Height)),
		Direction:       valid(remoteid.Direction(loc.Direction)),
		HorizontalSpeed: valid(remoteid.HorizontalSpeed(loc.HorizontalSpeed)),
		VerticalSpeed:   loc.VerticalSpeed,
	}
}

func valid(v remoteid.Value) *float64 {
	if !v.Valid() {
		return nil
	}
	n := v.Number
	return &n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// StoreSystemStats stores system statistics
func (c *Client) StoreSystemStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO system_stats (
			time, scans_completed, scans_failed, advertisements,
			decoded_messages, decode_anomalies, kind_counts,
			active_broadcasters, uptime_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	kindCounts, ok := stats["kind_counts"].([7]uint64)
	if !ok {
		return fmt.Errorf("kind_counts missing from stats")
	}
	kindArray := make([]int64, len(kindCounts))
	for i, v := range kindCounts {
		kindArray[i] = int64(v)
	}

	uptime, _ := stats["uptime"].(time.Duration)

	_, err := c.db.Exec(query,
		time.Now(),
		stats["scans_completed"],
		stats["scans_failed"],
		stats["advertisements"],
		stats["decoded_messages"],
		stats["decode_anomalies"],
		pq.Array(kindArray),
		stats["active_broadcasters"],
		int64(uptime.Seconds()),
	)

	return err
}

// GetSystemStats retrieves system statistics for a time range
func (c *Client) GetSystemStats(start, end time.Time) ([]map[string]interface{}, error) {
	query := `
		SELECT
			time, scans_completed, scans_failed, advertisements,
			decoded_messages, decode_anomalies, kind_counts,
			active_broadcasters, uptime_seconds
		FROM system_stats
		WHERE time BETWEEN $1 AND $2
		ORDER BY time DESC
	`

	rows, err := c.db.Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []map[string]interface{}
	for rows.Next() {
		var (
			timestamp          time.Time
			scansCompleted     int64
			scansFailed        int64
			advertisements     int64
			decodedMessages    int64
			decodeAnomalies    int64
			kindCounts         []int64
			activeBroadcasters int64
			uptimeSeconds      int64
		)

		if err := rows.Scan(
			&timestamp,
			&scansCompleted,
			&scansFailed,
			&advertisements,
			&decodedMessages,
			&decodeAnomalies,
			pq.Array(&kindCounts),
			&activeBroadcasters,
			&uptimeSeconds,
		); err != nil {
			return nil, err
		}

		counts := [7]uint64{}
		for i, v := range kindCounts {
			if i < len(counts) {
				counts[i] = uint64(v)
			}
		}

		stats = append(stats, map[string]interface{}{
			"time":                timestamp,
			"scans_completed":     scansCompleted,
			"scans_failed":        scansFailed,
			"advertisements":      advertisements,
			"decoded_messages":    decodedMessages,
			"decode_anomalies":    decodeAnomalies,
			"kind_counts":         counts,
			"active_broadcasters": activeBroadcasters,
			"uptime":              time.Duration(uptimeSeconds) * time.Second,
		})
	}

	return stats, rows.Err()
}
