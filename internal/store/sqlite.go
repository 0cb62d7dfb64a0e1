package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

// TimestampLayout is the fixed-width UTC text form of stored timestamps.
// Every value has the same length, so string comparison orders by time.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// columns maps metrics onto sensor_data columns.
var columns = map[telemetry.Metric]string{
	telemetry.WaterLevel: "water_level",
	telemetry.WaterTemp:  "temperature",
	telemetry.EC:         "ec",
	telemetry.TDS:        "tds",
	telemetry.PH:         "ph",
}

const insertSQL = `
	INSERT INTO sensor_data (timestamp, ph, temperature, ec, tds, water_level)
	VALUES (?, ?, ?, ?, ?, ?)`

// SQLiteStore keeps the series in the sensor_data table.
//
// The schema comes from the embedded migrations; run database.Migrate before
// the first Append.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append inserts one row.
func (s *SQLiteStore) Append(ctx context.Context, rec telemetry.SummaryRecord) error {
	_, err := s.db.ExecContext(ctx, insertSQL,
		FormatTimestamp(rec.Timestamp),
		rec.PH,
		rec.WaterTemp,
		rec.EC,
		rec.TDS,
		rec.WaterLevel,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting summary: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Query selects one column for rows at or after since.
func (s *SQLiteStore) Query(ctx context.Context, metric string, since time.Time) (Series, error) {
	m, err := ResolveMetric(metric)
	if err != nil {
		return Series{}, err
	}

	// Column names come from the fixed map above, never from input.
	query := fmt.Sprintf(
		"SELECT timestamp, %s FROM sensor_data WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC",
		columns[m],
	)

	rows, err := s.db.QueryContext(ctx, query, FormatTimestamp(since))
	if err != nil {
		return Series{}, fmt.Errorf("%w: querying %s: %w", ErrStoreUnavailable, m, err)
	}
	defer rows.Close()

	series := Series{Metric: m}
	for rows.Next() {
		var ts string
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return Series{}, fmt.Errorf("%w: scanning %s: %w", ErrStoreUnavailable, m, err)
		}
		at, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			return Series{}, fmt.Errorf("%w: bad timestamp %q: %w", ErrStoreUnavailable, ts, err)
		}
		series.Points = append(series.Points, Point{Timestamp: at, Value: v})
	}
	if err := rows.Err(); err != nil {
		return Series{}, fmt.Errorf("%w: iterating %s: %w", ErrStoreUnavailable, m, err)
	}

	return series, nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
