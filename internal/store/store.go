package store

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

// Store is an append-only time series of Summary Records.
type Store interface {
	// Append durably persists one record.
	Append(ctx context.Context, rec telemetry.SummaryRecord) error

	// Query returns the values of one metric for every record with a
	// timestamp >= since, in ascending timestamp order. Callers get that
	// metric's (timestamp, value) points, not whole Summary Records.
	Query(ctx context.Context, metric string, since time.Time) (Series, error)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Point is one (timestamp, value) pair of a Series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is the result of a Query: one metric over a time range.
type Series struct {
	Metric telemetry.Metric
	Points []Point
}

// All iterates the points in ascending timestamp order. The sequence can be
// ranged over any number of times.
func (s Series) All() iter.Seq2[time.Time, float64] {
	return func(yield func(time.Time, float64) bool) {
		for _, p := range s.Points {
			if !yield(p.Timestamp, p.Value) {
				return
			}
		}
	}
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Points)
}

// ResolveMetric maps a query name onto the Metric Set, case-insensitively.
//
// Returns:
//   - telemetry.Metric: The canonical metric
//   - error: ErrInvalidMetric (wrapped) for unknown names
func ResolveMetric(name string) (telemetry.Metric, error) {
	m, ok := telemetry.ParseMetric(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMetric, name)
	}
	return m, nil
}
