package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hydrocloud/hydro-core/internal/infrastructure/config"
	"github.com/hydrocloud/hydro-core/internal/store"
	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultMeasurement    = "sensor_data"
	defaultHTTPTimeout    = 10 // seconds

	// siteTag is the tag key carrying the site identifier.
	siteTag = "site"
)

// Store writes Summary Records to InfluxDB and queries them back.
//
// It implements store.Store.
type Store struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI

	bucket      string
	measurement string
	site        string

	connected bool
	mu        sync.RWMutex
}

// Connect creates the client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - cfg: InfluxDB section of config.yaml
//   - site: Site identifier, written as the site tag
//
// Returns:
//   - *Store: Connected store
//   - error: ErrDisabled without a URL, ErrConnectionFailed if the ping fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig, site string) (*Store, error) {
	if cfg.URL == "" {
		return nil, ErrDisabled
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = defaultMeasurement
	}

	// #nosec G115 -- timeout validated positive above
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(timeout)))

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Store{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: measurement,
		site:        site,
		connected:   true,
	}, nil
}

// Append writes one point and waits for the server to accept it.
func (s *Store) Append(ctx context.Context, rec telemetry.SummaryRecord) error {
	if !s.IsConnected() {
		return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, ErrNotConnected)
	}

	if err := s.writeAPI.WritePoint(ctx, s.pointFor(rec)); err != nil {
		return fmt.Errorf("%w: %w: %w", store.ErrStoreUnavailable, ErrWriteFailed, err)
	}
	return nil
}

// pointFor converts a record to a line-protocol point.
func (s *Store) pointFor(rec telemetry.SummaryRecord) *write.Point {
	return write.NewPoint(
		s.measurement,
		map[string]string{siteTag: s.site},
		rec.Fields(),
		rec.Timestamp,
	)
}

// Query returns one field for this site from since onwards, oldest first.
func (s *Store) Query(ctx context.Context, metric string, since time.Time) (store.Series, error) {
	m, err := store.ResolveMetric(metric)
	if err != nil {
		return store.Series{}, err
	}
	if !s.IsConnected() {
		return store.Series{}, fmt.Errorf("%w: %w", store.ErrStoreUnavailable, ErrNotConnected)
	}

	result, err := s.queryAPI.Query(ctx, buildFluxQuery(s.bucket, s.measurement, s.site, m, since))
	if err != nil {
		return store.Series{}, fmt.Errorf("%w: %w: %w", store.ErrStoreUnavailable, ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // Read-only result

	series := store.Series{Metric: m}
	for result.Next() {
		rec := result.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		series.Points = append(series.Points, store.Point{Timestamp: rec.Time(), Value: v})
	}
	if err := result.Err(); err != nil {
		return store.Series{}, fmt.Errorf("%w: %w: %w", store.ErrStoreUnavailable, ErrQueryFailed, err)
	}

	return series, nil
}

// fluxEpoch is the earliest range start rendered. InfluxDB timestamps are
// int64 nanoseconds, so a zero time.Time cannot be represented.
var fluxEpoch = time.Unix(0, 0).UTC()

// buildFluxQuery renders the range query for one field.
// range() has an inclusive start, matching Query's since semantics.
// A zero or pre-epoch since means the whole history.
func buildFluxQuery(bucket, measurement, site string, m telemetry.Metric, since time.Time) string {
	if since.Before(fluxEpoch) {
		since = fluxEpoch
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s)\n", since.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r.%s == %s and r._field == %s)\n",
		strconv.Quote(measurement), siteTag, strconv.Quote(site), strconv.Quote(m.String()))
	b.WriteString(`  |> sort(columns: ["_time"])`)
	return b.String()
}

// toFloat accepts the numeric types Flux may return for a field.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	if !s.IsConnected() {
		return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, ErrNotConnected)
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := s.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("%w: influxdb ping: %w", store.ErrStoreUnavailable, err)
	}
	if !healthy {
		return fmt.Errorf("%w: influxdb not healthy", store.ErrStoreUnavailable)
	}
	return nil
}

// IsConnected reports whether Close has not yet been called.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close releases the client. Safe to call more than once.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}

	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if wasConnected {
		s.client.Close()
	}
	return nil
}
