package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hydrocloud/hydro-core/internal/infrastructure/config"
	"github.com/hydrocloud/hydro-core/internal/store"
	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

// fakeInflux answers the subset of the v2 HTTP API the store uses.
type fakeInflux struct {
	mu         sync.Mutex
	writes     []string
	queries    []string
	writeCode  int
	queryCSV   string
	unhealthy  bool
	writeQuery string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/ping":
		if f.unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.writes = append(f.writes, string(body))
		f.writeQuery = r.URL.RawQuery
		if f.writeCode != 0 {
			w.WriteHeader(f.writeCode)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/query":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.queries = append(f.queries, string(body))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(f.queryCSV))
	default:
		http.NotFound(w, r)
	}
}

func newFakeStore(t *testing.T, f *fakeInflux) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := Connect(context.Background(), config.InfluxDBConfig{
		URL:    srv.URL,
		Token:  "test-token",
		Org:    "hydro",
		Bucket: "sensors",
	}, "hydro-001")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // Test cleanup
	return s
}

func TestConnect_Disabled(t *testing.T) {
	if _, err := Connect(context.Background(), config.InfluxDBConfig{}, "x"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{URL: "http://127.0.0.1:1", Timeout: 1}, "x")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{unhealthy: true})
	defer srv.Close()

	_, err := Connect(context.Background(), config.InfluxDBConfig{URL: srv.URL}, "x")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestStore_AppendWritesLineProtocol(t *testing.T) {
	f := &fakeInflux{}
	s := newFakeStore(t, f)

	rec := telemetry.SummaryRecord{
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC),
		WaterLevel: 0.6,
		WaterTemp:  25,
		EC:         1.3,
		TDS:        310,
		PH:         6.9,
	}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 1 {
		t.Fatalf("server received %d writes, want 1", len(f.writes))
	}
	line := f.writes[0]
	for _, want := range []string{"sensor_data,site=hydro-001 ", "ph=6.9", "water_temp=25", "tds=310", "1772366415000000000"} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !strings.Contains(f.writeQuery, "bucket=sensors") || !strings.Contains(f.writeQuery, "org=hydro") {
		t.Errorf("write query = %q", f.writeQuery)
	}
}

func TestStore_AppendRejected(t *testing.T) {
	s := newFakeStore(t, &fakeInflux{writeCode: http.StatusBadRequest})

	err := s.Append(context.Background(), telemetry.SummaryRecord{Timestamp: time.Now()})
	if !errors.Is(err, store.ErrStoreUnavailable) || !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Append() error = %v, want ErrStoreUnavailable and ErrWriteFailed", err)
	}
}

func TestStore_Query(t *testing.T) {
	f := &fakeInflux{queryCSV: "#datatype,string,long,dateTime:RFC3339,double\r\n" +
		"#group,false,false,false,false\r\n" +
		"#default,_result,,,\r\n" +
		",result,table,_time,_value\r\n" +
		",,0,2026-03-01T12:00:15Z,6.9\r\n" +
		",,0,2026-03-01T12:00:30Z,7.1\r\n" +
		"\r\n"}
	s := newFakeStore(t, f)

	series, err := s.Query(context.Background(), "PH", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if series.Metric != telemetry.PH || series.Len() != 2 {
		t.Fatalf("series = %+v", series)
	}
	if series.Points[0].Value != 6.9 || series.Points[1].Value != 7.1 {
		t.Errorf("values = %+v", series.Points)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) != 1 || !strings.Contains(f.queries[0], `r._field == \"ph\"`) {
		t.Errorf("queries = %v", f.queries)
	}
}

func TestStore_QueryInvalidMetric(t *testing.T) {
	s := newFakeStore(t, &fakeInflux{})

	if _, err := s.Query(context.Background(), "humidity", time.Time{}); !errors.Is(err, store.ErrInvalidMetric) {
		t.Errorf("Query() error = %v, want ErrInvalidMetric", err)
	}
}

func TestStore_Closed(t *testing.T) {
	s := newFakeStore(t, &fakeInflux{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Append(ctx, telemetry.SummaryRecord{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Append() after Close error = %v, want ErrNotConnected", err)
	}
	if _, err := s.Query(ctx, "ph", time.Time{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Query() after Close error = %v, want ErrNotConnected", err)
	}
	if err := s.HealthCheck(ctx); !errors.Is(err, store.ErrStoreUnavailable) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrStoreUnavailable", err)
	}

	var nilStore *Store
	if err := nilStore.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestStore_HealthCheck(t *testing.T) {
	s := newFakeStore(t, &fakeInflux{})
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestBuildFluxQuery(t *testing.T) {
	q := buildFluxQuery("sensors", "sensor_data", "hydro-001", telemetry.WaterTemp,
		time.Date(2026, 3, 1, 12, 0, 0, 500, time.FixedZone("X", 3600)))

	for _, want := range []string{
		`from(bucket: "sensors")`,
		`range(start: 2026-03-01T11:00:00.0000005Z)`,
		`r._measurement == "sensor_data"`,
		`r.site == "hydro-001"`,
		`r._field == "water_temp"`,
		`sort(columns: ["_time"])`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestBuildFluxQuery_ZeroSince(t *testing.T) {
	for _, since := range []time.Time{
		{},
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		q := buildFluxQuery("sensors", "sensor_data", "hydro-001", telemetry.PH, since)
		if !strings.Contains(q, `range(start: 1970-01-01T00:00:00Z)`) {
			t.Errorf("since %v: query start not clamped to epoch:\n%s", since, q)
		}
	}
}

func TestBuildFluxQuery_QuotesInput(t *testing.T) {
	q := buildFluxQuery(`bad") |> drop()`, "m", `x"y`, telemetry.PH, time.Time{})
	if strings.Contains(q, `bad") |> drop()`) {
		t.Errorf("bucket not escaped:\n%s", q)
	}
	if !strings.Contains(q, `r.site == "x\"y"`) {
		t.Errorf("site not escaped:\n%s", q)
	}
}

func TestPointFor(t *testing.T) {
	s := &Store{measurement: "sensor_data", site: "hydro-001"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	line := write.PointToLineProtocol(s.pointFor(telemetry.SummaryRecord{Timestamp: at, EC: 1.5}), time.Second)
	if !strings.HasPrefix(line, "sensor_data,site=hydro-001 ") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "ec=1.5") || !strings.Contains(line, "ph=0") {
		t.Errorf("line = %q, want all five fields", line)
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{6.9, 6.9, true},
		{int64(7), 7, true},
		{uint64(8), 8, true},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := toFloat(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("toFloat(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// Integration tests run against a real InfluxDB (docker compose up influxdb).

func integrationConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		URL:    "http://127.0.0.1:8086",
		Token:  "hydro-dev-token",
		Org:    "hydro",
		Bucket: "sensors",
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") != "" {
		return
	}
	s, err := Connect(context.Background(), integrationConfig(), "probe")
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	s.Close() //nolint:errcheck // Probe only
}

func TestIntegration_AppendThenQuery(t *testing.T) {
	skipIfNoInfluxDB(t)
	ctx := context.Background()

	site := "itest-" + time.Now().Format("150405.000000000")
	s, err := Connect(ctx, integrationConfig(), site)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Close() //nolint:errcheck // Test cleanup

	start := time.Now().UTC().Truncate(time.Second)
	for i, ph := range []float64{6.8, 6.9, 7.0} {
		rec := telemetry.SummaryRecord{Timestamp: start.Add(time.Duration(i) * time.Second), PH: ph}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	series, err := s.Query(ctx, "ph", start.Add(time.Second))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", series.Len())
	}
	if series.Points[0].Value != 6.9 || series.Points[1].Value != 7.0 {
		t.Errorf("points = %+v", series.Points)
	}
}
