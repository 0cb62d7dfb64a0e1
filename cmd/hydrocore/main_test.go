package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydrocloud/hydro-core/internal/infrastructure/database"
	"github.com/hydrocloud/hydro-core/internal/store"
)

const sensorLine = "WATER_LEVEL:0.5,WATER_TEMP:24.0,EC:1.2,TDS:300,PH:6.8\n"

// serveSensor accepts connections and streams sensorLine to each until the
// listener is closed or the peer goes away.
func serveSensor(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				for {
					if _, err := conn.Write([]byte(sensorLine)); err != nil {
						return
					}
					time.Sleep(20 * time.Millisecond)
				}
			}()
		}
	}()

	return ln.Addr().String()
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("HYDRO_CONFIG", path)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HYDRO_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationFailure verifies configuration errors are fatal.
func TestRun_ValidationFailure(t *testing.T) {
	writeConfig(t, `
link:
  address: ""
store:
  backend: cassandra
`)

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail validation")
	}
}

// TestRun_InvalidLinkAddress verifies an unusable address fails at startup.
func TestRun_InvalidLinkAddress(t *testing.T) {
	writeConfig(t, fmt.Sprintf(`
link:
  address: "udp://127.0.0.1:9"
database:
  path: %q
api:
  enabled: false
logging:
  level: error
  output: stderr
`, filepath.Join(t.TempDir(), "hydro.db")))

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should reject a udp:// link address")
	}
}

// TestRun_InfluxDBUnreachable verifies a store that cannot be constructed is fatal.
func TestRun_InfluxDBUnreachable(t *testing.T) {
	writeConfig(t, `
store:
  backend: influxdb
influxdb:
  url: "http://127.0.0.1:1"
  token: "t"
  org: "hydro"
  bucket: "sensors"
  timeout: 1
api:
  enabled: false
logging:
  level: error
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when InfluxDB is unreachable")
	}
}

// TestRun_EndToEnd streams sensor lines over TCP and checks that summary
// records reach the SQLite store.
func TestRun_EndToEnd(t *testing.T) {
	addr := serveSensor(t)
	dbPath := filepath.Join(t.TempDir(), "hydro.db")

	writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
link:
  address: "tcp://%s"
  read_timeout: 100ms
  settle_delay: 0s
acquisition:
  interval: 150ms
  reconnect_backoff: 50ms
  store_timeout: 1s
  flush_on_shutdown: true
store:
  backend: sqlite
database:
  path: %q
mqtt:
  enabled: false
api:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`, addr, dbPath))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	db, err := database.Open(context.Background(), database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db.Close()

	series, err := store.NewSQLiteStore(db.DB).Query(context.Background(), "ph", time.Time{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if series.Len() < 2 {
		t.Fatalf("stored %d records, want at least 2", series.Len())
	}
	for ts, v := range series.All() {
		if math.Abs(v-6.8) > 1e-9 {
			t.Errorf("ph at %v = %v, want 6.8", ts, v)
		}
	}
}

// TestGetConfigPath verifies HYDRO_CONFIG wins and the fallback is defaults.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("HYDRO_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}

	t.Setenv("HYDRO_CONFIG", "")
	t.Chdir(t.TempDir())
	if got := getConfigPath(); got != "" {
		t.Errorf("getConfigPath() without file = %q, want empty", got)
	}

	if err := os.MkdirAll("configs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(defaultConfigPath, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}
