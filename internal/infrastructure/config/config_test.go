package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "greenhouse-2"
link:
  address: "tcp://192.168.1.50:4000"
  read_timeout: 500ms
acquisition:
  interval: 1m
  max_reconnect_backoff: 30s
  flush_on_shutdown: true
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
  qos: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "greenhouse-2" {
		t.Errorf("Site.ID = %q", cfg.Site.ID)
	}
	if cfg.Link.Address != "tcp://192.168.1.50:4000" {
		t.Errorf("Link.Address = %q", cfg.Link.Address)
	}
	if cfg.Link.ReadTimeout != 500*time.Millisecond {
		t.Errorf("Link.ReadTimeout = %v, want 500ms", cfg.Link.ReadTimeout)
	}
	if cfg.Acquisition.Interval != time.Minute {
		t.Errorf("Acquisition.Interval = %v, want 1m", cfg.Acquisition.Interval)
	}
	if cfg.Acquisition.MaxReconnectBackoff != 30*time.Second {
		t.Errorf("Acquisition.MaxReconnectBackoff = %v", cfg.Acquisition.MaxReconnectBackoff)
	}
	if !cfg.Acquisition.FlushOnShutdown {
		t.Error("Acquisition.FlushOnShutdown = false, want true")
	}
	// Keys not in the file keep their defaults.
	if cfg.Acquisition.ReconnectBackoff != 2*time.Second {
		t.Errorf("Acquisition.ReconnectBackoff = %v, want default 2s", cfg.Acquisition.ReconnectBackoff)
	}
	if cfg.Link.BaudRate != 9600 {
		t.Errorf("Link.BaudRate = %d, want default 9600", cfg.Link.BaudRate)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.QoS != 0 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "acquisition:\n  interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for unparseable duration, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{
			name:    "missing site id",
			modify:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "missing link address",
			modify:  func(c *Config) { c.Link.Address = " " },
			wantErr: "link.address",
		},
		{
			name:    "zero interval",
			modify:  func(c *Config) { c.Acquisition.Interval = 0 },
			wantErr: "acquisition.interval",
		},
		{
			name:    "zero read timeout",
			modify:  func(c *Config) { c.Link.ReadTimeout = 0 },
			wantErr: "link.read_timeout",
		},
		{
			name:    "zero store timeout",
			modify:  func(c *Config) { c.Acquisition.StoreTimeout = 0 },
			wantErr: "acquisition.store_timeout",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Store.Backend = "csv" },
			wantErr: "store.backend",
		},
		{
			name: "influxdb without token",
			modify: func(c *Config) {
				c.Store.Backend = BackendInfluxDB
			},
			wantErr: "influxdb.token",
		},
		{
			name: "influxdb complete",
			modify: func(c *Config) {
				c.Store.Backend = BackendInfluxDB
				c.InfluxDB.Token = "secret"
			},
		},
		{
			name: "mqtt qos out of range",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:   "mqtt qos ignored when disabled",
			modify: func(c *Config) { c.MQTT.QoS = 3 },
		},
		{
			name:    "api port out of range",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Site.ID = ""
	cfg.Acquisition.Interval = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "acquisition.interval") {
		t.Errorf("Validate() error = %v, want both problems reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := APIConfig{Timeouts: APITimeoutConfig{Read: 10, Write: 20, Idle: 30}}

	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v", got)
	}
	if got := cfg.GetIdleTimeout(); got != 30*time.Second {
		t.Errorf("GetIdleTimeout() = %v", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HYDRO_LINK_ADDRESS", "/dev/ttyUSB1")
	t.Setenv("HYDRO_DATABASE_PATH", "/var/lib/hydro/hydro.db")
	t.Setenv("HYDRO_INFLUXDB_TOKEN", "influx-token")
	t.Setenv("HYDRO_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HYDRO_MQTT_USERNAME", "user")
	t.Setenv("HYDRO_MQTT_PASSWORD", "pass")
	t.Setenv("HYDRO_API_HOST", "127.0.0.1")

	cfg := Default()
	applyEnvOverrides(cfg)

	checks := map[string][2]string{
		"link.address":       {cfg.Link.Address, "/dev/ttyUSB1"},
		"database.path":      {cfg.Database.Path, "/var/lib/hydro/hydro.db"},
		"influxdb.token":     {cfg.InfluxDB.Token, "influx-token"},
		"mqtt.broker.host":   {cfg.MQTT.Broker.Host, "mqtt.example.com"},
		"mqtt.auth.username": {cfg.MQTT.Auth.Username, "user"},
		"mqtt.auth.password": {cfg.MQTT.Auth.Password, "pass"},
		"api.host":           {cfg.API.Host, "127.0.0.1"},
	}
	for key, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", key, c[0], c[1])
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Site.ID != "hydro-001" {
		t.Errorf("Site.ID = %q", cfg.Site.ID)
	}
	if cfg.Link.Address != "/dev/ttyACM0" || cfg.Link.SettleDelay != 2*time.Second {
		t.Errorf("Link = %+v", cfg.Link)
	}
	if cfg.Acquisition.Interval != 15*time.Second || cfg.Acquisition.FlushOnShutdown {
		t.Errorf("Acquisition = %+v", cfg.Acquisition)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
	if !cfg.API.Enabled || cfg.API.Port != 8080 {
		t.Errorf("API = %+v", cfg.API)
	}
}
