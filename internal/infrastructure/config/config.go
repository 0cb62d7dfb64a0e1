package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendInfluxDB = "influxdb"
)

// Config is the root configuration structure.
// It is loaded from YAML and can be overridden by HYDRO_* environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Link        LinkConfig        `yaml:"link"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Store       StoreConfig       `yaml:"store"`
	Database    DatabaseConfig    `yaml:"database"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SiteConfig identifies the installation. The ID appears in MQTT topics and
// as the InfluxDB site tag.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LinkConfig describes the connection to the sensor array.
type LinkConfig struct {
	// Address is a serial device path, a serial:// URL or tcp://host:port.
	Address  string `yaml:"address"`
	BaudRate int    `yaml:"baud_rate"`

	// ReadTimeout bounds each line read.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// SettleDelay is the wait after opening while the board resets.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// AcquisitionConfig tunes the acquisition loop.
type AcquisitionConfig struct {
	// Interval is the aggregation window length.
	Interval time.Duration `yaml:"interval"`

	// ReconnectBackoff is the delay after a failed open.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// MaxReconnectBackoff, when greater than ReconnectBackoff, makes the
	// delay grow by 1.5x per consecutive failure up to this cap.
	MaxReconnectBackoff time.Duration `yaml:"max_reconnect_backoff"`

	// StoreTimeout bounds each append to the store.
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// FlushOnShutdown persists the partial window when the service stops.
	FlushOnShutdown bool `yaml:"flush_on_shutdown"`
}

// StoreConfig selects the time-series backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`

	// Timeout is the HTTP request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the read-only HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists origins allowed to call the API from a browser dashboard.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, applies HYDRO_* environment
// overrides and validates the result.
//
// An empty path skips the file and uses defaults plus environment.
//
// Parameters:
//   - path: Path to config.yaml, or ""
//
// Returns:
//   - *Config: Validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "hydro-001",
			Name: "Hydroponics",
		},
		Link: LinkConfig{
			Address:     "/dev/ttyACM0",
			BaudRate:    9600,
			ReadTimeout: time.Second,
			SettleDelay: 2 * time.Second,
		},
		Acquisition: AcquisitionConfig{
			Interval:         15 * time.Second,
			ReconnectBackoff: 2 * time.Second,
			StoreTimeout:     5 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/hydro.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			URL:         "http://localhost:8086",
			Org:         "hydro",
			Bucket:      "sensors",
			Measurement: "sensor_data",
			Timeout:     10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hydrocore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides lets deployments inject secrets and host-specific paths
// without editing the file.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"HYDRO_LINK_ADDRESS", &cfg.Link.Address},
		{"HYDRO_DATABASE_PATH", &cfg.Database.Path},
		{"HYDRO_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"HYDRO_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"HYDRO_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"HYDRO_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"HYDRO_API_HOST", &cfg.API.Host},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if strings.TrimSpace(c.Link.Address) == "" {
		errs = append(errs, "link.address is required")
	}
	if c.Link.BaudRate <= 0 {
		errs = append(errs, "link.baud_rate must be positive")
	}
	if c.Link.ReadTimeout <= 0 {
		errs = append(errs, "link.read_timeout must be positive")
	}
	if c.Link.SettleDelay < 0 {
		errs = append(errs, "link.settle_delay must not be negative")
	}

	if c.Acquisition.Interval <= 0 {
		errs = append(errs, "acquisition.interval must be positive")
	}
	if c.Acquisition.ReconnectBackoff <= 0 {
		errs = append(errs, "acquisition.reconnect_backoff must be positive")
	}
	if c.Acquisition.MaxReconnectBackoff < 0 {
		errs = append(errs, "acquisition.max_reconnect_backoff must not be negative")
	}
	if c.Acquisition.StoreTimeout <= 0 {
		errs = append(errs, "acquisition.store_timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	case BackendInfluxDB:
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required for the influxdb backend")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required (set HYDRO_INFLUXDB_TOKEN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", BackendSQLite, BackendInfluxDB))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
