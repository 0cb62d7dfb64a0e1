// hydrocore - hydroponics sensor acquisition service
//
// This is the main entry point. It reads key:value lines from the sensor
// array over serial (or a serial-over-TCP bridge), averages them over a fixed
// interval and appends one Summary Record per interval to the configured
// time-series store. Records can optionally be published over MQTT, and
// stored history is served read-only over HTTP alongside a live WebSocket
// stream of new records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/hydrocloud/hydro-core/migrations"

	"github.com/hydrocloud/hydro-core/internal/acquisition"
	"github.com/hydrocloud/hydro-core/internal/api"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/config"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/database"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/influxdb"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/logging"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/mqtt"
	"github.com/hydrocloud/hydro-core/internal/link"
	"github.com/hydrocloud/hydro-core/internal/metrics"
	"github.com/hydrocloud/hydro-core/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path, used when it exists and HYDRO_CONFIG is unset.
const defaultConfigPath = "configs/config.yaml"

// startupHealthTimeout bounds the store check before acquisition starts.
const startupHealthTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing a bootstrap failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hydrocore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"backend", cfg.Store.Backend,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store")
		if closeErr := closeStore(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()

	healthCtx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	err = st.HealthCheck(healthCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("store health check: %w", err)
	}

	sensor, err := link.New(link.Config{
		Address:     cfg.Link.Address,
		BaudRate:    cfg.Link.BaudRate,
		SettleDelay: cfg.Link.SettleDelay,
	})
	if err != nil {
		return fmt.Errorf("configuring sensor link: %w", err)
	}

	var forwarders []acquisition.Forwarder
	if mqttClient := connectMQTT(cfg, log); mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		forwarders = append(forwarders, mqttClient)
	}

	if cfg.API.Enabled {
		hub := api.NewHub(log.With("component", "stream"))
		go hub.Run(ctx)
		forwarders = append(forwarders, hub)

		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.With("component", "api"),
			Store:    st,
			Link:     sensor,
			Version:  version,
			Gatherer: reg,
			Metrics:  m,
			Hub:      hub,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		// The API is a convenience; acquisition runs without it.
		if startErr := server.Start(ctx); startErr != nil {
			log.Error("API server failed to start, continuing without it", "error", startErr)
		} else {
			defer func() {
				if closeErr := server.Close(); closeErr != nil {
					log.Error("error closing API server", "error", closeErr)
				}
			}()
		}
	}

	loop, err := acquisition.New(acquisition.Config{
		Interval:        cfg.Acquisition.Interval,
		ReadTimeout:     cfg.Link.ReadTimeout,
		StoreTimeout:    cfg.Acquisition.StoreTimeout,
		FlushOnShutdown: cfg.Acquisition.FlushOnShutdown,
	}, acquisition.Deps{
		Source:     sensor,
		Store:      st,
		Forwarders: forwarders,
		Backoff:    acquisition.NewBackoff(cfg.Acquisition.ReconnectBackoff, cfg.Acquisition.MaxReconnectBackoff),
		Logger:     log.With("component", "acquisition", "link", sensor.Address()),
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("creating acquisition loop: %w", err)
	}

	log.Info("initialisation complete, acquiring")
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}

	log.Info("hydrocore stopped")
	return nil
}

// openStore constructs the configured time-series backend.
//
// Returns:
//   - store.Store: Ready backend
//   - func() error: Releases the backend
//   - error: If the backend cannot be constructed
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (store.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendInfluxDB:
		s, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		return s, s.Close, nil

	default:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // Already failing
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", cfg.Database.Path)
		return store.NewSQLiteStore(db.DB), db.Close, nil
	}
}

// connectMQTT returns a connected client, or nil when MQTT is disabled or
// the broker is unreachable. Summaries are persisted either way.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Info("MQTT disabled")
		return nil
	case err != nil:
		log.Warn("MQTT unavailable, summaries will not be published", "error", err)
		return nil
	}

	client.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic", client.Topics().Summary(),
	)
	return client
}

// getConfigPath returns the configuration file path.
// HYDRO_CONFIG wins; otherwise configs/config.yaml if present; otherwise ""
// (built-in defaults plus environment).
func getConfigPath() string {
	if path := os.Getenv("HYDRO_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
