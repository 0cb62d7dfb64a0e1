// Package config loads and validates the service configuration.
//
// Sources, later ones winning:
//   - Built-in defaults (Default)
//   - A YAML file
//   - HYDRO_* environment variables
//
// Secrets (InfluxDB token, MQTT password) should come from the environment
// rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Acquisition.Interval)
package config
