// Package mqtt publishes Summary Records to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing each persisted record as JSON on hydro/{site}/summary
//   - A retained online/offline status on hydro/{site}/status, with a Last
//     Will so subscribers see the service drop off unexpectedly
//
// The client is optional. It is only created when mqtt.enabled is true, and
// the acquisition loop treats it as a forwarder: a failed publish is logged
// and never affects what was written to the store.
//
// # Security Considerations
//
//   - TLS is recommended outside a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials come from config or HYDRO_MQTT_USERNAME/HYDRO_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishSummary(ctx, rec)
package mqtt
