// Package influxdb is the InfluxDB backend of the Time-Series Store.
//
// Each Summary Record becomes one point:
//
//	measurement: sensor_data (configurable)
//	tags:        site=<site.id>
//	fields:      water_level, water_temp, ec, tds, ph
//	time:        flush instant
//
// Append uses the blocking write API so a rejected write is reported to the
// acquisition loop immediately instead of through an async error channel.
// Query issues a Flux range/filter/sort over one field.
//
// # Usage
//
//	s, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package influxdb
