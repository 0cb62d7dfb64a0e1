// Package telemetry defines the sensor data model for Hydro Core and the two
// pure components that operate on it: the line parser and the aggregation
// window.
//
// # Data Flow
//
//	raw line ──Parse──► Reading ──Window.Ingest──► buffered samples
//	                                   │
//	                         Window.MaybeFlush(now)
//	                                   ▼
//	                             SummaryRecord
//
// # Metric Set
//
// Five metrics are recognised: water_level, water_temp, ec, tds and ph.
// The set is closed. Keys outside it are ignored by the parser.
//
// # Thread Safety
//
// Parse is a pure function and safe for concurrent use. Window is NOT safe
// for concurrent use: it has a single owner (the acquisition loop). Readers
// that want recent data must go through the time-series store instead.
package telemetry
