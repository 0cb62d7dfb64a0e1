// Package store persists Summary Records as an append-only time series and
// answers range queries over them.
//
// Two backends implement Store:
//   - SQLiteStore (this package), the default, one row per record
//   - influxdb.Store (internal/infrastructure/influxdb), one point per record
//
// Records are never updated or deleted. Query returns every record with a
// timestamp at or after the given instant, oldest first, as a Series for a
// single metric.
package store
