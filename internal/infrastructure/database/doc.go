// Package database provides the SQLite connection that backs the local
// sensor history.
//
// It manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned schema migrations from an embedded filesystem
//   - Health checks for the HTTP API
//
// SQLite allows a single writer. The pool is pinned to one connection, which
// is plenty for one summary record per aggregation interval.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.{up,down}.sql.
package database
