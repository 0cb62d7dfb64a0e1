package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

var testMigrations = fstest.MapFS{
	"20260101_000000_readings.up.sql": {Data: []byte(
		"CREATE TABLE test_readings (id INTEGER PRIMARY KEY, value REAL NOT NULL);")},
	"20260101_000000_readings.down.sql": {Data: []byte("DROP TABLE test_readings;")},
	"20260102_000000_index.up.sql": {Data: []byte(
		"CREATE INDEX idx_test_readings_value ON test_readings(value);")},
	"README.md": {Data: []byte("not a migration")},
}

// withMigrations swaps MigrationsFS for the duration of a test.
func withMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	orig := MigrationsFS
	MigrationsFS = fsys
	t.Cleanup(func() { MigrationsFS = orig })
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	withMigrations(t, testMigrations)
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_readings") {
		t.Fatal("table test_readings not created")
	}

	applied, pending, err := db.migrationStatus(ctx)
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" {
		t.Errorf("first applied version = %q", applied[0].Version)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateFailureStopsAtBrokenVersion(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"20260102_000000_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() with broken migration should fail")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("earlier migration should stay committed")
	}

	_, pending, err := db.migrationStatus(ctx)
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want only the broken migration", pending)
	}
}

func TestMigrateDown(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260101_000000_readings.up.sql":   testMigrations["20260101_000000_readings.up.sql"],
		"20260101_000000_readings.down.sql": testMigrations["20260101_000000_readings.down.sql"],
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.migrateDown(ctx); err != nil {
		t.Fatalf("migrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_readings") {
		t.Error("table test_readings should be dropped")
	}

	applied, _, err := db.migrationStatus(ctx)
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}

	if err := db.migrateDown(ctx); err != nil {
		t.Errorf("migrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrateDownWithoutDownSQL(t *testing.T) {
	withMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.migrateDown(ctx); err == nil {
		t.Error("migrateDown() should fail when the latest migration has no down SQL")
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	orig := MigrationsFS
	MigrationsFS = nil
	t.Cleanup(func() { MigrationsFS = orig })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_120000_sensor_data.up.sql", "20260301_120000", "sensor_data", true},
		{"20260301_120000_sensor_data.down.sql", "20260301_120000", "sensor_data", true},
		{"20260301_120000.up.sql", "20260301_120000", "", true},
		{"2026_1200_short.up.sql", "", "", false},
		{"initial.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
