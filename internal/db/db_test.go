package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorwatch.db")
	database, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func tableExists(t *testing.T, database *DB, name string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestNewDBMigratesToLatest(t *testing.T) {
	database := newTestDB(t)

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	require.Equal(t, latest, version)

	for _, table := range []string{"recordings", "motion_samples", "range_samples", "schema_migrations"} {
		require.True(t, tableExists(t, database, table), "table %s should exist", table)
	}

	// Re-running against an up-to-date database is a no-op.
	require.NoError(t, database.MigrateUp())
}

func TestPragmasApplied(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, database.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.Equal(t, 1, synchronous, "synchronous should be NORMAL")

	var tempStore int
	require.NoError(t, database.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.Equal(t, 2, tempStore, "temp_store should be MEMORY")

	var foreignKeys int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}

func TestPragmasAppliedToExistingDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorwatch.db")

	first, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewDB(path)
	require.NoError(t, err)
	defer second.Close()

	var journalMode string
	require.NoError(t, second.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	version, _, err := second.MigrateVersion()
	require.NoError(t, err)
	require.NotZero(t, version, "reopening keeps the migrated schema")
}

func TestPathReportsOpenLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorwatch.db")
	database, err := NewDB(path)
	require.NoError(t, err)
	defer database.Close()

	require.Equal(t, path, database.Path())
}
