package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func indexExists(t *testing.T, database *DB, name string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpenLeavesSchemaAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorwatch.db")
	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Zero(t, version)
	require.False(t, tableExists(t, database, "recordings"))
}

func TestLatestMigrationVersion(t *testing.T) {
	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	require.Equal(t, uint(2), latest)
}

func TestMigrateDownAndBackUp(t *testing.T) {
	database := newTestDB(t)

	require.True(t, indexExists(t, database, "idx_motion_samples_recording"))

	require.NoError(t, database.MigrateDown())
	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
	require.False(t, indexExists(t, database, "idx_motion_samples_recording"))
	require.True(t, tableExists(t, database, "recordings"), "down by one step keeps the tables")

	require.NoError(t, database.MigrateUp())
	version, _, err = database.MigrateVersion()
	require.NoError(t, err)
	require.Equal(t, uint(2), version)
	require.True(t, indexExists(t, database, "idx_motion_samples_recording"))
}

func TestMigrateToSpecificVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorwatch.db")
	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.MigrateTo(1))
	require.True(t, tableExists(t, database, "recordings"))
	require.False(t, indexExists(t, database, "idx_range_samples_recording"))

	require.NoError(t, database.MigrateTo(2))
	require.True(t, indexExists(t, database, "idx_range_samples_recording"))
}

func TestMigrateForceOverridesVersion(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.MigrateForce(1))
	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	status, err := database.GetMigrationStatus()
	require.NoError(t, err)
	require.True(t, status.Pending)
	require.Equal(t, uint(2), status.Latest)
}

func TestMigrationStatusFreshAndCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorwatch.db")
	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	status, err := database.GetMigrationStatus()
	require.NoError(t, err)
	require.Zero(t, status.Version)
	require.True(t, status.Pending)

	require.NoError(t, database.MigrateUp())
	status, err = database.GetMigrationStatus()
	require.NoError(t, err)
	require.Equal(t, status.Latest, status.Version)
	require.False(t, status.Pending)
	require.False(t, status.Dirty)
}
