package db

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackupHandlerStreamsGzippedSnapshot(t *testing.T) {
	database := newTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	rr := httptest.NewRecorder()
	database.handleBackup(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "attachment; filename=sensorwatch-backup-")

	gz, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	snapshot, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(snapshot, []byte("SQLite format 3\x00")), "backup should be a sqlite database")

	leftovers, err := filepath.Glob("sensorwatch-backup-*.db")
	require.NoError(t, err)
	require.Empty(t, leftovers, "snapshot file should be cleaned up")
}

func TestAttachAdminRoutesRegistersDebugTree(t *testing.T) {
	database := newTestDB(t)

	mux := http.NewServeMux()
	database.AttachAdminRoutes(mux)

	for _, path := range []string{"/debug/", "/debug/tailsql/", "/debug/backup"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, pattern := mux.Handler(req)
		require.NotEmpty(t, pattern, "no handler registered for %s", path)
	}
}
