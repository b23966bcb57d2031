package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/security"
)

// exportTimeFormat is the CSV timestamp column format, microsecond precision.
const exportTimeFormat = "2006-01-02 15:04:05.000000"

// defaultExportDir is the base directory for all CSV exports. It is
// intentionally restricted to a single directory to avoid writing outside
// controlled locations, even if callers provide arbitrary paths.
var defaultExportDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		monitoring.Logf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// safeExportPath constructs a safe absolute path for an export file based on
// a user-supplied path string. It restricts exports to defaultExportDir and
// validates the final path with the shared security.ValidateExportPath
// helper.
func safeExportPath(userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("empty export path")
	}
	// Use only the last path component to avoid any directory traversal and
	// to ensure we control the export root directory.
	base := filepath.Base(userPath)
	if base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid export filename")
	}

	joined := filepath.Join(defaultExportDir, base)
	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	baseDirAbs, err := filepath.Abs(defaultExportDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export base directory: %w", err)
	}
	baseDirAbs = filepath.Clean(baseDirAbs)
	if !strings.HasPrefix(cleanPath, baseDirAbs+string(os.PathSeparator)) && cleanPath != baseDirAbs {
		return "", fmt.Errorf("export path escapes base directory")
	}

	if err := security.ValidateExportPath(cleanPath); err != nil {
		monitoring.Logf("Security: rejected export path %s (from %s, cleaned: %s): %v", joined, userPath, cleanPath, err)
		return "", fmt.Errorf("invalid export path: %w", err)
	}
	return cleanPath, nil
}

// WriteCSV streams the window as CSV: a Timestamp column followed by the
// schema's channels, one row per retained sample, oldest first. Integer
// channels print without a decimal point, matching the dashboards' saved
// files.
func WriteCSV(w io.Writer, win TimedWindow) error {
	cw := csv.NewWriter(w)
	header := append([]string{"Timestamp"}, win.Schema.ChannelNames()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range win.Rows {
		out := make([]string, 0, len(row)+1)
		out = append(out, win.Times[i].Format(exportTimeFormat))
		for j, v := range row {
			out = append(out, win.Schema.FormatValue(j, v))
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the window to a file anchored under the export directory.
// It returns the path actually written, which may differ from the request
// because only the final path component of filePath is honored.
func ExportCSV(win TimedWindow, filePath string) (string, error) {
	if len(win.Rows) == 0 {
		return "", fmt.Errorf("no samples to export")
	}
	safePath, err := safeExportPath(filePath)
	if err != nil {
		return "", err
	}
	f, err := os.Create(safePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteCSV(f, win); err != nil {
		return "", err
	}
	monitoring.Logf("Exported %d samples to %s", len(win.Rows), safePath)
	return safePath, nil
}

// ExportFilename derives the attachment name the HTTP export handler sends,
// for example "imu_data_20240131_154500.csv".
func ExportFilename(pipeline string, t time.Time) string {
	return fmt.Sprintf("%s_data_%s.csv", security.SanitizeFilename(pipeline), t.Format("20060102_150405"))
}

// HistoryWindow converts a drained HistoryLog sequence into a TimedWindow so
// recordings export through the same CSV path as the live window.
func HistoryWindow(schema Schema, records []Record) TimedWindow {
	win := TimedWindow{
		Schema: schema,
		Times:  make([]time.Time, 0, len(records)),
		Rows:   make([][]float64, 0, len(records)),
	}
	for _, rec := range records {
		if len(rec.Values) != schema.Len() {
			continue
		}
		vals := make([]float64, len(rec.Values))
		copy(vals, rec.Values)
		win.Times = append(win.Times, rec.Time)
		win.Rows = append(win.Rows, vals)
	}
	return win
}
