package telemetry

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testMotionWindow() TimedWindow {
	t0 := time.Date(2024, 1, 31, 15, 45, 0, 123456000, time.UTC)
	return TimedWindow{
		Schema: MotionSchema(),
		Times:  []time.Time{t0, t0.Add(time.Second)},
		Rows: [][]float64{
			{0.1, 0.2, 0.3, 1.5, -2.5, 0, 10.5, -3.25},
			{0.2, 0.3, 0.4, 1.6, -2.6, 0, 11.5, -3.5},
		},
	}
}

func TestWriteCSV_Motion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testMotionWindow()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-reading CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}

	wantHeader := "Timestamp,AccelX,AccelY,AccelZ,GyroX,GyroY,GyroZ,Roll,Pitch"
	if got := strings.Join(rows[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}

	if rows[1][0] != "2024-01-31 15:45:00.123456" {
		t.Errorf("timestamp = %q, want microsecond precision", rows[1][0])
	}
	if rows[1][1] != "0.1" || rows[2][8] != "-3.5" {
		t.Errorf("values misplaced: row1 AccelX=%q, row2 Pitch=%q", rows[1][1], rows[2][8])
	}
}

func TestWriteCSV_RangeIntegers(t *testing.T) {
	win := TimedWindow{
		Schema: RangeSchema(),
		Times:  []time.Time{time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)},
		Rows:   [][]float64{{120, 45, 300, 7}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, win); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Timestamp,Front,Right,Left,Back" {
		t.Errorf("header = %q", lines[0])
	}
	// Integer channels print without a decimal point.
	if !strings.HasSuffix(lines[1], ",120,45,300,7") {
		t.Errorf("row = %q, want integer-formatted values", lines[1])
	}
}

func TestExportCSV(t *testing.T) {
	path, err := ExportCSV(testMotionWindow(), "export_test_motion.csv")
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	defer os.Remove(path)

	if filepath.Dir(path) != defaultExportDir {
		t.Errorf("export landed in %q, want %q", filepath.Dir(path), defaultExportDir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.HasPrefix(string(data), "Timestamp,AccelX") {
		t.Errorf("export content starts %q", string(data)[:min(40, len(data))])
	}
}

func TestExportCSV_NoSamples(t *testing.T) {
	win := TimedWindow{Schema: MotionSchema()}
	if _, err := ExportCSV(win, "empty.csv"); err == nil {
		t.Error("expected an error exporting an empty window")
	}
}

func TestExportCSV_EmptyPath(t *testing.T) {
	if _, err := ExportCSV(testMotionWindow(), ""); err == nil {
		t.Error("expected an error for an empty path")
	}
}

// Directory components in the requested path are discarded: the export is
// anchored under the controlled export directory no matter what the caller
// passes.
func TestExportCSV_StripsDirectoryComponents(t *testing.T) {
	path, err := ExportCSV(testMotionWindow(), "../../somewhere/else/traversal_test.csv")
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	defer os.Remove(path)

	if filepath.Dir(path) != defaultExportDir {
		t.Errorf("export escaped to %q", path)
	}
	if filepath.Base(path) != "traversal_test.csv" {
		t.Errorf("export basename = %q, want traversal_test.csv", filepath.Base(path))
	}
}

func TestExportFilename(t *testing.T) {
	stamp := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)

	if got := ExportFilename("imu", stamp); got != "imu_data_20240131_154500.csv" {
		t.Errorf("ExportFilename = %q", got)
	}
	// Pipeline names are sanitized before they reach a filename.
	if got := ExportFilename("my pipeline!", stamp); got != "my_pipeline_data_20240131_154500.csv" {
		t.Errorf("sanitized ExportFilename = %q", got)
	}
}

func TestHistoryWindow(t *testing.T) {
	schema := RangeSchema()
	t0 := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Seq: 1, Time: t0, Values: []float64{1, 2, 3, 4}},
		{Seq: 2, Time: t0.Add(time.Second), Values: []float64{5, 6}}, // wrong width, dropped
		{Seq: 3, Time: t0.Add(2 * time.Second), Values: []float64{7, 8, 9, 10}},
	}

	win := HistoryWindow(schema, records)
	if len(win.Rows) != 2 {
		t.Fatalf("expected 2 rows (mismatched record dropped), got %d", len(win.Rows))
	}
	if win.Rows[1][0] != 7 {
		t.Errorf("Rows[1] = %v, want [7 8 9 10]", win.Rows[1])
	}
	if !win.Times[1].Equal(t0.Add(2 * time.Second)) {
		t.Errorf("Times[1] = %v", win.Times[1])
	}

	// The window owns copies: mutating the source records must not change it.
	records[0].Values[0] = 999
	if win.Rows[0][0] != 1 {
		t.Errorf("window aliases caller memory: Rows[0][0] = %v", win.Rows[0][0])
	}
}
