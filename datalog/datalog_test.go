package datalog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestNewOpensAllFilesWithHeaders(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, []string{"imu0"}, []string{"cam0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	if err := l.BodyTruth.WriteRow(FormatFloats(make([]float64, len(bodyTruthHeader([]string{"imu0"}, []string{"cam0"})))...)); err != nil {
		t.Fatalf("unexpected error writing body-truth row: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error closing logger: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "body_truth.csv"))
	if err != nil {
		t.Fatalf("expected body_truth.csv to exist: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("unexpected error reading csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 data row, got %d rows", len(rows))
	}
	if rows[0][0] != "time" {
		t.Fatalf("expected column 1 to be time, got %q", rows[0][0])
	}
}

func TestMsckfWriterOpensOnePerCameraAndReusesIt(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	w1, err := l.MsckfWriter("cam0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w2, err := l.MsckfWriter("cam0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1 != w2 {
		t.Fatalf("expected MsckfWriter to reuse the same writer for a repeated camera id")
	}
}

func TestBoardAndFeatureFilesHaveExpectedHeaders(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	checkHeader(t, filepath.Join(dir, "board.csv"), []string{"board_id", "pos_x", "pos_y", "pos_z", "quat_w", "quat_x", "quat_y", "quat_z"})
	checkHeader(t, filepath.Join(dir, "feature.csv"), []string{"feature_id", "x", "y", "z"})
}

func checkHeader(t *testing.T, path string, want []string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("unexpected error reading %s: %v", path, err)
	}
	if len(rows) == 0 {
		t.Fatalf("expected at least a header row in %s", path)
	}
	if len(rows[0]) != len(want) {
		t.Fatalf("expected %d header columns in %s, got %d", len(want), path, len(rows[0]))
	}
	for i, v := range want {
		if rows[0][i] != v {
			t.Fatalf("expected header column %d to be %q, got %q", i, v, rows[0][i])
		}
	}
}
