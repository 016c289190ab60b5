// Package datalog implements spec.md §6's on-disk CSV output: one file per
// subsystem, column 1 `time` in the body-truth and MSCKF files (the board
// and feature files start with their board/feature id). Grounded on cmd/fuse/main.go's
// writeCSV/encoding/csv usage, generalized from buffer-then-WriteAll to
// streaming per-row csv.Writer.Write so a long simulation run does not hold
// its whole output in memory; fan-out-per-subsystem shape from
// _examples/original_source/src/infrastructure/DataLogger.hpp.
package datalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Writer wraps one open CSV file with a header already written.
type Writer struct {
	f *os.File
	w *csv.Writer
}

func newWriter(path string, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("datalog: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("datalog: write header %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("datalog: write header %s: %w", path, err)
	}
	return &Writer{f: f, w: w}, nil
}

// WriteRow writes one row of already-stringified fields and flushes, so a
// crash mid-run loses at most the in-flight row rather than the file's
// buffered tail.
func (w *Writer) WriteRow(fields []string) error {
	if err := w.w.Write(fields); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Logger owns the per-subsystem Writers named in spec.md §6, all rooted at
// one output directory (the CLI's positional <out_dir>).
type Logger struct {
	BodyTruth *Writer
	Board     *Writer
	Feature   *Writer
	msckf     map[string]*Writer
	dir       string
}

// New creates out_dir if needed and opens the body-truth, board, and
// feature files. Per-camera MSCKF files are opened lazily via MsckfWriter,
// since the camera set is only known once configuration is parsed.
func New(dir string, imuIDs, camIDs []string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("datalog: mkdir %s: %w", dir, err)
	}
	bodyTruth, err := newWriter(filepath.Join(dir, "body_truth.csv"), bodyTruthHeader(imuIDs, camIDs))
	if err != nil {
		return nil, err
	}
	board, err := newWriter(filepath.Join(dir, "board.csv"), []string{"board_id", "pos_x", "pos_y", "pos_z", "quat_w", "quat_x", "quat_y", "quat_z"})
	if err != nil {
		return nil, err
	}
	feature, err := newWriter(filepath.Join(dir, "feature.csv"), []string{"feature_id", "x", "y", "z"})
	if err != nil {
		return nil, err
	}
	return &Logger{BodyTruth: bodyTruth, Board: board, Feature: feature, msckf: map[string]*Writer{}, dir: dir}, nil
}

func bodyTruthHeader(imuIDs, camIDs []string) []string {
	h := []string{"time"}
	h = append(h, vec3Header("body_pos")...)
	h = append(h, vec3Header("body_vel")...)
	h = append(h, vec3Header("body_acc")...)
	h = append(h, quatHeader("body_ang_pos")...)
	h = append(h, vec3Header("body_ang_vel")...)
	h = append(h, vec3Header("body_ang_acc")...)
	for _, id := range imuIDs {
		h = append(h, vec3Header(id+"_pos")...)
		h = append(h, quatHeader(id+"_ang_pos")...)
		h = append(h, vec3Header(id+"_acc_bias")...)
		h = append(h, vec3Header(id+"_gyr_bias")...)
	}
	for _, id := range camIDs {
		h = append(h, vec3Header(id+"_pos")...)
		h = append(h, quatHeader(id+"_ang_pos")...)
	}
	return h
}

func vec3Header(prefix string) []string {
	return []string{prefix + "_x", prefix + "_y", prefix + "_z"}
}

func quatHeader(prefix string) []string {
	return []string{prefix + "_w", prefix + "_x", prefix + "_y", prefix + "_z"}
}

// MsckfWriter returns (opening on first use) the per-camera MSCKF log:
// time, track_count, state_size, execution_time_us.
func (l *Logger) MsckfWriter(camID string) (*Writer, error) {
	if w, ok := l.msckf[camID]; ok {
		return w, nil
	}
	w, err := newWriter(filepath.Join(l.dir, "msckf_"+camID+".csv"), []string{
		"time", "track_count", "state_size", "execution_time_us",
	})
	if err != nil {
		return nil, err
	}
	l.msckf[camID] = w
	return w, nil
}

// Close closes every open Writer, returning the first error encountered.
func (l *Logger) Close() error {
	var first error
	for _, w := range []*Writer{l.BodyTruth, l.Board, l.Feature} {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, w := range l.msckf {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FormatFloats stringifies a row of float64s for WriteRow.
func FormatFloats(vs ...float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
