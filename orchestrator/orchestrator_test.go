package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"ekfcal-go/datalog"
	"ekfcal-go/ekf/fiducialupdate"
	"ekfcal-go/ekf/imuupdate"
	"ekfcal-go/ekf/msckfupdate"
	"ekfcal-go/ekf/process"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"
	"ekfcal-go/tracker"
	"ekfcal-go/tsqueue"

	"gonum.org/v1/gonum/mat"
)

func newTestOrchestrator() (*Orchestrator, *state.State) {
	s := state.New()
	s.Imus["imu0"] = &state.ImuState{UseForPrediction: true, QuatOffset: mathkit.Identity()}
	s.ImuOrder = append(s.ImuOrder, "imu0")

	proc := process.New([state.BodyStateSize]float64{})
	imuUpd := imuupdate.New(proc)
	msckfUpd := msckfupdate.New(map[string]msckfupdate.Intrinsics{}, map[string]float64{})
	fidUpd := fiducialupdate.New(map[uint64]fiducialupdate.Board{})
	q := tsqueue.New()

	o := New(Config{}, nil, s, proc, imuUpd, msckfUpd, fidUpd, map[string]*tracker.Tracker{}, q)
	return o, s
}

func TestRunDrainsQueueAndAdvancesTime(t *testing.T) {
	o, s := newTestOrchestrator()
	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 1.0,
		Imu: &tsqueue.ImuSample{Acc: [3]float64{1, 0, 0}},
	})
	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 2.0,
		Imu: &tsqueue.ImuSample{Acc: [3]float64{1, 0, 0}},
	})

	n := o.Run()
	if n != 2 {
		t.Fatalf("expected 2 messages applied, got %d", n)
	}
	if s.CurrentTime != 2.0 {
		t.Fatalf("expected current_time to advance to the last message's timestamp, got %f", s.CurrentTime)
	}
}

func TestRunDropsMessagesFromUnknownSensor(t *testing.T) {
	o, s := newTestOrchestrator()
	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindImuSample, SensorID: "missing", Timestamp: 1.0,
		Imu: &tsqueue.ImuSample{},
	})
	n := o.Run()
	if n != 1 {
		t.Fatalf("expected the message to be consumed (and dropped) exactly once, got %d", n)
	}
	if s.CurrentTime != 0 {
		t.Fatalf("expected current_time to remain untouched after a dropped message, got %f", s.CurrentTime)
	}
}

func TestShutdownStopsRunBeforeDrainingRemainder(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.queue.Push(tsqueue.Message{Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 1.0, Imu: &tsqueue.ImuSample{}})
	o.queue.Push(tsqueue.Message{Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 2.0, Imu: &tsqueue.ImuSample{}})
	o.Shutdown()
	n := o.Run()
	if n != 0 {
		t.Fatalf("expected Run to stop immediately after Shutdown, applied %d", n)
	}
	if o.queue.Len() != 2 {
		t.Fatalf("expected both messages to remain queued, got %d left", o.queue.Len())
	}
}

func TestFiducialMessageRoutesToFiducialUpdater(t *testing.T) {
	s := state.New()
	s.Cams["cam0"] = &state.CamState{QuatOffset: mathkit.Identity()}
	s.CamOrder = append(s.CamOrder, "cam0")
	n := s.StateSize()
	s.Cov = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		s.Cov.Set(i, i, 1.0)
	}

	proc := process.New([state.BodyStateSize]float64{})
	imuUpd := imuupdate.New(proc)
	msckfUpd := msckfupdate.New(map[string]msckfupdate.Intrinsics{}, map[string]float64{})
	boards := map[uint64]fiducialupdate.Board{1: {PosInG: [3]float64{0, 0, 5}, QuatInG: mathkit.Identity()}}
	fidUpd := fiducialupdate.New(boards)
	q := tsqueue.New()
	o := New(Config{}, nil, s, proc, imuUpd, msckfUpd, fidUpd, map[string]*tracker.Tracker{}, q)

	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindFiducialDetection, SensorID: "cam0", Timestamp: 1.0,
		Fiducial: &tsqueue.FiducialDetection{
			BoardID:  1,
			PosBoard: [3]float64{0, 0, 6},
			QuatBoard: [4]float64{1, 0, 0, 0},
			Cov:      diagCov36(0.01),
		},
	})
	o.Run()
	if s.CurrentTime != 1.0 {
		t.Fatalf("expected current_time to advance from the fiducial message, got %f", s.CurrentTime)
	}
}

func TestAttachLoggerWritesBodyTruthAtConfiguredRate(t *testing.T) {
	o, s := newTestOrchestrator()
	dir := t.TempDir()
	l, err := datalog.New(dir, []string{"imu0"}, nil)
	if err != nil {
		t.Fatalf("unexpected error opening logger: %v", err)
	}
	defer l.Close()

	o.AttachLogger(l, 1.0) // one row per second of sim time

	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 1.0,
		Imu: &tsqueue.ImuSample{Acc: [3]float64{1, 0, 0}},
	})
	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindImuSample, SensorID: "imu0", Timestamp: 2.0,
		Imu: &tsqueue.ImuSample{Acc: [3]float64{1, 0, 0}},
	})
	o.Run()
	if s.CurrentTime != 2.0 {
		t.Fatalf("expected current_time 2.0, got %f", s.CurrentTime)
	}

	data, err := os.ReadFile(filepath.Join(dir, "body_truth.csv"))
	if err != nil {
		t.Fatalf("unexpected error reading body_truth.csv: %v", err)
	}
	lines := splitNonEmptyLines(string(data))
	// header + one row per applied IMU message, since both are >= 1s apart.
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines: %q", len(lines), lines)
	}
}

func splitNonEmptyLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestAttachLoggerWritesBoardRowOnFiducialUpdate(t *testing.T) {
	s := state.New()
	s.Cams["cam0"] = &state.CamState{QuatOffset: mathkit.Identity()}
	s.CamOrder = append(s.CamOrder, "cam0")
	n := s.StateSize()
	s.Cov = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		s.Cov.Set(i, i, 1.0)
	}

	proc := process.New([state.BodyStateSize]float64{})
	imuUpd := imuupdate.New(proc)
	msckfUpd := msckfupdate.New(map[string]msckfupdate.Intrinsics{}, map[string]float64{})
	boards := map[uint64]fiducialupdate.Board{1: {PosInG: [3]float64{0, 0, 5}, QuatInG: mathkit.Identity()}}
	fidUpd := fiducialupdate.New(boards)
	q := tsqueue.New()
	o := New(Config{}, nil, s, proc, imuUpd, msckfUpd, fidUpd, map[string]*tracker.Tracker{}, q)

	dir := t.TempDir()
	l, err := datalog.New(dir, nil, []string{"cam0"})
	if err != nil {
		t.Fatalf("unexpected error opening logger: %v", err)
	}
	defer l.Close()
	o.AttachLogger(l, 0) // disable body-truth rows, isolate the board write

	o.queue.Push(tsqueue.Message{
		Kind: tsqueue.KindFiducialDetection, SensorID: "cam0", Timestamp: 1.0,
		Fiducial: &tsqueue.FiducialDetection{
			BoardID:   1,
			PosBoard:  [3]float64{0, 0, 6},
			QuatBoard: [4]float64{1, 0, 0, 0},
			Cov:       diagCov36(0.01),
		},
	})
	o.Run()

	data, err := os.ReadFile(filepath.Join(dir, "board.csv"))
	if err != nil {
		t.Fatalf("unexpected error reading board.csv: %v", err)
	}
	lines := splitNonEmptyLines(string(data))
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 board row, got %d lines: %q", len(lines), lines)
	}
}

func diagCov36(v float64) [36]float64 {
	var c [36]float64
	for i := 0; i < 6; i++ {
		c[i*6+i] = v
	}
	return c
}
