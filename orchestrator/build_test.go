package orchestrator

import (
	"testing"

	"ekfcal-go/config"
)

func minimalConfig() *config.Root {
	return &config.Root{
		FilterParams: config.FilterParams{},
		ImuList:      []string{"imu0"},
		CameraList:   []string{"cam0"},
		TrackerList:  []string{"trk0"},
		FiducialList: []string{"fid0"},
		Imu: map[string]config.Imu{
			"imu0": {IsExtrinsic: false, IsIntrinsic: true, UseForPrediction: true, Variance: []float64{1, 1, 1, 1, 1, 1}},
		},
		Camera: map[string]config.Camera{
			"cam0": {
				Variance:    []float64{1, 1, 1, 1, 1, 1},
				TrackerRef:  "trk0",
				FiducialRef: "fid0",
			},
		},
		Tracker: map[string]config.Tracker{
			"trk0": {PixelError: 1.0, MinTrackLength: 2, MaxTrackLength: 10, MinFeatDist: 5},
		},
		Fiducial: map[string]config.Fiducial{
			"fid0": {PosInB: [3]float64{0, 0, 5}, AngInB: [4]float64{1, 0, 0, 0}},
		},
	}
}

func TestBuildRegistersAllConfiguredSensors(t *testing.T) {
	sys, err := Build(minimalConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sys.State.Imus["imu0"]; !ok {
		t.Fatalf("expected imu0 to be registered")
	}
	if _, ok := sys.State.Cams["cam0"]; !ok {
		t.Fatalf("expected cam0 to be registered")
	}
	if len(sys.Boards) != 1 {
		t.Fatalf("expected 1 board wired from camera fiducial_ref, got %d", len(sys.Boards))
	}
}

func TestBuildRejectsCameraWithUnknownTrackerRef(t *testing.T) {
	cfg := minimalConfig()
	cam := cfg.Camera["cam0"]
	cam.TrackerRef = "missing"
	cfg.Camera["cam0"] = cam

	if _, err := Build(cfg, nil); err == nil {
		t.Fatalf("expected an error for an unknown tracker reference")
	}
}
