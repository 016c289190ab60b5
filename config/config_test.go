package config

import (
	"errors"
	"testing"

	"ekfcal-go/ekferr"
)

func TestValidateRejectsUnknownImu(t *testing.T) {
	r := &Root{ImuList: []string{"imu0"}, Imu: map[string]Imu{}}
	err := Validate(r)
	if !errors.Is(err, ekferr.ErrConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestValidateRejectsMultiplePredictionImus(t *testing.T) {
	r := &Root{
		ImuList: []string{"a", "b"},
		Imu: map[string]Imu{
			"a": {Variance: make([]float64, 6), UseForPrediction: true},
			"b": {Variance: make([]float64, 6), UseForPrediction: true},
		},
	}
	err := Validate(r)
	if !errors.Is(err, ekferr.ErrConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestValidateRejectsPredictionWithMultipleImus(t *testing.T) {
	r := &Root{
		ImuList: []string{"a", "b"},
		Imu: map[string]Imu{
			"a": {Variance: make([]float64, 6), UseForPrediction: true},
			"b": {Variance: make([]float64, 6)},
		},
	}
	err := Validate(r)
	if !errors.Is(err, ekferr.ErrConfigInvalid) {
		t.Fatalf("expected ConfigInvalid for multi-imu prediction, got %v", err)
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	r := &Root{
		ImuList: []string{"base"},
		Imu: map[string]Imu{
			"base": {Variance: make([]float64, 6), UseForPrediction: true},
		},
		CameraList: []string{"cam0"},
		Camera: map[string]Camera{
			"cam0": {Variance: make([]float64, 6), TrackerRef: "trk0"},
		},
		TrackerList: []string{"trk0"},
		Tracker: map[string]Tracker{
			"trk0": {MinTrackLength: 3, MaxTrackLength: 10},
		},
	}
	if err := Validate(r); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadTrackLengths(t *testing.T) {
	r := &Root{
		TrackerList: []string{"trk0"},
		Tracker: map[string]Tracker{
			"trk0": {MinTrackLength: 5, MaxTrackLength: 3},
		},
	}
	if err := Validate(r); !errors.Is(err, ekferr.ErrConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}
