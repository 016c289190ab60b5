package config

import (
	"fmt"

	"ekfcal-go/ekferr"
)

// Validate implements the ConfigInvalid checks named in spec.md §7:
// unknown sensor references, bad array lengths, and more than one
// use_for_prediction IMU.
func Validate(r *Root) error {
	if err := validateImus(r); err != nil {
		return err
	}
	if err := validateCameras(r); err != nil {
		return err
	}
	if err := validateFiducials(r); err != nil {
		return err
	}
	if r.SimParams != nil {
		if r.SimParams.TruthType != "" && r.SimParams.TruthType != "cyclic" && r.SimParams.TruthType != "spline" {
			return fmt.Errorf("%w: sim_params.truth_type %q must be cyclic or spline", ekferr.ErrConfigInvalid, r.SimParams.TruthType)
		}
	}
	return nil
}

func validateImus(r *Root) error {
	predictionCount := 0
	for _, name := range r.ImuList {
		imu, ok := r.Imu[name]
		if !ok {
			return fmt.Errorf("%w: imu_list references undefined imu %q", ekferr.ErrConfigInvalid, name)
		}
		wantLen := 0
		if imu.IsExtrinsic {
			wantLen += 6
		}
		if imu.IsIntrinsic {
			wantLen += 6
		}
		if wantLen == 0 {
			wantLen = 6 // base IMU still reports a 6-dim acc/gyro variance
		}
		if len(imu.Variance) != wantLen {
			return fmt.Errorf("%w: imu %q variance has length %d, want %d", ekferr.ErrConfigInvalid, name, len(imu.Variance), wantLen)
		}
		if imu.UseForPrediction {
			predictionCount++
		}
	}
	if predictionCount > 1 {
		return fmt.Errorf("%w: at most one IMU may set use_for_prediction, found %d", ekferr.ErrConfigInvalid, predictionCount)
	}
	if predictionCount == 1 && len(r.ImuList) > 1 {
		// spec.md §4.4: "any configuration with multiple IMUs AND any
		// use_for_prediction is rejected at startup."
		return fmt.Errorf("%w: use_for_prediction is not allowed when multiple IMUs are configured", ekferr.ErrConfigInvalid)
	}
	return nil
}

func validateCameras(r *Root) error {
	for _, name := range r.CameraList {
		cam, ok := r.Camera[name]
		if !ok {
			return fmt.Errorf("%w: camera_list references undefined camera %q", ekferr.ErrConfigInvalid, name)
		}
		if cam.TrackerRef != "" {
			if _, ok := r.Tracker[cam.TrackerRef]; !ok {
				return fmt.Errorf("%w: camera %q references undefined tracker %q", ekferr.ErrConfigInvalid, name, cam.TrackerRef)
			}
		}
		if cam.FiducialRef != "" {
			if _, ok := r.Fiducial[cam.FiducialRef]; !ok {
				return fmt.Errorf("%w: camera %q references undefined fiducial %q", ekferr.ErrConfigInvalid, name, cam.FiducialRef)
			}
		}
		if len(cam.Variance) != 6 {
			return fmt.Errorf("%w: camera %q variance has length %d, want 6", ekferr.ErrConfigInvalid, name, len(cam.Variance))
		}
	}
	for _, name := range r.TrackerList {
		t, ok := r.Tracker[name]
		if !ok {
			return fmt.Errorf("%w: tracker_list references undefined tracker %q", ekferr.ErrConfigInvalid, name)
		}
		if t.MinTrackLength < 2 || t.MaxTrackLength < t.MinTrackLength {
			return fmt.Errorf("%w: tracker %q has invalid track length bounds [%d,%d]", ekferr.ErrConfigInvalid, name, t.MinTrackLength, t.MaxTrackLength)
		}
	}
	return nil
}

func validateFiducials(r *Root) error {
	for _, name := range r.FiducialList {
		f, ok := r.Fiducial[name]
		if !ok {
			return fmt.Errorf("%w: fiducial_list references undefined fiducial %q", ekferr.ErrConfigInvalid, name)
		}
		if len(f.Variance) != 6 {
			return fmt.Errorf("%w: fiducial %q variance has length %d, want 6", ekferr.ErrConfigInvalid, name, len(f.Variance))
		}
	}
	return nil
}
