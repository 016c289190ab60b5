package sim

import (
	"fmt"
	"math/rand"
	"time"

	"ekfcal-go/config"
	"ekfcal-go/ekf/msckfupdate"
	"ekfcal-go/mathkit"
)

// NewRNG returns the seeded or time-varying source spec.md §6's
// sim_params.use_seed/seed selects. The RNG itself is an external
// collaborator (SPEC_FULL.md §4): callers own seeding policy, sim only
// consumes the resulting *rand.Rand.
func NewRNG(p config.SimParams) *rand.Rand {
	if p.UseSeed {
		return rand.New(rand.NewSource(int64(p.Seed)))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func toErrorParams(e config.SensorError) ErrorParams {
	return ErrorParams{
		TimeStd:    e.Time,
		AccStd:     e.Acc,
		OmgStd:     e.Omg,
		PosStd:     e.Pos,
		AngStd:     e.Ang,
		AccBiasStd: e.AccBias,
		OmgBiasStd: e.OmgBias,
	}
}

// BuildTruth constructs the Truth implementation selected by
// sim_params.truth_type. CyclicTruth needs no extra parameters beyond fixed
// per-axis frequencies (spec.md §6 does not expose these as separate keys,
// matching the original's compiled-in defaults); SplineTruth is unsupported
// here since it requires waypoints not present in the YAML tree and is
// intended to be constructed directly via NewSplineTruth by callers that
// have an external waypoint source.
func BuildTruth(p config.SimParams) (Truth, error) {
	switch p.TruthType {
	case "", "cyclic":
		return CyclicTruth{
			PosFreq: [3]float64{0.5, 0.3, 0.2},
			AngFreq: [3]float64{0.1, 0.15, 0.05},
		}, nil
	case "spline":
		return nil, fmt.Errorf("sim: truth_type spline requires waypoints, use NewSplineTruth directly")
	default:
		return nil, fmt.Errorf("sim: unknown truth_type %q", p.TruthType)
	}
}

// BuildImuGen wires a config.Imu plus its sim_params.sensor_errors entry
// into an ImuGen.
func BuildImuGen(id string, imu config.Imu, p config.SimParams, rng *rand.Rand) *ImuGen {
	return &ImuGen{
		SensorID:   id,
		PosOffset:  imu.PosIInB,
		QuatOffset: mathkit.Quaternion{W: imu.AngIToB[0], X: imu.AngIToB[1], Y: imu.AngIToB[2], Z: imu.AngIToB[3]},
		Err:        toErrorParams(p.SensorErrors[id]),
		NoErrors:   p.NoErrors,
		Rng:        rng,
		IsDriver:   imu.UseForPrediction,
	}
}

// BuildCameraGen wires a config.Camera into a CameraGen.
func BuildCameraGen(cam config.Camera, p config.SimParams, rng *rand.Rand) *CameraGen {
	return &CameraGen{
		PosOffset:  cam.PosCInB,
		QuatOffset: mathkit.Quaternion{W: cam.AngCToB[0], X: cam.AngCToB[1], Y: cam.AngCToB[2], Z: cam.AngCToB[3]},
		Intrinsics: msckfupdate.Intrinsics(cam.Intrinsics),
		PixelStd:   0,
		NoErrors:   p.NoErrors,
		Rng:        rng,
	}
}

// BuildFiducialGen wires a config.Camera + config.Fiducial pair into a
// FiducialGen observing boardID.
func BuildFiducialGen(sensorID string, boardID uint64, cam config.Camera, fid config.Fiducial, p config.SimParams, rng *rand.Rand) *FiducialGen {
	return &FiducialGen{
		SensorID:   sensorID,
		BoardID:    boardID,
		PosOffset:  cam.PosCInB,
		QuatOffset: mathkit.Quaternion{W: cam.AngCToB[0], X: cam.AngCToB[1], Y: cam.AngCToB[2], Z: cam.AngCToB[3]},
		BoardPos:   fid.PosInB,
		BoardQuat:  mathkit.Quaternion{W: fid.AngInB[0], X: fid.AngInB[1], Y: fid.AngInB[2], Z: fid.AngInB[3]},
		Err:        toErrorParams(p.SensorErrors[sensorID]),
		NoErrors:   p.NoErrors,
		Rng:        rng,
	}
}
