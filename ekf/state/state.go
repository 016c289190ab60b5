// Package state implements the joint state vector and covariance described
// in spec.md §3-§4.1: a single dense aggregate laid out as
// body || imu_0..imu_k || cam_0..cam_j, with each camera block further laid
// out as extrinsics || clone_1 .. clone_L. Offsets are always recomputed
// live rather than cached, since clone eviction shifts later blocks.
//
// Grounded on the teacher's fusion/ekf.go EKF struct (xk []float64,
// Pxk [][]float64), generalized from a fixed 6-scalar UWB state to this
// dynamically-sized body+sensor state using gonum.org/v1/gonum/mat.
package state

import (
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// BodyStateSize is the fixed scalar count of the body block (spec.md §3).
const BodyStateSize = 18

// BodyState holds position/velocity/acceleration, orientation (nominal
// quaternion, error-state rotation-vector implicit and always reset to
// zero after composition), angular velocity and angular acceleration.
type BodyState struct {
	Pos   [3]float64
	Vel   [3]float64
	Acc   [3]float64
	Quat  mathkit.Quaternion
	Omega [3]float64
	Alpha [3]float64
}

// NewBodyState returns a body state at rest with identity orientation.
func NewBodyState() BodyState {
	return BodyState{Quat: mathkit.Identity()}
}

// ImuState holds the per-IMU extrinsic offset and, when enabled,
// intrinsic bias state (spec.md §3). Contribution to state size is
// 6*IsExtrinsic + 6*IsIntrinsic.
type ImuState struct {
	IsExtrinsic bool
	IsIntrinsic bool

	PosOffset  [3]float64         // p_i in b
	QuatOffset mathkit.Quaternion // q_{i->b}
	AccBias    [3]float64
	GyroBias   [3]float64

	UseForPrediction bool
	AccBiasStability float64
	GyroBiasStability float64
}

func (s *ImuState) contribSize() int {
	n := 0
	if s.IsExtrinsic {
		n += 6
	}
	if s.IsIntrinsic {
		n += 6
	}
	return n
}

// AugmentedState is a camera clone: a snapshot of camera pose and body pose
// taken at the moment a frame was captured (spec.md §3).
type AugmentedState struct {
	FrameID  uint64
	CamPos   [3]float64
	CamQuat  mathkit.Quaternion
	BodyPos  [3]float64
	BodyQuat mathkit.Quaternion
}

// AugmentedStateSize is the fixed scalar count of one clone.
const AugmentedStateSize = 12

// CamState holds a camera's extrinsic offset plus its sliding window of
// clones (spec.md §3). MaxClones is L from spec.md §4.5.
type CamState struct {
	PosOffset  [3]float64
	QuatOffset mathkit.Quaternion
	Clones     []AugmentedState
	MaxClones  int
}

func (s *CamState) contribSize() int {
	return 6 + AugmentedStateSize*len(s.Clones)
}

// State is the single aggregate described in spec.md §3: body || imus in
// registration order || cameras in registration order. Sensor ids are
// strings for readability; registration order is tracked explicitly since
// Go maps have no stable iteration order.
type State struct {
	Body BodyState

	ImuOrder []string
	Imus     map[string]*ImuState

	CamOrder []string
	Cams     map[string]*CamState

	// Cov is the covariance, square of size StateSize(), symmetric and
	// positive-semidefinite within numerical tolerance (spec.md §3).
	Cov *mat.Dense

	// CurrentTime is the filter's most recently applied timestamp
	// (spec.md §4.2).
	CurrentTime float64

	// Sealed is set true after the first measurement update; further
	// registrations then fail with ErrSealedState (spec.md §4.3).
	Sealed bool
}

// New returns an initial State: only the body block, zero covariance.
func New() *State {
	return &State{
		Body:     NewBodyState(),
		Imus:     map[string]*ImuState{},
		Cams:     map[string]*CamState{},
		Cov:      mat.NewDense(BodyStateSize, BodyStateSize, nil),
	}
}

// StateSize returns the total scalar count: invariant 1 in spec.md §8.
func (s *State) StateSize() int {
	n := BodyStateSize
	for _, id := range s.ImuOrder {
		n += s.Imus[id].contribSize()
	}
	for _, id := range s.CamOrder {
		n += s.Cams[id].contribSize()
	}
	return n
}
