// Package registrar implements spec.md §4.3: growing the joint State at
// sensor registration and splicing per-sensor covariance sub-blocks in,
// with zero cross-covariance to the rest of the state. Grounded on the
// teacher's fusion/pipeline.go dynamic anchor-map growth (AddAnchor) and
// fusion/dim_constrain.go's registration bookkeeping, generalized from a
// fixed-size UWB state to the dynamically-sized body+sensor state.
package registrar

import (
	"fmt"

	"ekfcal-go/ekferr"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// Registrar grows a *state.State at registration time and seals it after
// the first measurement update (spec.md §4.3).
type Registrar struct {
	s *state.State
}

// New wraps a State for registration.
func New(s *state.State) *Registrar {
	return &Registrar{s: s}
}

// Seal marks the state sealed; called by the Orchestrator on the first
// measurement update. All subsequent registrations fail with
// ErrSealedState.
func (r *Registrar) Seal() {
	r.s.Sealed = true
}

// RegisterImu grows the state by an IMU's contribution and splices
// initialCov (must be square, sized 6*isExtrinsic+6*isIntrinsic) onto the
// new diagonal block.
func (r *Registrar) RegisterImu(id string, initial *state.ImuState, initialCov *mat.Dense) error {
	if r.s.Sealed {
		return fmt.Errorf("%w: cannot register imu %q", ekferr.ErrSealedState, id)
	}
	if _, exists := r.s.Imus[id]; exists {
		return fmt.Errorf("%w: imu %q", ekferr.ErrAlreadyRegistered, id)
	}
	want := 0
	if initial.IsExtrinsic {
		want += 6
	}
	if initial.IsIntrinsic {
		want += 6
	}
	if err := checkShape(initialCov, want); err != nil {
		return fmt.Errorf("%w: imu %q: %v", ekferr.ErrInvalidShape, id, err)
	}

	insertAt := imuInsertionIndex(r.s)
	r.s.Cov = mathkit.InsertZeroRowsCols(r.s.Cov, insertAt, want)
	if want > 0 {
		mathkit.InsertBlock(r.s.Cov, insertAt, insertAt, initialCov)
	}
	r.s.ImuOrder = append(r.s.ImuOrder, id)
	r.s.Imus[id] = initial
	return nil
}

// RegisterCamera grows the state by a camera's extrinsic contribution (6
// scalars; the clone window starts empty) and splices initialCov onto the
// new diagonal block.
func (r *Registrar) RegisterCamera(id string, initial *state.CamState, initialCov *mat.Dense) error {
	if r.s.Sealed {
		return fmt.Errorf("%w: cannot register camera %q", ekferr.ErrSealedState, id)
	}
	if _, exists := r.s.Cams[id]; exists {
		return fmt.Errorf("%w: camera %q", ekferr.ErrAlreadyRegistered, id)
	}
	if err := checkShape(initialCov, 6); err != nil {
		return fmt.Errorf("%w: camera %q: %v", ekferr.ErrInvalidShape, id, err)
	}
	if len(initial.Clones) != 0 {
		return fmt.Errorf("%w: camera %q must register with an empty clone window", ekferr.ErrInvalidShape, id)
	}

	n, _ := r.s.Cov.Dims()
	r.s.Cov = mathkit.InsertZeroRowsCols(r.s.Cov, n, 6)
	mathkit.InsertBlock(r.s.Cov, n, n, initialCov)
	r.s.CamOrder = append(r.s.CamOrder, id)
	r.s.Cams[id] = initial
	return nil
}

func checkShape(m *mat.Dense, want int) error {
	if want == 0 {
		if m != nil {
			r, c := m.Dims()
			if r != 0 || c != 0 {
				return fmt.Errorf("expected empty covariance block, got %dx%d", r, c)
			}
		}
		return nil
	}
	if m == nil {
		return fmt.Errorf("expected %dx%d covariance block, got nil", want, want)
	}
	r, c := m.Dims()
	if r != want || c != want {
		return fmt.Errorf("expected %dx%d covariance block, got %dx%d", want, want, r, c)
	}
	return nil
}

// imuInsertionIndex returns the index right after the last currently
// registered IMU's block (i.e. right before the camera blocks begin),
// so new IMUs are appended in registration order ahead of all cameras.
func imuInsertionIndex(s *state.State) int {
	sl := s.BodySlice()
	start := sl.Start + sl.Len
	for _, id := range s.ImuOrder {
		imu := s.Imus[id]
		n := 0
		if imu.IsExtrinsic {
			n += 6
		}
		if imu.IsIntrinsic {
			n += 6
		}
		start += n
	}
	return start
}
