// Package process implements spec.md §4.2: advancing (state, covariance)
// forward by Δt under a constant-jerk / constant-angular-jerk body model.
// Grounded on the teacher's fusion/ekf.go Updt method, which rebuilds
// Phikk1/Qk every step from the current Δt; generalized here from the
// 6-scalar UWB state to the full body+sensor state using gonum matrices.
package process

import (
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// Model owns the configured process-noise spectral density for the body
// block (spec.md §6's `filter_params.process_noise`, 18 doubles).
type Model struct {
	// BodyNoise is the diagonal spectral density used to build Q's body
	// block, one entry per body scalar (18 total).
	BodyNoise [state.BodyStateSize]float64
}

// New returns a Model with the given body-block process noise diagonal.
func New(bodyNoise [state.BodyStateSize]float64) *Model {
	return &Model{BodyNoise: bodyNoise}
}

// Predict advances s from its CurrentTime to t1 (spec.md §4.2). A zero Δt
// is a no-op on both mean and covariance (invariant 3, spec.md §8).
// Negative Δt (an out-of-order message) leaves the mean untouched and
// inflates the covariance conservatively rather than rewinding time.
func (m *Model) Predict(s *state.State, t1 float64) {
	dt := t1 - s.CurrentTime
	if dt == 0 {
		return
	}
	if dt < 0 {
		m.inflateForStaleness(s, -dt)
		return
	}
	m.step(s, dt)
	s.CurrentTime = t1
}

// PredictWithImuDriver is used when a base IMU has use_for_prediction set
// (spec.md §4.4): the caller (ekf/imuupdate) has already rotated the raw
// (acc, omega) measurement into the body frame; this overrides the body
// model's constant-jerk assumption for this one step by setting
// body.Acc/body.Omega to the driving measurement before integrating.
func (m *Model) PredictWithImuDriver(s *state.State, t1 float64, accBody, omegaBody [3]float64) {
	dt := t1 - s.CurrentTime
	if dt == 0 {
		return
	}
	if dt < 0 {
		m.inflateForStaleness(s, -dt)
		return
	}
	s.Body.Acc = accBody
	s.Body.Omega = omegaBody
	m.step(s, dt)
	s.CurrentTime = t1
}

// step performs the actual mean+covariance propagation for a positive Δt.
func (m *Model) step(s *state.State, dt float64) {
	f := m.transitionMatrix(s, dt)
	q := m.processNoise(s, dt)

	// Mean propagation: linear in translation/rotation-rate blocks; the
	// orientation portion composes the rotation-vector increment onto the
	// nominal quaternion (design note: "quaternion error state").
	for i := 0; i < 3; i++ {
		s.Body.Pos[i] += dt * s.Body.Vel[i]
		s.Body.Vel[i] += dt * s.Body.Acc[i]
		s.Body.Omega[i] += dt * s.Body.Alpha[i]
	}
	s.Body.Quat = mathkit.ComposeError(s.Body.Quat, scale3(s.Body.Omega, dt))

	var fp mat.Dense
	fp.Mul(f, s.Cov)
	var fpft mat.Dense
	fpft.Mul(&fp, f.T())
	fpft.Add(&fpft, q)
	s.Cov = mat.DenseCopyOf(&fpft)
}

// inflateForStaleness applies §4.2's noise-only handling of an out-of-order
// message: the mean is untouched, and |Δt| worth of process noise is added
// to the covariance conservatively.
func (m *Model) inflateForStaleness(s *state.State, absDt float64) {
	q := m.processNoise(s, absDt)
	sum := mat.DenseCopyOf(s.Cov)
	sum.Add(sum, q)
	s.Cov = sum
}

// transitionMatrix builds F(Δt) per spec.md §4.2's sparsity: identity
// everywhere, plus 3x3*Δt coupling p<-v, v<-a, q<-omega, omega<-alpha on
// the body block. All non-body blocks are identity (bias blocks are
// random-walk, which affects Q, not F).
func (m *Model) transitionMatrix(s *state.State, dt float64) *mat.Dense {
	n := s.StateSize()
	f := mathkit.IdentityN(n)
	f.Set(0, 3, dt)
	f.Set(1, 4, dt)
	f.Set(2, 5, dt)
	f.Set(3, 6, dt)
	f.Set(4, 7, dt)
	f.Set(5, 8, dt)
	f.Set(9, 12, dt)
	f.Set(10, 13, dt)
	f.Set(11, 14, dt)
	f.Set(12, 15, dt)
	f.Set(13, 16, dt)
	f.Set(14, 17, dt)
	return f
}

// processNoise builds Q(Δt): the configured spectral density on the body
// block, sigma^2*Δt*I on each intrinsic-bias block, zero elsewhere.
func (m *Model) processNoise(s *state.State, dt float64) *mat.Dense {
	n := s.StateSize()
	q := mat.NewDense(n, n, nil)
	for i := 0; i < state.BodyStateSize; i++ {
		q.Set(i, i, m.BodyNoise[i]*dt)
	}
	for _, id := range s.ImuOrder {
		imu := s.Imus[id]
		sl, _ := s.ImuIntrinsicSlice(id)
		if sl.Len == 0 {
			continue
		}
		for i := 0; i < 3; i++ {
			q.Set(sl.Start+i, sl.Start+i, imu.AccBiasStability*imu.AccBiasStability*dt)
			q.Set(sl.Start+3+i, sl.Start+3+i, imu.GyroBiasStability*imu.GyroBiasStability*dt)
		}
	}
	return q
}

func scale3(v [3]float64, s float64) []float64 {
	return []float64{v[0] * s, v[1] * s, v[2] * s}
}
