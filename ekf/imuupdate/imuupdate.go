// Package imuupdate implements spec.md §4.4: the predicted IMU measurement,
// its Jacobian against body + per-IMU intrinsic block, and either a Kalman
// correction or a prediction-driver handoff depending on use_for_prediction.
// Grounded on the teacher's fusion/ekf.go KfUpdate kernel (via ekf/kalman)
// generalized to the accelerometer/gyroscope measurement model described in
// _examples/original_source/src/ekf/update/ImuUpdater.cpp.
package imuupdate

import (
	"fmt"

	"ekfcal-go/ekferr"
	"ekfcal-go/ekf/kalman"
	"ekfcal-go/ekf/process"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

const (
	minAccVariance = 1e-3
	minOmgVariance = 1e-2
)

// Updater drives IMU measurements into either the ProcessModel (for the
// single `use_for_prediction` sensor) or a direct Kalman correction.
type Updater struct {
	proc *process.Model
}

// New returns an Updater driving the given process model's predict step
// when an IMU measurement is used as a dead-reckoning driver.
func New(proc *process.Model) *Updater {
	return &Updater{proc: proc}
}

// Apply routes one IMU measurement for sensor id at timestamp t. acc/omg
// are the raw 3-axis readings; cov is the 6x6 measurement covariance
// (diag blocks: acc variance, omg variance).
func (u *Updater) Apply(s *state.State, id string, t float64, acc, omg [3]float64, cov *mat.Dense) error {
	imu, ok := s.Imus[id]
	if !ok {
		return fmt.Errorf("%w: imu %q", ekferr.ErrUnknownSensorId, id)
	}

	if imu.UseForPrediction {
		accBody, omgBody := rotateToBody(imu, acc, omg)
		u.proc.PredictWithImuDriver(s, t, accBody, omgBody)
		return nil
	}

	u.proc.Predict(s, t)

	h, predicted := jacobianAndPrediction(s, id, imu)
	y := make([]float64, 6)
	y[0] = acc[0] - predicted[0]
	y[1] = acc[1] - predicted[1]
	y[2] = acc[2] - predicted[2]
	y[3] = omg[0] - predicted[3]
	y[4] = omg[1] - predicted[4]
	y[5] = omg[2] - predicted[5]

	r := mat.DenseCopyOf(cov)
	kalman.LowerBoundDiag3(r, 0, minAccVariance)
	kalman.LowerBoundDiag3(r, 3, minOmgVariance)

	return kalman.Update(s, h, r, y)
}

// rotateToBody maps a raw (acc, omg) reading through the IMU's extrinsic
// into the body frame, used when this IMU drives prediction directly
// (spec.md §4.4's dead-reckoning-driver policy).
func rotateToBody(imu *state.ImuState, acc, omg [3]float64) ([3]float64, [3]float64) {
	if !imu.IsExtrinsic {
		return acc, omg
	}
	rInv := imu.QuatOffset.Conjugate().ToMat()
	return rotate3(rInv, acc), rotate3(rInv, omg)
}

func rotate3(r *mat.Dense, v [3]float64) [3]float64 {
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}

// jacobianAndPrediction builds the predicted measurement ĥ (length 6: acc
// then omg) and the 6 x StateSize() Jacobian per spec.md §4.4.
func jacobianAndPrediction(s *state.State, id string, imu *state.ImuState) (*mat.Dense, []float64) {
	n := s.StateSize()
	h := mat.NewDense(6, n, nil)

	qi := imu.QuatOffset
	r := qi.ToMat()
	pi := imu.PosOffset[:]

	a := s.Body.Acc[:]
	w := s.Body.Omega[:]
	alpha := s.Body.Alpha[:]

	alphaCrossP := mathkit.Cross(alpha, pi)
	wCrossP := mathkit.Cross(w, pi)
	wCrossWCrossP := mathkit.Cross(w, wCrossP)

	accBodyFrame := make([]float64, 3)
	for i := 0; i < 3; i++ {
		accBodyFrame[i] = a[i] + alphaCrossP[i] + wCrossWCrossP[i]
	}
	hAcc := applyRot3(r, accBodyFrame)
	hOmg := applyRot3(r, w)

	bodySl := s.BodySlice()

	// d hAcc / d a = R
	addBlock3(h, 0, bodySl.Start+6, r)
	// d hAcc / d omega: w x (w x p) = w(w.p) - p(w.w), so
	// d/dw_j [w x (w x p)]_i = delta_ij (w.p) + w_i p_j - 2 p_i w_j
	// (ImuUpdater.cpp's `temp` matrix).
	wSkew := mathkit.Skew(w)
	pSkew := mathkit.Skew(pi)
	wDotP := w[0]*pi[0] + w[1]*pi[1] + w[2]*pi[2]
	domega := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := w[i]*pi[j] - 2*pi[i]*w[j]
			if i == j {
				v += wDotP
			}
			domega.Set(i, j, v)
		}
	}
	var rDomega mat.Dense
	rDomega.Mul(r, domega)
	addBlock3(h, 0, bodySl.Start+12, &rDomega)
	// d hAcc / d alpha = R [p]x
	var rpSkew mat.Dense
	rpSkew.Mul(r, pSkew)
	addBlock3(h, 0, bodySl.Start+15, &rpSkew)

	if extSl, ok := s.ImuExtrinsicSlice(id); ok {
		// d hAcc / d p_i = R [alpha]x + Omega^2 (Omega^2 = [w]x[w]x)
		alphaSkew := mathkit.Skew(alpha)
		var rAlphaSkew mat.Dense
		rAlphaSkew.Mul(r, alphaSkew)
		var wSkewSq mat.Dense
		wSkewSq.Mul(wSkew, wSkew)
		var dPi mat.Dense
		dPi.Add(&rAlphaSkew, &wSkewSq)
		addBlock3(h, 0, extSl.Start, &dPi)

		// d hAcc / d q_i = -R [hAccBody]x
		hAccBodySkew := mathkit.Skew(accBodyFrame)
		var dqAcc mat.Dense
		dqAcc.Mul(r, hAccBodySkew)
		dqAcc.Scale(-1, &dqAcc)
		addBlock3(h, 0, extSl.Start+3, &dqAcc)

		// d hOmg / d q_i = -R [w]x
		var dqOmg mat.Dense
		dqOmg.Mul(r, wSkew)
		dqOmg.Scale(-1, &dqOmg)
		addBlock3(h, 3, extSl.Start+3, &dqOmg)
	}

	// d hOmg / d omega = R
	addBlock3(h, 3, bodySl.Start+12, r)

	if intSl, ok := s.ImuIntrinsicSlice(id); ok {
		addBlock3(h, 0, intSl.Start, mathkit.Identity3())
		addBlock3(h, 3, intSl.Start+3, mathkit.Identity3())
	}

	predicted := []float64{
		hAcc[0] + imu.AccBias[0], hAcc[1] + imu.AccBias[1], hAcc[2] + imu.AccBias[2],
		hOmg[0] + imu.GyroBias[0], hOmg[1] + imu.GyroBias[1], hOmg[2] + imu.GyroBias[2],
	}
	return h, predicted
}

func applyRot3(r *mat.Dense, v []float64) []float64 {
	return []float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}

func addBlock3(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, src.At(i, j))
		}
	}
}
