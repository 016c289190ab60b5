// Package fiducialupdate implements spec.md §4.6: a direct relative-pose
// correction from a fiducial-board detection, sharing the Kalman kernel
// used by ekf/imuupdate. Grounded on
// _examples/original_source/src/ekf/update/fiducial_updater.cpp for the
// residual/Jacobian composition.
package fiducialupdate

import (
	"fmt"

	"ekfcal-go/ekferr"
	"ekfcal-go/ekf/kalman"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// Board is a registered fiducial board's pose in the global frame.
type Board struct {
	PosInG  [3]float64
	QuatInG mathkit.Quaternion
}

// Updater applies fiducial-board detections against a camera's extrinsic
// and the body pose.
type Updater struct {
	Boards map[uint64]Board
}

// New returns an Updater over the given board-id -> global-pose map.
func New(boards map[uint64]Board) *Updater {
	return &Updater{Boards: boards}
}

// Apply corrects the filter with one board detection observed by camID:
// posBoard/quatBoard are the board's pose measured in the camera frame,
// cov is the 6x6 measurement covariance.
func (u *Updater) Apply(s *state.State, camID string, boardID uint64, posBoard [3]float64, quatBoard mathkit.Quaternion, cov *mat.Dense) error {
	cam, ok := s.Cams[camID]
	if !ok {
		return fmt.Errorf("%w: camera %q", ekferr.ErrUnknownSensorId, camID)
	}
	board, ok := u.Boards[boardID]
	if !ok {
		return fmt.Errorf("%w: fiducial board %d", ekferr.ErrUnknownSensorId, boardID)
	}

	// Predicted board pose in the camera frame: compose body pose, camera
	// extrinsic, and the board's known global pose, then express in C.
	rBody := s.Body.Quat.ToMat()
	camPosG := addVec(s.Body.Pos, applyRot(rBody, cam.PosOffset))
	camQuatG := s.Body.Quat.Mul(cam.QuatOffset)

	rCamG := camQuatG.ToMat()
	predictedPos := applyRotT(rCamG, subVec(board.PosInG, camPosG))
	predictedQuat := camQuatG.Conjugate().Mul(board.QuatInG)

	y := make([]float64, 6)
	y[0] = posBoard[0] - predictedPos[0]
	y[1] = posBoard[1] - predictedPos[1]
	y[2] = posBoard[2] - predictedPos[2]
	errQuat := quatBoard.Conjugate().Mul(predictedQuat)
	y[3] = 2 * errQuat.X
	y[4] = 2 * errQuat.Y
	y[5] = 2 * errQuat.Z

	n := s.StateSize()
	h := mat.NewDense(6, n, nil)
	bodySl := s.BodySlice()
	camSl, _ := s.CamExtrinsicSlice(camID)
	rCamGT := rCamG.T()

	negI := mathkit.Identity3()
	negI.Scale(-1, negI)
	addBlock3(h, 0, bodySl.Start, matMul(rCamGT, negI))

	pSkew := mathkit.Skew(subVec(board.PosInG, camPosG))
	var rCamGTxSkew mat.Dense
	rCamGTxSkew.Mul(rCamGT, pSkew)
	addBlock3(h, 0, bodySl.Start+9, &rCamGTxSkew)

	addBlock3(h, 0, camSl.Start, matMul(rCamGT, negI))
	addBlock3(h, 0, camSl.Start+3, &rCamGTxSkew)

	addBlock3(h, 3, bodySl.Start+9, mathkit.Identity3())
	addBlock3(h, 3, camSl.Start+3, mathkit.Identity3())

	return kalman.Update(s, h, cov, y)
}

func addVec(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func subVec(a, b [3]float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func applyRot(r *mat.Dense, v [3]float64) [3]float64 {
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}

func applyRotT(r *mat.Dense, v []float64) []float64 {
	return []float64{
		r.At(0, 0)*v[0] + r.At(1, 0)*v[1] + r.At(2, 0)*v[2],
		r.At(0, 1)*v[0] + r.At(1, 1)*v[1] + r.At(2, 1)*v[2],
		r.At(0, 2)*v[0] + r.At(1, 2)*v[1] + r.At(2, 2)*v[2],
	}
}

func matMul(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

func addBlock3(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, src.At(i, j))
		}
	}
}
