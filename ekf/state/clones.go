package state

import (
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// AppendClone snapshots the current body pose and camera extrinsic into a
// fresh AugmentedState for camID, splicing 12 rows/cols of covariance into
// that camera's block via the augmentation Jacobian (the new clone equals
// a known linear function of the current body pose and camera extrinsic,
// so its covariance is not zero: it is correlated with both). If the
// window then exceeds MaxClones, the oldest clone is evicted (spec.md
// §4.5's clone-window state machine).
func (s *State) AppendClone(camID string, frameID uint64) bool {
	cam, ok := s.Cams[camID]
	if !ok {
		return false
	}
	aug := AugmentedState{
		FrameID:  frameID,
		CamPos:   addVec(s.Body.Pos, rotate(cam.PosOffset, s.Body.Quat)),
		CamQuat:  s.Body.Quat.Mul(cam.QuatOffset),
		BodyPos:  s.Body.Pos,
		BodyQuat: s.Body.Quat,
	}
	sl, _ := s.CamSlice(camID)
	insertAt := sl.Start + sl.Len

	j := s.cloneAugmentationJacobian(camID, cam)
	s.Cov = mathkit.AugmentCovariance(s.Cov, insertAt, j)
	cam.Clones = append(cam.Clones, aug)

	if len(cam.Clones) > cam.MaxClones {
		s.evictOldestClone(camID)
	}
	return true
}

// cloneAugmentationJacobian returns the 12 x StateSize() Jacobian mapping
// the new clone's [camPos, camTheta, bodyPos, bodyTheta] to the current
// state: identity on body pose and on the extrinsic orientation error,
// R(bodyQuat) on the extrinsic position offset, and -R(bodyQuat)*[p_c]x
// coupling for the position offset's contribution to camPos through the
// body orientation error.
func (s *State) cloneAugmentationJacobian(camID string, cam *CamState) *mat.Dense {
	n := s.StateSize()
	j := mat.NewDense(AugmentedStateSize, n, nil)

	bodySl := s.BodySlice()
	camSl, _ := s.CamExtrinsicSlice(camID)
	r := s.Body.Quat.ToMat()
	posOffSkew := mathkit.Skew(cam.PosOffset[:])

	// camPos row block (rows 0-2)
	for i := 0; i < 3; i++ {
		j.Set(i, bodySl.Start+i, 1) // d camPos / d bodyPos = I
	}
	var rTimesSkew mat.Dense
	rTimesSkew.Mul(r, posOffSkew)
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			j.Set(i, bodySl.Start+9+k, -rTimesSkew.At(i, k)) // d camPos / d bodyTheta
			j.Set(i, camSl.Start+k, r.At(i, k))              // d camPos / d camPosOffset
		}
	}
	// camTheta row block (rows 3-5): composition linearizes to identity on
	// both the body orientation error and the extrinsic orientation error.
	for i := 0; i < 3; i++ {
		j.Set(3+i, bodySl.Start+9+i, 1)
		j.Set(3+i, camSl.Start+3+i, 1)
	}
	// bodyPos, bodyTheta row blocks (rows 6-11): identity copy of the body
	// pose at capture time.
	for i := 0; i < 3; i++ {
		j.Set(6+i, bodySl.Start+i, 1)
		j.Set(9+i, bodySl.Start+9+i, 1)
	}
	return j
}

// evictOldestClone drops the earliest clone in camID's window and its 12
// rows/cols of covariance, shifting later cameras' base indices implicitly
// (offsets are always recomputed live, never cached).
func (s *State) evictOldestClone(camID string) {
	cam := s.Cams[camID]
	if len(cam.Clones) == 0 {
		return
	}
	sl, _ := s.CamSlice(camID)
	evictStart := sl.Start + 6 // first clone immediately follows extrinsics
	cam.Clones = cam.Clones[1:]
	s.Cov = mathkit.DeleteRowsCols(s.Cov, evictStart, AugmentedStateSize)
}

func addVec(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func rotate(v [3]float64, q mathkit.Quaternion) [3]float64 {
	r := q.ToMat()
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}
