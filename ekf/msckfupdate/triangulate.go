package msckfupdate

import (
	"fmt"
	"math"

	"ekfcal-go/ekferr"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// clonePose is a frame's resolved global camera pose plus the body pose it
// was captured from, pulled out of an AugmentedState for use in
// triangulation and Jacobian construction.
type clonePose struct {
	frameID  uint64
	camPos   [3]float64
	camQuat  mathkit.Quaternion
	bodyPos  [3]float64
	bodyQuat mathkit.Quaternion
	u, v     float64 // raw pixel observation at this clone
}

// rankTolerance bounds PseudoInverseSolve3's acceptance of the summed
// normal-equation system: a smallest-to-largest singular value ratio below
// this is treated as rank-deficient (e.g. a track with only one
// non-anchor observation, whose single bearing projector can only ever
// constrain 2 of pFA's 3 degrees of freedom).
const rankTolerance = 1e-6

// triangulate implements spec.md §4.5(a)-(b): pick clones[0] as the anchor
// frame A, form a bearing per later clone, and accumulate each
// observation's A_i/c_i normal-equation contribution into a single 3x3
// system (A += A_i; b += A_i*p_CIinA), matching
// _examples/original_source/src/ekf/update/msckf_updater.cpp's summed
// least-squares triangulation rather than a stacked per-observation solve.
// The summed system is solved via a bounded pseudo-inverse, standing in for
// the original's column-pivoted QR (gonum has no pivoted QR) while adding
// the explicit rank check the original leaves implicit.
func triangulate(clones []clonePose, intr Intrinsics) (pFA, pFG []float64, err error) {
	if len(clones) < 2 {
		return nil, nil, fmt.Errorf("%w: triangulation needs at least 2 observations", ekferr.ErrNumericalSingular)
	}
	anchor := clones[0]
	rA := anchor.camQuat.ToMat()
	rAT := rA.T()

	a := mat.NewDense(3, 3, nil)
	b := make([]float64, 3)

	for _, c := range clones[1:] {
		ubar, vbar := Undistort(c.u, c.v, intr)
		bearing := []float64{ubar, vbar, 1}
		rCi := c.camQuat.ToMat()
		var rCiToA mat.Dense
		rCiToA.Mul(rAT, rCi)
		bInA := applyRot(&rCiToA, bearing)
		bInA = normalize3(bInA)

		posCiInA := rotByT(rA, sub3(c.camPos, anchor.camPos))

		bSkew := mathkit.Skew(bInA)
		var ai mat.Dense
		ai.Mul(bSkew.T(), bSkew)
		var ci mat.VecDense
		ci.MulVec(&ai, mat.NewVecDense(3, posCiInA))

		a.Add(a, &ai)
		for r := 0; r < 3; r++ {
			b[r] += ci.AtVec(r)
		}
	}

	sol, ok := mathkit.PseudoInverseSolve3(a, b, rankTolerance)
	if !ok {
		return nil, nil, fmt.Errorf("%w: triangulation normal-equation system is rank-deficient", ekferr.ErrNumericalSingular)
	}
	pFA = sol

	if norm3(pFA) < 1e-3 {
		return nil, nil, fmt.Errorf("%w: triangulated point too close to anchor", ekferr.ErrNumericalSingular)
	}
	for _, c := range clones {
		rCi := c.camQuat.ToMat()
		pFGSlice := liftToGlobal(pFA, anchor)
		pFGArr := [3]float64{pFGSlice[0], pFGSlice[1], pFGSlice[2]}
		pInCi := rotByT(rCi, sub3(pFGArr, c.camPos))
		if pInCi[2] <= 0 {
			return nil, nil, fmt.Errorf("%w: triangulated point behind a camera in the track", ekferr.ErrNumericalSingular)
		}
	}

	pFG = liftToGlobal(pFA, anchor)
	return pFA, pFG, nil
}

func liftToGlobal(pFA []float64, anchor clonePose) []float64 {
	rA := anchor.camQuat.ToMat()
	rotated := applyRot(rA, pFA)
	return addVec3(rotated, anchor.camPos)
}

func applyRot(r mat.Matrix, v []float64) []float64 {
	return []float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}

func rotByT(r mat.Matrix, v []float64) []float64 {
	return []float64{
		r.At(0, 0)*v[0] + r.At(1, 0)*v[1] + r.At(2, 0)*v[2],
		r.At(0, 1)*v[0] + r.At(1, 1)*v[1] + r.At(2, 1)*v[2],
		r.At(0, 2)*v[0] + r.At(1, 2)*v[1] + r.At(2, 2)*v[2],
	}
}

func sub3(a, b [3]float64) []float64   { return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func addVec3(a []float64, b [3]float64) []float64 {
	return []float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
func norm3(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func normalize3(v []float64) []float64 {
	n := norm3(v)
	if n < 1e-20 {
		return v
	}
	s := 1 / n
	return []float64{v[0] * s, v[1] * s, v[2] * s}
}
