// Package msckfupdate implements spec.md §4.5: triangulation, per-
// observation Jacobians, Givens left-nullspace projection and measurement
// compression, then the shared Kalman update kernel. Grounded on
// fusion/utils.go's gonum SVD/pinv usage (reused directly, via
// mathkit.PseudoInverseSolve3, for triangulation's summed normal-equation
// solve) and mathkit's Givens routines for nullspace projection, and
// _examples/original_source/src/ekf/update/msckf_updater.cpp for the
// overall pipeline shape.
package msckfupdate

import (
	"ekfcal-go/ekferr"
	"ekfcal-go/ekf/kalman"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"
	"ekfcal-go/tsqueue"

	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Updater holds the per-camera intrinsics and pixel-noise configuration
// needed to triangulate and correct with terminated feature tracks.
type Updater struct {
	Intrinsics map[string]Intrinsics
	PixelSigma map[string]float64
}

// New returns an Updater configured with one Intrinsics + pixel sigma per
// camera id.
func New(intrinsics map[string]Intrinsics, pixelSigma map[string]float64) *Updater {
	return &Updater{Intrinsics: intrinsics, PixelSigma: pixelSigma}
}

// ProcessBatch runs spec.md §4.5(a)-(g) across every track in tracks that
// terminated against camID in the same frame, accumulating all of their
// compressed constraints into one Kalman update. Tracks that fail to
// triangulate (too few surviving clones, degenerate geometry, a point
// behind a camera) are dropped individually; the batch still proceeds with
// whatever tracks survived.
func (u *Updater) ProcessBatch(s *state.State, camID string, tracks []tsqueue.FeatureTrack) error {
	cam, ok := s.Cams[camID]
	if !ok {
		return fmt.Errorf("%w: camera %q", ekferr.ErrUnknownSensorId, camID)
	}
	intr, ok := u.Intrinsics[camID]
	if !ok {
		return fmt.Errorf("%w: camera %q has no intrinsics configured", ekferr.ErrUnknownSensorId, camID)
	}
	sigma := u.PixelSigma[camID]

	n := s.StateSize()
	var hxRows [][]float64
	var resRows []float64

	for _, track := range tracks {
		hxPrime, rPrime, err := u.processTrack(s, camID, cam, track, intr, n)
		if err != nil {
			continue // spec.md §7: NumericalSingular drops the offending update, no state mutation
		}
		rows, _ := hxPrime.Dims()
		for r := 0; r < rows; r++ {
			row := make([]float64, n)
			for c := 0; c < n; c++ {
				row[c] = hxPrime.At(r, c)
			}
			hxRows = append(hxRows, row)
			resRows = append(resRows, rPrime[r])
		}
	}

	if len(hxRows) == 0 {
		return nil
	}

	hxBig := mat.NewDense(len(hxRows), n, nil)
	for r, row := range hxRows {
		for c, v := range row {
			hxBig.Set(r, c, v)
		}
	}

	hxCompressed, resCompressed := mathkit.CompressMeasurement(hxBig, resRows)
	rows, _ := hxCompressed.Dims()
	r := mat.NewDense(rows, rows, nil)
	for i := 0; i < rows; i++ {
		r.Set(i, i, sigma*sigma)
	}
	return kalman.Update(s, hxCompressed, r, resCompressed)
}

// processTrack runs (a)-(d) for one terminated track: triangulate, build
// the stacked per-observation Jacobian/residual, and left-nullspace
// project out the feature position. Returns the pruned (Hx', r') pair.
func (u *Updater) processTrack(s *state.State, camID string, cam *state.CamState, track tsqueue.FeatureTrack, intr Intrinsics, n int) (*mat.Dense, []float64, error) {
	clones := make([]clonePose, 0, len(track.Points))
	for _, p := range track.Points {
		for _, aug := range cam.Clones {
			if aug.FrameID == p.FrameID {
				clones = append(clones, clonePose{
					frameID:  aug.FrameID,
					camPos:   aug.CamPos,
					camQuat:  aug.CamQuat,
					bodyPos:  aug.BodyPos,
					bodyQuat: aug.BodyQuat,
					u:        p.U,
					v:        p.V,
				})
				break
			}
		}
	}
	if len(clones) < 2 {
		return nil, nil, fmt.Errorf("%w: fewer than 2 surviving clones for track", ekferr.ErrNumericalSingular)
	}

	pFA, pFG, err := triangulate(clones, intr)
	if err != nil {
		return nil, nil, err
	}

	hf := mat.NewDense(2*(len(clones)-1), 3, nil)
	hx := mat.NewDense(2*(len(clones)-1), n, nil)
	res := make([]float64, 2*(len(clones)-1))

	anchor := clones[0]
	rA := anchor.camQuat.ToMat()
	anchorSl, _ := s.AugSlice(camID, anchor.frameID)
	camExtSl, _ := s.CamExtrinsicSlice(camID)

	for i, c := range clones[1:] {
		rCi := c.camQuat.ToMat()
		pFCvec := rotByT(rCi, subVecArr(pFG, c.camPos))
		ubar, vbar := Undistort(c.u, c.v, intr)
		hHat := []float64{pFCvec[0] / pFCvec[2], pFCvec[1] / pFCvec[2]}
		row := 2 * i
		res[row] = ubar - hHat[0]
		res[row+1] = vbar - hHat[1]

		dzn := dznDPfc(pFCvec)
		dzndPfc := mat.NewDense(2, 3, []float64{
			dzn[0][0], dzn[0][1], dzn[0][2],
			dzn[1][0], dzn[1][1], dzn[1][2],
		})

		rCiT := rCi.T()
		var dhDpFG mat.Dense
		dhDpFG.Mul(dzndPfc, rCiT)

		// Hf,i = dh/dp_FG * R_A  (2x3), w.r.t. the anchor-frame feature pos
		var hfi mat.Dense
		hfi.Mul(&dhDpFG, rA)
		for k := 0; k < 3; k++ {
			hf.Set(row, k, hfi.At(0, k))
			hf.Set(row+1, k, hfi.At(1, k))
		}

		// H_clone,i: d h / d (clonePos, cloneTheta) = dh/dp_FC * [-R_Ci^T | [p_FC]x]
		cloneSl, _ := s.AugSlice(camID, c.frameID)
		pFCskew := mathkit.Skew(pFCvec)
		var negRCiT mat.Dense
		negRCiT.Scale(-1, rCiT)
		var hCloneTheta mat.Dense
		hCloneTheta.Mul(dzndPfc, pFCskew)
		var hClonePos mat.Dense
		hClonePos.Mul(dzndPfc, &negRCiT)
		for k := 0; k < 3; k++ {
			hx.Set(row, cloneSl.Start+k, hClonePos.At(0, k))
			hx.Set(row+1, cloneSl.Start+k, hClonePos.At(1, k))
			hx.Set(row, cloneSl.Start+3+k, hCloneTheta.At(0, k))
			hx.Set(row+1, cloneSl.Start+3+k, hCloneTheta.At(1, k))
		}

		// H_anchor: d h / d (anchorPos, anchorTheta) via p_FG = R_A p_FA + camPos_A
		pFAskew := mathkit.Skew(pFA)
		var rAxSkew mat.Dense
		rAxSkew.Mul(rA, pFAskew)
		rAxSkew.Scale(-1, &rAxSkew)
		var hAnchorTheta mat.Dense
		hAnchorTheta.Mul(&dhDpFG, &rAxSkew)
		for k := 0; k < 3; k++ {
			hx.Set(row, anchorSl.Start+k, dhDpFG.At(0, k))
			hx.Set(row+1, anchorSl.Start+k, dhDpFG.At(1, k))
			hx.Set(row, anchorSl.Start+3+k, hAnchorTheta.At(0, k))
			hx.Set(row+1, anchorSl.Start+3+k, hAnchorTheta.At(1, k))
		}

		// H_calib: the calibration term, derived the same way the clone
		// augmentation Jacobian derives camPos/camQuat from bodyPos/bodyQuat
		// plus the extrinsic at capture time (DESIGN.md's documented
		// interpretation of the source's H_calib term).
		rBodyAnchor := anchor.bodyQuat.ToMat()
		var calibPos mat.Dense
		calibPos.Mul(&dhDpFG, rBodyAnchor)
		for k := 0; k < 3; k++ {
			hx.Set(row, camExtSl.Start+k, calibPos.At(0, k))
			hx.Set(row+1, camExtSl.Start+k, calibPos.At(1, k))
			hx.Set(row, camExtSl.Start+3+k, hAnchorTheta.At(0, k))
			hx.Set(row+1, camExtSl.Start+3+k, hAnchorTheta.At(1, k))
		}
	}

	prunedHx, prunedR := mathkit.LeftNullspaceProject(hf, hx, res)
	return prunedHx, prunedR, nil
}

func subVecArr(a []float64, b [3]float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
