// Package kalman holds the one Kalman update kernel shared by every
// updater (imuupdate, msckfupdate, fiducialupdate): innovation, gain,
// state increment, covariance downdate and symmetrize. Grounded on the
// teacher's fusion/ekf.go KfUpdate method, which performs the same five
// steps for the UWB range/RSSI measurement model.
package kalman

import (
	"fmt"

	"ekfcal-go/ekferr"
	"ekfcal-go/ekf/state"
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/mat"
)

// Update applies one Kalman correction to s given measurement Jacobian h
// (rows x StateSize()), measurement covariance r (rows x rows), and
// innovation y = z - ĥ (length rows). It mutates s.Cov in place and
// applies the resulting increment to s via ApplyDelta. Returns
// ErrNumericalSingular if S cannot be inverted (caller drops the update,
// leaving state untouched), or a wrapped DimensionMismatch if shapes
// disagree.
func Update(s *state.State, h, r *mat.Dense, y []float64) error {
	n := s.StateSize()
	hr, hc := h.Dims()
	rr, rc := r.Dims()
	if hc != n {
		return fmt.Errorf("%w: jacobian has %d cols, state has %d", ekferr.ErrDimensionMismatch, hc, n)
	}
	if hr != rr || rr != rc || len(y) != hr {
		return fmt.Errorf("%w: jacobian %dx%d, covariance %dx%d, innovation len %d", ekferr.ErrDimensionMismatch, hr, hc, rr, rc, len(y))
	}

	var ph mat.Dense // P * Hᵀ, n x hr
	ph.Mul(s.Cov, h.T())

	var s2 mat.Dense // H P Hᵀ + R, hr x hr
	s2.Mul(h, &ph)
	s2.Add(&s2, r)
	sSym := mathkit.Symmetrize(&s2)

	var sInv mat.Dense
	if err := sInv.Inverse(sSym); err != nil {
		return fmt.Errorf("%w: innovation covariance not invertible: %v", ekferr.ErrNumericalSingular, err)
	}

	var k mat.Dense // K = P Hᵀ S⁻¹, n x hr
	k.Mul(&ph, &sInv)

	yv := mat.NewVecDense(len(y), y)
	var delta mat.VecDense
	delta.MulVec(&k, yv)

	var kh mat.Dense // K H, n x n
	kh.Mul(&k, h)
	ikh := mathkit.IdentityN(n)
	ikh.Sub(ikh, &kh)

	var pNew mat.Dense
	pNew.Mul(ikh, s.Cov)
	s.Cov = mathkit.Symmetrize(&pNew)

	if !mathkit.AllFinite(s.Cov) {
		return fmt.Errorf("%w: covariance contains NaN/Inf after update", ekferr.ErrDimensionMismatch)
	}

	deltaSlice := make([]float64, n)
	for i := 0; i < n; i++ {
		deltaSlice[i] = delta.AtVec(i)
	}
	s.ApplyDelta(deltaSlice)
	return nil
}

// LowerBoundDiag3 lower-bounds the diagonal of a 3x3 block of r starting
// at (row, row) by min, in place (spec.md §4.4's S lower-bounding guard
// against a singular innovation covariance).
func LowerBoundDiag3(r *mat.Dense, row int, min float64) {
	for i := 0; i < 3; i++ {
		if v := r.At(row+i, row+i); v < min {
			r.Set(row+i, row+i, min)
		}
	}
}
