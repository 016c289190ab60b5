package mathkit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Symmetrize returns (A + Aᵀ)/2, the preventive step run after every
// covariance update before any later decomposition.
func Symmetrize(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Add(a, a.T())
	out.Scale(0.5, out)
	return out
}

// MinEigenvalue returns the smallest eigenvalue of a symmetric matrix,
// used to guard positive-semidefiniteness after a Kalman downdate.
func MinEigenvalue(a *mat.Dense) float64 {
	r, _ := a.Dims()
	if r == 0 {
		return 0
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, a.At(i, j))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return math.Inf(-1)
	}
	vals := eig.Values(nil)
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// LowerBoundDiag clamps the diagonal entries of a square block in-place so
// that no diagonal entry falls below min, guarding against a singular
// innovation covariance.
func LowerBoundDiag(a *mat.Dense, min float64) {
	r, _ := a.Dims()
	for i := 0; i < r; i++ {
		if a.At(i, i) < min {
			a.Set(i, i, min)
		}
	}
}

// AllFinite reports whether every entry of a is finite (no NaN/Inf).
func AllFinite(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// AllFiniteVec reports whether every element of v is finite.
func AllFiniteVec(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// PseudoInverseSolve3 solves the 3x3 system a*x = b via a Moore-Penrose
// pseudo-inverse (SVD-based, grounded on the teacher's fusion/utils.go pinv
// helper, generalized here to a direct solve rather than a standalone
// matrix inverse). ok is false when a's smallest singular value falls below
// rankTol*largest singular value: an ill-conditioned or rank-deficient
// system, such as a single-observation triangulation constraint that only
// pins down two of the three unknowns.
func PseudoInverseSolve3(a *mat.Dense, b []float64, rankTol float64) (x []float64, ok bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, false
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] <= 0 || values[len(values)-1] < rankTol*values[0] {
		return nil, false
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	sigInv := mat.NewDense(len(values), len(values), nil)
	for i, s := range values {
		sigInv.Set(i, i, 1/s)
	}
	var temp mat.Dense
	temp.Mul(&v, sigInv)
	var pinv mat.Dense
	pinv.Mul(&temp, u.T())

	var xVec mat.VecDense
	xVec.MulVec(&pinv, mat.NewVecDense(len(b), b))
	x = make([]float64, xVec.Len())
	for i := range x {
		x[i] = xVec.AtVec(i)
	}
	return x, true
}

// InsertBlock overwrites dst's submatrix at (row, col) with src's contents.
func InsertBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	sub := dst.Slice(row, row+r, col, col+c).(*mat.Dense)
	sub.Copy(src)
}

// GrowSquare returns a new (n+extra)x(n+extra) matrix with `old` copied into
// the top-left block and zeros elsewhere; used by the Registrar to pad the
// covariance at sensor registration.
func GrowSquare(old *mat.Dense, extra int) *mat.Dense {
	n, _ := old.Dims()
	grown := mat.NewDense(n+extra, n+extra, nil)
	InsertBlock(grown, 0, 0, old)
	return grown
}

// DeleteRowsCols returns a copy of `a` with the contiguous block
// [start, start+count) removed from both rows and columns, used by clone
// eviction to compact a camera's covariance sub-range.
func DeleteRowsCols(a *mat.Dense, start, count int) *mat.Dense {
	n, _ := a.Dims()
	newN := n - count
	out := mat.NewDense(newN, newN, nil)
	rowMap := make([]int, 0, newN)
	for i := 0; i < n; i++ {
		if i >= start && i < start+count {
			continue
		}
		rowMap = append(rowMap, i)
	}
	for oi, si := range rowMap {
		for oj, sj := range rowMap {
			out.Set(oi, oj, a.At(si, sj))
		}
	}
	return out
}

// InsertZeroRowsCols returns a copy of `a` grown by `count` rows/cols
// inserted at index `at`, with the new rows/cols zero and everything else
// shifted outward; used when a new sensor sub-block or camera clone is
// spliced into the middle of the covariance.
func InsertZeroRowsCols(a *mat.Dense, at, count int) *mat.Dense {
	n, _ := a.Dims()
	out := mat.NewDense(n+count, n+count, nil)
	remap := func(i int) int {
		if i < at {
			return i
		}
		return i + count
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(remap(i), remap(j), a.At(i, j))
		}
	}
	return out
}

// AugmentCovariance inserts len(j-rows) new rows/cols at index `at`, whose
// values are derived from the existing covariance `p` (size n x n) via the
// augmentation Jacobian j (m x n): the new block is
//
//	[[P,        P Jᵀ ],
//	 [J P,      J P Jᵀ]]
//
// spliced into the covariance at `at` rather than appended at the end,
// matching a camera clone inserted into the middle of a multi-sensor state.
func AugmentCovariance(p *mat.Dense, at int, j *mat.Dense) *mat.Dense {
	n, _ := p.Dims()
	m, _ := j.Dims()

	var jp mat.Dense
	jp.Mul(j, p) // m x n
	var jpjt mat.Dense
	jpjt.Mul(&jp, j.T()) // m x m

	out := mat.NewDense(n+m, n+m, nil)
	remap := func(i int) int {
		if i < at {
			return i
		}
		return i + m
	}
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			out.Set(remap(i), remap(k), p.At(i, k))
		}
	}
	for a := 0; a < m; a++ {
		for i := 0; i < n; i++ {
			v := jp.At(a, i)
			out.Set(at+a, remap(i), v)
			out.Set(remap(i), at+a, v)
		}
	}
	for a := 0; a < m; a++ {
		for b := 0; b < m; b++ {
			out.Set(at+a, at+b, jpjt.At(a, b))
		}
	}
	return out
}

// DeleteVecRange returns a copy of v with [start, start+count) removed.
func DeleteVecRange(v []float64, start, count int) []float64 {
	out := make([]float64, 0, len(v)-count)
	out = append(out, v[:start]...)
	out = append(out, v[start+count:]...)
	return out
}
