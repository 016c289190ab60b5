package mathkit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// givensCoeffs returns (c, s) such that [[c, s], [-s, c]] * [a, b]ᵀ = [r, 0]ᵀ,
// per Golub & Van Loan Alg. 5.1.3.
func givensCoeffs(a, b float64) (c, s float64) {
	if b == 0 {
		return 1, 0
	}
	if math.Abs(b) > math.Abs(a) {
		t := a / b
		s = 1 / math.Sqrt(1+t*t)
		c = s * t
		return c, s
	}
	t := b / a
	c = 1 / math.Sqrt(1+t*t)
	s = c * t
	return c, s
}

func applyGivensVec(v []float64, i, k int, cs, sn float64) {
	xi, xk := v[i], v[k]
	v[i] = cs*xi + sn*xk
	v[k] = -sn*xi + cs*xk
}

// LeftNullspaceProject implements spec.md §4.5(d): given the 2n x 3 feature
// Jacobian Hf, apply an upward Givens elimination (Golub & Van Loan Alg.
// 5.2.4) to zero rows 3..2n-1 of column-block Hf while applying the same
// rotations to Hx and r, then discards the top 3 rows. The result Hx', r'
// have 2n-3 rows and no longer depend on feature position.
func LeftNullspaceProject(hf, hx *mat.Dense, r []float64) (*mat.Dense, []float64) {
	rows, _ := hf.Dims()
	hfC := mat.DenseCopyOf(hf)
	hxC := mat.DenseCopyOf(hx)
	rC := append([]float64(nil), r...)

	// Eliminate column 0, then column 1, then column 2, each from the bottom
	// row upward: a later column's rotations only mix rows that are already
	// zero in the earlier columns, so those zeros are kept.
	for col := 0; col < 3; col++ {
		for row := rows - 1; row > col; row-- {
			a := hfC.At(row-1, col)
			b := hfC.At(row, col)
			if b == 0 {
				continue
			}
			cs, sn := givensCoeffs(a, b)
			rotate2x2Row(hfC, row-1, row, cs, sn)
			rotate2x2Row(hxC, row-1, row, cs, sn)
			applyGivensVec(rC, row-1, row, cs, sn)
		}
	}

	prunedHx := mat.DenseCopyOf(hxC.Slice(3, rows, 0, colsOf(hxC)))
	prunedR := append([]float64(nil), rC[3:]...)
	return prunedHx, prunedR
}

func colsOf(m *mat.Dense) int {
	_, c := m.Dims()
	return c
}

// rotate2x2Row rotates rows i,k of m by the given cosine/sine pair (shared
// coefficients computed from another matrix's column), used to propagate a
// Givens rotation derived from Hf onto Hx or r.
func rotate2x2Row(m *mat.Dense, i, k int, cs, sn float64) {
	_, c := m.Dims()
	for j := 0; j < c; j++ {
		xi := m.At(i, j)
		xk := m.At(k, j)
		m.Set(i, j, cs*xi+sn*xk)
		m.Set(k, j, -sn*xi+cs*xk)
	}
}

// CompressMeasurement implements spec.md §4.5(f): if Hx has more rows than
// columns, upper-triangularize it via Givens rotations (applying the same
// rotations to r) and truncate to min(rows, cols) rows.
func CompressMeasurement(hx *mat.Dense, r []float64) (*mat.Dense, []float64) {
	rows, cols := hx.Dims()
	if rows <= cols {
		return mat.DenseCopyOf(hx), append([]float64(nil), r...)
	}
	hxC := mat.DenseCopyOf(hx)
	rC := append([]float64(nil), r...)
	for col := 0; col < cols; col++ {
		for row := rows - 1; row > col; row-- {
			a := hxC.At(row-1, col)
			b := hxC.At(row, col)
			if b == 0 {
				continue
			}
			cs, sn := givensCoeffs(a, b)
			rotate2x2Row(hxC, row-1, row, cs, sn)
			applyGivensVec(rC, row-1, row, cs, sn)
		}
	}
	truncated := mat.DenseCopyOf(hxC.Slice(0, cols, 0, cols))
	return truncated, rC[:cols]
}
