package mathkit

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPseudoInverseSolve3RecoversFullRankSystem(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 3, 0,
		0, 0, 4,
	})
	x, ok := PseudoInverseSolve3(a, []float64{2, 6, 12}, 1e-6)
	if !ok {
		t.Fatalf("expected a full-rank system to solve")
	}
	want := []float64{1, 2, 3}
	for i, w := range want {
		if !floatsClose(x[i], w, 1e-9) {
			t.Fatalf("expected %v, got %v", want, x)
		}
	}
}

// TestPseudoInverseSolve3RejectsRankDeficientProjector guards the
// triangulation rank check: a single bearing projector A = [b]x^T[b]x can
// only ever constrain 2 of 3 degrees of freedom, so its smallest singular
// value is (near) zero regardless of b.
func TestPseudoInverseSolve3RejectsRankDeficientProjector(t *testing.T) {
	bSkew := Skew([]float64{0, 0, 1})
	var a mat.Dense
	a.Mul(bSkew.T(), bSkew)
	_, ok := PseudoInverseSolve3(&a, []float64{1, 0, 0}, 1e-6)
	if ok {
		t.Fatalf("expected a rank-2 projector to be rejected as rank-deficient")
	}
}
