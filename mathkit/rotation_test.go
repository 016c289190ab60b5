package mathkit

import (
	"math"
	"testing"
)

func floatsClose(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestQuaternionNormPreservedUnderSmallError(t *testing.T) {
	q := Identity()
	dtheta := []float64{1e-4, -2e-4, 5e-5}
	q2 := ComposeError(q, dtheta)
	if !floatsClose(q2.Norm(), 1.0, 1e-10) {
		t.Fatalf("expected unit norm, got %v", q2.Norm())
	}
}

func TestFromRotVecIdentity(t *testing.T) {
	q := FromRotVec([]float64{0, 0, 0})
	if !floatsClose(q.W, 1, 1e-12) || !floatsClose(q.X, 0, 1e-12) {
		t.Fatalf("expected identity, got %+v", q)
	}
}

func TestToMatRotatesZAxis90(t *testing.T) {
	q := FromRotVec([]float64{0, 0, math.Pi / 2})
	r := q.ToMat()
	// rotating (1,0,0) by 90deg about z should give ~(0,1,0)
	x := r.At(0, 0)*1 + r.At(0, 1)*0 + r.At(0, 2)*0
	y := r.At(1, 0)*1 + r.At(1, 1)*0 + r.At(1, 2)*0
	if !floatsClose(x, 0, 1e-9) || !floatsClose(y, 1, 1e-9) {
		t.Fatalf("expected (0,1,0), got (%v,%v)", x, y)
	}
}

func TestSkewCrossEquivalence(t *testing.T) {
	v := []float64{1, 2, 3}
	u := []float64{4, -1, 2}
	s := Skew(v)
	got := make([]float64, 3)
	for i := 0; i < 3; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += s.At(i, j) * u[j]
		}
		got[i] = sum
	}
	want := Cross(v, u)
	for i := range want {
		if !floatsClose(got[i], want[i], 1e-12) {
			t.Fatalf("skew(v)*u != v x u: got %v want %v", got, want)
		}
	}
}
