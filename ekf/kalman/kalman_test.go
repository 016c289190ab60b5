package kalman

import (
	"math"
	"testing"

	"ekfcal-go/ekf/state"

	"gonum.org/v1/gonum/mat"
)

func TestUpdateReducesVelocityUncertaintyOnDirectObservation(t *testing.T) {
	s := state.New()
	for i := 0; i < state.BodyStateSize; i++ {
		s.Cov.Set(i, i, 1.0)
	}

	h := mat.NewDense(1, state.BodyStateSize, nil)
	h.Set(0, 3, 1) // observes vel.x directly
	r := mat.NewDense(1, 1, []float64{0.01})
	y := []float64{2.0} // z - h(x), x starts at vel.x = 0

	if err := Update(s, h, r, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Body.Vel[0] <= 0 || s.Body.Vel[0] > 2.0 {
		t.Fatalf("expected vel.x pulled toward 2.0, got %v", s.Body.Vel[0])
	}
	if s.Cov.At(3, 3) >= 1.0 {
		t.Fatalf("expected reduced variance after update, got %v", s.Cov.At(3, 3))
	}
}

func TestUpdateKeepsCovarianceSymmetric(t *testing.T) {
	s := state.New()
	for i := 0; i < state.BodyStateSize; i++ {
		s.Cov.Set(i, i, 1.0)
	}
	h := mat.NewDense(2, state.BodyStateSize, nil)
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
	r := mat.NewDense(2, 2, []float64{0.05, 0, 0, 0.05})
	y := []float64{0.1, -0.1}

	if err := Update(s, h, r, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := s.Cov.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(s.Cov.At(i, j)-s.Cov.At(j, i)) > 1e-10 {
				t.Fatalf("covariance not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

func TestUpdateRejectsMismatchedDimensions(t *testing.T) {
	s := state.New()
	h := mat.NewDense(1, state.BodyStateSize-1, nil)
	r := mat.NewDense(1, 1, []float64{1})
	if err := Update(s, h, r, []float64{0}); err == nil {
		t.Fatalf("expected a dimension mismatch error")
	}
}
