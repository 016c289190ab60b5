package process

import (
	"math"
	"testing"

	"ekfcal-go/ekf/state"

	"gonum.org/v1/gonum/mat"
)

func floatsClose(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func zeroNoise() [state.BodyStateSize]float64 {
	return [state.BodyStateSize]float64{}
}

func TestPredictZeroDeltaIsNoOp(t *testing.T) {
	s := state.New()
	s.Body.Vel = [3]float64{1, 0, 0}
	s.CurrentTime = 5
	before := mat.DenseCopyOf(s.Cov)

	m := New(zeroNoise())
	m.Predict(s, 5)

	if s.Body.Pos != [3]float64{0, 0, 0} {
		t.Fatalf("expected no mean change, got %v", s.Body.Pos)
	}
	if !mat.Equal(s.Cov, before) {
		t.Fatalf("expected covariance unchanged on zero delta")
	}
}

func TestPredictIntegratesConstantAcceleration(t *testing.T) {
	s := state.New()
	s.Body.Acc = [3]float64{1, 0, 0}
	m := New(zeroNoise())

	dt := 0.01
	for i := 0; i < 100; i++ {
		m.Predict(s, s.CurrentTime+dt)
	}

	if !floatsClose(s.Body.Vel[0], 1.0, 1e-9) {
		t.Fatalf("expected vel.x ~= 1.0, got %v", s.Body.Vel[0])
	}
	if s.Body.Pos[0] < 0.48 || s.Body.Pos[0] > 0.5 {
		t.Fatalf("expected pos.x close to the 0.5 continuous-time limit, got %v", s.Body.Pos[0])
	}
}

func TestPredictNegativeDeltaLeavesMeanUntouchedAndInflatesCovariance(t *testing.T) {
	s := state.New()
	s.Body.Vel = [3]float64{3, 0, 0}
	s.CurrentTime = 10
	noise := zeroNoise()
	noise[0] = 1.0
	m := New(noise)

	beforePos := s.Body.Pos
	beforeDiag := s.Cov.At(0, 0)

	m.Predict(s, 9) // a message that arrived 1s late

	if s.Body.Pos != beforePos {
		t.Fatalf("expected mean untouched on stale message, got %v", s.Body.Pos)
	}
	if s.CurrentTime != 10 {
		t.Fatalf("expected current_time to not move backward, got %v", s.CurrentTime)
	}
	if s.Cov.At(0, 0) <= beforeDiag {
		t.Fatalf("expected covariance inflated on stale message")
	}
}

func TestPredictWithImuDriverOverridesBodyRates(t *testing.T) {
	s := state.New()
	m := New(zeroNoise())

	m.PredictWithImuDriver(s, 1, [3]float64{0, 0, 2}, [3]float64{0, 0, 0})

	if !floatsClose(s.Body.Acc[2], 2, 1e-12) {
		t.Fatalf("expected driver acc to override body.Acc, got %v", s.Body.Acc)
	}
	if !floatsClose(s.Body.Vel[2], 2, 1e-12) {
		t.Fatalf("expected one second of constant acc to integrate into vel.z, got %v", s.Body.Vel[2])
	}
}
