// Package sim implements spec.md §6's simulation sub-tree: analytic ground
// truth trajectories (cyclic or spline) plus synthetic sensor generation
// with optional injected error, for driving the filter end-to-end without
// live hardware.
package sim

import (
	"math"

	"ekfcal-go/mathkit"
)

// Truth is the ground-truth body trajectory interface both TruthType
// implementations satisfy (spec.md §6's `sim_params.truth_type`).
type Truth interface {
	Position(t float64) [3]float64
	Velocity(t float64) [3]float64
	Acceleration(t float64) [3]float64
	AngularPosition(t float64) mathkit.Quaternion
	AngularRate(t float64) [3]float64
	AngularAcceleration(t float64) [3]float64
}

// CyclicTruth is a per-axis sinusoidal trajectory, grounded on
// _examples/original_source/src/infrastructure/sim/TruthEngineCyclic.cpp:
// position(t) = sin(f*t), velocity/acceleration are the analytic
// derivatives rotated into the current angular-position frame, and
// orientation is an XYZ Euler composition of per-axis sinusoids.
type CyclicTruth struct {
	PosFreq [3]float64
	AngFreq [3]float64
}

func (c CyclicTruth) Position(t float64) [3]float64 {
	return [3]float64{
		math.Sin(c.PosFreq[0] * t),
		math.Sin(c.PosFreq[1] * t),
		math.Sin(c.PosFreq[2] * t),
	}
}

func (c CyclicTruth) Velocity(t float64) [3]float64 {
	raw := [3]float64{
		c.PosFreq[0] * math.Cos(c.PosFreq[0]*t),
		c.PosFreq[1] * math.Cos(c.PosFreq[1]*t),
		c.PosFreq[2] * math.Cos(c.PosFreq[2]*t),
	}
	return rotate(c.AngularPosition(t), raw)
}

func (c CyclicTruth) Acceleration(t float64) [3]float64 {
	raw := [3]float64{
		-c.PosFreq[0] * c.PosFreq[0] * math.Sin(c.PosFreq[0]*t),
		-c.PosFreq[1] * c.PosFreq[1] * math.Sin(c.PosFreq[1]*t),
		-c.PosFreq[2] * c.PosFreq[2] * math.Sin(c.PosFreq[2]*t),
	}
	return rotate(c.AngularPosition(t), raw)
}

func (c CyclicTruth) AngularPosition(t float64) mathkit.Quaternion {
	a := math.Sin(c.AngFreq[0] * t)
	b := math.Sin(c.AngFreq[1] * t)
	g := math.Sin(c.AngFreq[2] * t)
	qx := mathkit.FromRotVec([]float64{a, 0, 0})
	qy := mathkit.FromRotVec([]float64{0, b, 0})
	qz := mathkit.FromRotVec([]float64{0, 0, g})
	return qx.Mul(qy).Mul(qz)
}

func (c CyclicTruth) AngularRate(t float64) [3]float64 {
	return [3]float64{
		c.AngFreq[0] * math.Cos(c.AngFreq[0]*t),
		c.AngFreq[1] * math.Cos(c.AngFreq[1]*t),
		c.AngFreq[2] * math.Cos(c.AngFreq[2]*t),
	}
}

func (c CyclicTruth) AngularAcceleration(t float64) [3]float64 {
	return [3]float64{
		-c.AngFreq[0] * c.AngFreq[0] * math.Sin(c.AngFreq[0]*t),
		-c.AngFreq[1] * c.AngFreq[1] * math.Sin(c.AngFreq[1]*t),
		-c.AngFreq[2] * c.AngFreq[2] * math.Sin(c.AngFreq[2]*t),
	}
}

func rotate(q mathkit.Quaternion, v [3]float64) [3]float64 {
	r := q.ToMat()
	return [3]float64{
		r.At(0, 0)*v[0] + r.At(0, 1)*v[1] + r.At(0, 2)*v[2],
		r.At(1, 0)*v[0] + r.At(1, 1)*v[1] + r.At(1, 2)*v[2],
		r.At(2, 0)*v[0] + r.At(2, 1)*v[1] + r.At(2, 2)*v[2],
	}
}
