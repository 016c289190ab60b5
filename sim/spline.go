package sim

import (
	"ekfcal-go/mathkit"

	"gonum.org/v1/gonum/interp"
)

// Waypoint is one control point of a SplineTruth trajectory: a time, a
// global position, and an orientation to interpolate through.
type Waypoint struct {
	Time float64
	Pos  [3]float64
	Ang  mathkit.Quaternion
}

// SplineTruth fits a piecewise-cubic curve through a list of Waypoints per
// axis, grounded on
// _examples/original_source/src/infrastructure/sim/TruthEngineSpline.cpp's
// m_posSpline/m_angSpline evaluated with 1st/2nd derivatives; since gonum's
// interp package does not expose analytic derivatives, velocity and
// acceleration are recovered by central finite differencing the fitted
// curve instead of differentiating the spline symbolically.
type SplineTruth struct {
	waypoints []Waypoint
	minT, maxT float64

	posX, posY, posZ interp.NaturalCubic
	angles           [3]interp.NaturalCubic // per-axis rotation-vector components
}

// NewSplineTruth fits a SplineTruth over the given waypoints, which must be
// sorted by increasing Time. Orientation is interpolated per-axis over the
// waypoints' rotation-vector representation (log map), matching the small-
// angle assumption the fixed-step filter operates under between keyframes.
func NewSplineTruth(waypoints []Waypoint) (*SplineTruth, error) {
	n := len(waypoints)
	ts := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	rv := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}

	for i, w := range waypoints {
		ts[i] = w.Time
		xs[i] = w.Pos[0]
		ys[i] = w.Pos[1]
		zs[i] = w.Pos[2]
		lv := mathkit.ToRotVec(w.Ang)
		rv[0][i], rv[1][i], rv[2][i] = lv[0], lv[1], lv[2]
	}

	st := &SplineTruth{waypoints: waypoints, minT: ts[0], maxT: ts[n-1]}
	if err := st.posX.Fit(ts, xs); err != nil {
		return nil, err
	}
	if err := st.posY.Fit(ts, ys); err != nil {
		return nil, err
	}
	if err := st.posZ.Fit(ts, zs); err != nil {
		return nil, err
	}
	for a := 0; a < 3; a++ {
		if err := st.angles[a].Fit(ts, rv[a]); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// clampTime mirrors TruthEngineSpline's IsTimeInvalid guard: outside the
// fitted domain the curve is held at its boundary value.
func (s *SplineTruth) clampTime(t float64) float64 {
	if t < s.minT {
		return s.minT
	}
	if t > s.maxT {
		return s.maxT
	}
	return t
}

const splineFiniteDiffH = 1e-4

func (s *SplineTruth) evalPos(t float64) [3]float64 {
	t = s.clampTime(t)
	return [3]float64{s.posX.Predict(t), s.posY.Predict(t), s.posZ.Predict(t)}
}

func (s *SplineTruth) Position(t float64) [3]float64 {
	return s.evalPos(t)
}

func (s *SplineTruth) Velocity(t float64) [3]float64 {
	t0 := s.clampTime(t - splineFiniteDiffH)
	t1 := s.clampTime(t + splineFiniteDiffH)
	p0 := s.evalPos(t0)
	p1 := s.evalPos(t1)
	dt := t1 - t0
	if dt == 0 {
		return [3]float64{}
	}
	return [3]float64{(p1[0] - p0[0]) / dt, (p1[1] - p0[1]) / dt, (p1[2] - p0[2]) / dt}
}

func (s *SplineTruth) Acceleration(t float64) [3]float64 {
	t0 := s.clampTime(t - splineFiniteDiffH)
	t1 := s.clampTime(t + splineFiniteDiffH)
	pm := s.evalPos(s.clampTime(t))
	p0 := s.evalPos(t0)
	p1 := s.evalPos(t1)
	h := splineFiniteDiffH
	return [3]float64{
		(p1[0] - 2*pm[0] + p0[0]) / (h * h),
		(p1[1] - 2*pm[1] + p0[1]) / (h * h),
		(p1[2] - 2*pm[2] + p0[2]) / (h * h),
	}
}

func (s *SplineTruth) evalRotVec(t float64) [3]float64 {
	t = s.clampTime(t)
	return [3]float64{s.angles[0].Predict(t), s.angles[1].Predict(t), s.angles[2].Predict(t)}
}

func (s *SplineTruth) AngularPosition(t float64) mathkit.Quaternion {
	rv := s.evalRotVec(t)
	return mathkit.FromRotVec(rv[:])
}

func (s *SplineTruth) AngularRate(t float64) [3]float64 {
	t0 := s.clampTime(t - splineFiniteDiffH)
	t1 := s.clampTime(t + splineFiniteDiffH)
	r0 := s.evalRotVec(t0)
	r1 := s.evalRotVec(t1)
	dt := t1 - t0
	if dt == 0 {
		return [3]float64{}
	}
	return [3]float64{(r1[0] - r0[0]) / dt, (r1[1] - r0[1]) / dt, (r1[2] - r0[2]) / dt}
}

func (s *SplineTruth) AngularAcceleration(t float64) [3]float64 {
	t0 := s.clampTime(t - splineFiniteDiffH)
	t1 := s.clampTime(t + splineFiniteDiffH)
	rm := s.evalRotVec(s.clampTime(t))
	r0 := s.evalRotVec(t0)
	r1 := s.evalRotVec(t1)
	h := splineFiniteDiffH
	return [3]float64{
		(r1[0] - 2*rm[0] + r0[0]) / (h * h),
		(r1[1] - 2*rm[1] + r0[1]) / (h * h),
		(r1[2] - 2*rm[2] + r0[2]) / (h * h),
	}
}
