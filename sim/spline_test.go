package sim

import (
	"testing"

	"ekfcal-go/mathkit"
)

func TestSplineTruthInterpolatesThroughWaypoints(t *testing.T) {
	wps := []Waypoint{
		{Time: 0, Pos: [3]float64{0, 0, 0}, Ang: mathkit.Identity()},
		{Time: 1, Pos: [3]float64{1, 0, 0}, Ang: mathkit.Identity()},
		{Time: 2, Pos: [3]float64{2, 1, 0}, Ang: mathkit.Identity()},
	}
	st, err := NewSplineTruth(wps)
	if err != nil {
		t.Fatalf("unexpected error fitting spline: %v", err)
	}
	p := st.Position(1)
	if !floatsClose(p[0], 1, 1e-6) || !floatsClose(p[1], 0, 1e-6) {
		t.Fatalf("expected the spline to pass through waypoint at t=1, got %+v", p)
	}
}

func TestSplineTruthClampsOutsideDomain(t *testing.T) {
	wps := []Waypoint{
		{Time: 0, Pos: [3]float64{0, 0, 0}, Ang: mathkit.Identity()},
		{Time: 1, Pos: [3]float64{1, 0, 0}, Ang: mathkit.Identity()},
	}
	st, err := NewSplineTruth(wps)
	if err != nil {
		t.Fatalf("unexpected error fitting spline: %v", err)
	}
	pBefore := st.Position(-5)
	pAt0 := st.Position(0)
	if !floatsClose(pBefore[0], pAt0[0], 1e-9) {
		t.Fatalf("expected time before the domain to clamp to t=0's value")
	}
}

func TestSplineTruthVelocityIsFiniteNearWaypoints(t *testing.T) {
	wps := []Waypoint{
		{Time: 0, Pos: [3]float64{0, 0, 0}, Ang: mathkit.Identity()},
		{Time: 1, Pos: [3]float64{1, 0, 0}, Ang: mathkit.Identity()},
		{Time: 2, Pos: [3]float64{2, 1, 0}, Ang: mathkit.Identity()},
	}
	st, err := NewSplineTruth(wps)
	if err != nil {
		t.Fatalf("unexpected error fitting spline: %v", err)
	}
	v := st.Velocity(1)
	for i, val := range v {
		if val != val { // NaN check
			t.Fatalf("expected finite velocity component %d, got NaN", i)
		}
	}
}
