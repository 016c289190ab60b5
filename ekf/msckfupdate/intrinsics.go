package msckfupdate

// Intrinsics holds one camera's pinhole + radial/tangential distortion model
// (spec.md §6's camera.<name>.intrinsics key tree).
type Intrinsics struct {
	F, Cx, Cy      float64
	K1, K2         float64
	P1, P2         float64
	PixelSize      float64
}

// Undistort maps a raw pixel (u, v) to normalized, undistorted camera
// coordinates (ubar, vbar) via the standard pinhole-plus-Brown-Conrady
// inverse: start from the linear normalized guess, then run five
// fixed-point iterations to invert the forward distortion model.
func Undistort(u, v float64, intr Intrinsics) (float64, float64) {
	xn := (u - intr.Cx) / intr.F
	yn := (v - intr.Cy) / intr.F
	x, y := xn, yn
	for i := 0; i < 5; i++ {
		r2 := x*x + y*y
		radial := 1 + intr.K1*r2 + intr.K2*r2*r2
		dx := 2*intr.P1*x*y + intr.P2*(r2+2*x*x)
		dy := intr.P1*(r2+2*y*y) + 2*intr.P2*x*y
		x = (xn - dx) / radial
		y = (yn - dy) / radial
	}
	return x, y
}

// Distort maps normalized camera coordinates (x, y) forward through the
// Brown-Conrady radial/tangential model to a raw pixel (u, v), the inverse
// of Undistort. Used by sim's synthetic camera generator.
func Distort(x, y float64, intr Intrinsics) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + intr.K1*r2 + intr.K2*r2*r2
	dx := 2*intr.P1*x*y + intr.P2*(r2+2*x*x)
	dy := intr.P1*(r2+2*y*y) + 2*intr.P2*x*y
	xd := x*radial + dx
	yd := y*radial + dy
	return intr.F*xd + intr.Cx, intr.F*yd + intr.Cy
}

// dznDPfc returns the 2x3 Jacobian of the normalized projection (x/z, y/z)
// with respect to a point p in the projecting camera's frame. Fixed form
// per the open-question decision in DESIGN.md: row 1 uses 1/pz at (1,1)
// and -py/pz^2 at (1,2), not a duplicate of row 0's 1/pz term.
func dznDPfc(p []float64) [2][3]float64 {
	pz := p[2]
	return [2][3]float64{
		{1 / pz, 0, -p[0] / (pz * pz)},
		{0, 1 / pz, -p[1] / (pz * pz)},
	}
}
