// Package mathkit collects the 3D rotation, skew-symmetric, and dense-matrix
// primitives shared by the filter's process and update kernels.
package mathkit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Quaternion is a Hamilton (w, x, y, z) unit quaternion, nominal orientation
// storage for the error-state filter: the covariance carries only a 3-vector
// rotation-vector error around this nominal value.
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity returns the identity rotation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the quaternion's Euclidean norm.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalized returns q scaled to unit norm.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n < 1e-15 {
		return Identity()
	}
	return Quaternion{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// Mul composes rotations: (q*r) applies r first, then q.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns the inverse rotation for a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// ToMat returns the 3x3 rotation matrix R such that R*v rotates v by q.
func (q Quaternion) ToMat() *mat.Dense {
	q = q.Normalized()
	w, x, y, z := q.W, q.X, q.Y, q.Z
	r := mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
	return r
}

// FromRotVec builds a quaternion from a rotation vector (axis * angle),
// exact exponential map, small-angle safe.
func FromRotVec(v []float64) Quaternion {
	theta := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if theta < 1e-8 {
		return Quaternion{1, 0.5 * v[0], 0.5 * v[1], 0.5 * v[2]}.Normalized()
	}
	s := math.Sin(theta/2) / theta
	return Quaternion{math.Cos(theta / 2), v[0] * s, v[1] * s, v[2] * s}
}

// ToRotVec is the inverse of FromRotVec: the exponential-map log of q,
// axis * angle with angle in [0, pi].
func ToRotVec(q Quaternion) [3]float64 {
	q = q.Normalized()
	if q.W < 0 {
		q = Quaternion{-q.W, -q.X, -q.Y, -q.Z}
	}
	sinHalf := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if sinHalf < 1e-8 {
		return [3]float64{2 * q.X, 2 * q.Y, 2 * q.Z}
	}
	theta := 2 * math.Atan2(sinHalf, q.W)
	s := theta / sinHalf
	return [3]float64{q.X * s, q.Y * s, q.Z * s}
}

// ComposeError applies a small rotation-vector error dtheta onto the nominal
// quaternion q and returns the updated, renormalized nominal. This is the
// "compose then reset error to zero" update from the design notes.
func ComposeError(q Quaternion, dtheta []float64) Quaternion {
	dq := FromRotVec(dtheta)
	return q.Mul(dq).Normalized()
}

// Skew returns the skew-symmetric cross-product matrix [v]x such that
// [v]x * u == v cross u.
func Skew(v []float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	})
}

// Cross returns a cross b for 3-vectors.
func Cross(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Identity3 returns a 3x3 identity matrix.
func Identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}

// IdentityN returns an n x n identity matrix.
func IdentityN(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Vec3 wraps 3 scalars as a []float64 slice for use with matrix helpers.
func Vec3(x, y, z float64) []float64 { return []float64{x, y, z} }
