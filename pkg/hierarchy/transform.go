package hierarchy

import "math"

// Vec3 is a three component vector in local space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

var (
	// Zero is the origin.
	Zero = Vec3{}
	// One is the unit scale.
	One = Vec3{X: 1, Y: 1, Z: 1}
	// Forward is the local +Z axis.
	Forward = Vec3{Z: 1}
)

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Mul returns v scaled by f.
func (v Vec3) Mul(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Identity is the no-op rotation.
var Identity = Quat{W: 1}

// Euler builds a rotation from angles in degrees, applied Z, X then Y.
func Euler(x, y, z float64) Quat {
	const deg2rad = math.Pi / 180
	hx, hy, hz := x*deg2rad/2, y*deg2rad/2, z*deg2rad/2
	sx, cx := math.Sin(hx), math.Cos(hx)
	sy, cy := math.Sin(hy), math.Cos(hy)
	sz, cz := math.Sin(hz), math.Cos(hz)
	return Quat{
		X: cy*sx*cz + sy*cx*sz,
		Y: sy*cx*cz - cy*sx*sz,
		Z: cy*cx*sz - sy*sx*cz,
		W: cy*cx*cz + sy*sx*sz,
	}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// t = 2 * cross(q.xyz, v)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)
	return Vec3{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}

// Transform is a node's local position, rotation and scale.
type Transform struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
	Scale    Vec3 `json:"scale" yaml:"scale"`
}

// DefaultTransform is positioned at the origin with identity rotation and unit scale.
func DefaultTransform() Transform {
	return Transform{Rotation: Identity, Scale: One}
}

// Normalized fills a zero rotation or zero scale with identity values. Templates decoded
// from files frequently omit them.
func (t Transform) Normalized() Transform {
	if t.Rotation == (Quat{}) {
		t.Rotation = Identity
	}
	if t.Scale == (Vec3{}) {
		t.Scale = One
	}
	return t
}
