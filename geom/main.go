// Package geom has the small amount of vector math the rail network needs.
// Vectors are go3d's float64 vec3.T; the helpers here take and return values so
// callers never have to take the address of a temporary.
package geom

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ungerik/go3d/float64/vec3"
)

type Vec3 = vec3.T

// Up is the vertical axis. All rotations are about it.
var Up = Vec3{0, 1, 0}

// Forward is the default facing direction (negative Z).
var Forward = Vec3{0, 0, -1}

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func Add(a, b Vec3) Vec3 { return vec3.Add(&a, &b) }

func Sub(a, b Vec3) Vec3 { return vec3.Sub(&a, &b) }

func Scale(a Vec3, f float64) Vec3 { return a.Scaled(f) }

func Neg(a Vec3) Vec3 { return a.Scaled(-1) }

func Dot(a, b Vec3) float64 { return vec3.Dot(&a, &b) }

func Cross(a, b Vec3) Vec3 { return vec3.Cross(&a, &b) }

func Length(a Vec3) float64 { return a.Length() }

func LengthSqr(a Vec3) float64 { return vec3.Dot(&a, &a) }

func Distance(a, b Vec3) float64 {
	d := Sub(a, b)
	return d.Length()
}

func DistanceSqr(a, b Vec3) float64 {
	return LengthSqr(Sub(a, b))
}

// Lerp returns a + (b-a)*t.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Add(a, Scale(Sub(b, a), t))
}

// Normalize returns a unit vector in the direction of a. The zero vector is returned unchanged.
func Normalize(a Vec3) Vec3 {
	return DirOr(a, a)
}

// Dir is Normalize, but reports whether a had a usable direction at all.
func Dir(a Vec3) (Vec3, bool) {
	l := a.Length()
	if l < 1e-9 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}, false
	}
	return Scale(a, 1/l), true
}

// DirOr is Dir with a fallback for degenerate input.
func DirOr(a, fallback Vec3) Vec3 {
	d, ok := Dir(a)
	if !ok {
		return fallback
	}
	return d
}

// AngleBetween returns the unsigned angle in radians between a and b.
// Degenerate (zero-length) input gives 0.
func AngleBetween(a, b Vec3) float64 {
	la := a.Length()
	lb := b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	c := Dot(a, b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// RotateY rotates v counter-clockwise (seen from above) about Up by angle radians.
func RotateY(v Vec3, angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{
		v[0]*c + v[2]*s,
		v[1],
		-v[0]*s + v[2]*c,
	}
}

// Reflect reflects v across the plane with unit normal n.
func Reflect(v, n Vec3) Vec3 {
	return Sub(v, Scale(n, 2*Dot(v, n)))
}

// ApproxEqual reports whether every component of a and b is within eps.
func ApproxEqual(a, b Vec3, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// Sphere is a bounding sphere used for proximity queries.
type Sphere struct {
	Center Vec3
	Radius float64
}

func (s Sphere) Intersects(o Sphere) bool {
	r := s.Radius + o.Radius
	return DistanceSqr(s.Center, o.Center) <= r*r
}

func (s Sphere) Contains(p Vec3) bool {
	return DistanceSqr(s.Center, p) <= s.Radius*s.Radius
}

// Box returns the axis-aligned bounds of the sphere.
func (s Sphere) Box() (min, max Vec3) {
	r := Vec3{s.Radius, s.Radius, s.Radius}
	return Sub(s.Center, r), Add(s.Center, r)
}

// Rect formats the sphere's bounds the way buntdb's IndexRect parses them.
func (s Sphere) Rect() string {
	min, max := s.Box()
	return fmt.Sprintf("[%s %s %s],[%s %s %s]",
		ff(min[0]), ff(min[1]), ff(min[2]),
		ff(max[0]), ff(max[1]), ff(max[2]))
}

func ff(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func String(v Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v[0], v[1], v[2])
}
