package spline

import "nyiyui.ca/hato/senro/geom"

// Split cuts the curve at the point nearest to pos.
// See SplitAt.
func (s *Spline) Split(pos geom.Vec3) (Spline, Spline) {
	return s.SplitAt(s.TFromPos(pos))
}

// SplitAt cuts the curve at t using De Casteljau subdivision.
// The two halves trace exactly the same path as s; their shared end is Position(t).
// Both carry explicit interior points (see Spline.inner).
func (s *Spline) SplitAt(t float64) (Spline, Spline) {
	t = clamp01(t)
	p := s.curve
	p01 := geom.Lerp(p[0], p[1], t)
	p12 := geom.Lerp(p[1], p[2], t)
	p23 := geom.Lerp(p[2], p[3], t)
	p012 := geom.Lerp(p01, p12, t)
	p123 := geom.Lerp(p12, p23, t)
	mid := geom.Lerp(p012, p123, t)

	tangent := s.Forward(t)
	a := Spline{params: s.params}
	a.setCurve([2]Control{
		s.controls[0],
		{Pos: mid, Forward: geom.DirOr(geom.Sub(p012, mid), geom.Neg(tangent))},
	}, [2]geom.Vec3{p01, p012})
	b := Spline{params: s.params}
	b.setCurve([2]Control{
		{Pos: mid, Forward: geom.DirOr(geom.Sub(p123, mid), tangent)},
		s.controls[1],
	}, [2]geom.Vec3{p123, p23})
	return a, b
}
