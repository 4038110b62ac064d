// Package spline implements the cubic Bézier curve every piece of track is built from.
//
// A Spline is defined by two Controls (position + direction into the curve).
// Everything else (Bézier control points, arc-length lookup table, polyline) is
// derived and recomputed synchronously whenever the controls change, so no stale
// state is ever observable. Derived slices are replaced wholesale, never mutated in
// place, so copying a Spline by value is safe.
package spline

import (
	"fmt"
	"math"

	"nyiyui.ca/hato/senro/geom"
)

// Control is one end of a spline (also known as a knot).
type Control struct {
	Pos geom.Vec3
	// Forward points from Pos into the curve.
	// For a straight piece along +X the start control points to +X and the end control points to -X.
	Forward geom.Vec3
}

func (c Control) String() string {
	return fmt.Sprintf("%s→%s", geom.String(c.Pos), geom.String(c.Forward))
}

type Params struct {
	// MinSegmentLength is the target spacing of the polyline returned by CurvePoints.
	MinSegmentLength float64 `json:"min-segment-length"`
	// MaxSegments caps the polyline's segment count. Zero means no cap.
	MaxSegments int `json:"max-segments"`
	// Samples is the size of the arc-length lookup table.
	Samples int `json:"samples"`
}

func DefaultParams() Params {
	return Params{
		MinSegmentLength: 10,
		MaxSegments:      0,
		Samples:          32,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Samples < 2 {
		p.Samples = d.Samples
	}
	if p.MinSegmentLength < 0 {
		p.MinSegmentLength = 0
	}
	return p
}

// Sample is one row of the arc-length lookup table.
type Sample struct {
	T        float64
	Pos      geom.Vec3
	Distance float64
}

type Spline struct {
	params   Params
	controls [2]Control
	// inner holds explicit interior Bézier points. Set by Split, as scaling the
	// control forwards by the endpoint distance doesn't reproduce a sub-curve.
	inner       [2]geom.Vec3
	innerFilled bool

	curve      [4]geom.Vec3
	lut        []Sample
	points     []geom.Vec3
	pointCount int
	length     float64
}

func New(p Params, controls [2]Control) Spline {
	s := Spline{params: p.withDefaults()}
	s.SetControls(controls)
	return s
}

// SetControls replaces both ends and recomputes everything derived from them.
// Any interior points from a previous Split are dropped.
func (s *Spline) SetControls(controls [2]Control) {
	s.params = s.params.withDefaults()
	s.controls = controls
	s.innerFilled = false
	s.recompute()
}

// setCurve sets the controls together with explicit interior points.
func (s *Spline) setCurve(controls [2]Control, inner [2]geom.Vec3) {
	s.params = s.params.withDefaults()
	s.controls = controls
	s.inner = inner
	s.innerFilled = true
	s.recompute()
}

func (s *Spline) Params() Params { return s.params }

func (s *Spline) Controls() [2]Control { return s.controls }

// ControlPoints returns the four Bézier control points.
func (s *Spline) ControlPoints() [4]geom.Vec3 { return s.curve }

// CurveLength returns the arc length.
func (s *Spline) CurveLength() float64 { return s.length }

// CurvePoints returns points spaced uniformly by arc length, from the start to the end control.
// The slice must not be modified.
func (s *Spline) CurvePoints() []geom.Vec3 { return s.points }

// LUT returns the arc-length lookup table. The slice must not be modified.
func (s *Spline) LUT() []Sample { return s.lut }

func (s *Spline) String() string {
	return fmt.Sprintf("spline(%s %s l%.2f)", s.controls[0], s.controls[1], s.length)
}

func (s *Spline) recompute() {
	c := s.controls
	if s.innerFilled {
		s.curve = [4]geom.Vec3{c[0].Pos, s.inner[0], s.inner[1], c[1].Pos}
	} else {
		l := geom.Distance(c[0].Pos, c[1].Pos)
		s.curve = [4]geom.Vec3{
			c[0].Pos,
			geom.Add(c[0].Pos, geom.Scale(c[0].Forward, l*0.5)),
			geom.Add(c[1].Pos, geom.Scale(c[1].Forward, l*0.5)),
			c[1].Pos,
		}
	}
	s.buildLUT()
	s.buildPoints()
}

func clamp01(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Position evaluates the curve at t (clamped to [0, 1]) by De Casteljau's
// algorithm, so coincident control points give exactly that point.
func (s *Spline) Position(t float64) geom.Vec3 {
	t = clamp01(t)
	p := s.curve
	p012 := geom.Lerp(geom.Lerp(p[0], p[1], t), geom.Lerp(p[1], p[2], t), t)
	p123 := geom.Lerp(geom.Lerp(p[1], p[2], t), geom.Lerp(p[2], p[3], t), t)
	return geom.Lerp(p012, p123, t)
}

func (s *Spline) derivative(t float64) geom.Vec3 {
	t = clamp01(t)
	u := 1 - t
	p := s.curve
	r := geom.Scale(geom.Sub(p[1], p[0]), 3*u*u)
	r = geom.Add(r, geom.Scale(geom.Sub(p[2], p[1]), 6*u*t))
	r = geom.Add(r, geom.Scale(geom.Sub(p[3], p[2]), 3*t*t))
	return r
}

// Forward returns the unit tangent at t, pointing towards increasing t.
func (s *Spline) Forward(t float64) geom.Vec3 {
	if d, ok := geom.Dir(s.derivative(t)); ok {
		return d
	}
	// Coincident control points make the derivative vanish at the ends.
	if d, ok := geom.Dir(geom.Sub(s.curve[3], s.curve[0])); ok {
		return d
	}
	return geom.DirOr(s.controls[0].Forward, geom.Forward)
}
