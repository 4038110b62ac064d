package spline

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"nyiyui.ca/hato/senro/geom"
)

func straight(length float64) Spline {
	return New(DefaultParams(), [2]Control{
		{Pos: geom.V(0, 0, 0), Forward: geom.V(1, 0, 0)},
		{Pos: geom.V(length, 0, 0), Forward: geom.V(-1, 0, 0)},
	})
}

func curved() Spline {
	return New(DefaultParams(), [2]Control{
		{Pos: geom.V(0, 0, 0), Forward: geom.V(1, 0, 0)},
		{Pos: geom.V(60, 0, 60), Forward: geom.V(0, 0, -1)},
	})
}

func bernstein(p [4]geom.Vec3, t float64) geom.Vec3 {
	u := 1 - t
	r := geom.Scale(p[0], u*u*u)
	r = geom.Add(r, geom.Scale(p[1], 3*u*u*t))
	r = geom.Add(r, geom.Scale(p[2], 3*u*t*t))
	return geom.Add(r, geom.Scale(p[3], t*t*t))
}

func TestPositionMatchesBernstein(t *testing.T) {
	s := curved()
	for i := 0; i <= 40; i++ {
		u := float64(i) / 40
		got := s.Position(u)
		want := bernstein(s.ControlPoints(), u)
		if !geom.ApproxEqual(got, want, 1e-5) {
			t.Fatalf("t=%.3f: Position %s, Bernstein form %s", u, geom.String(got), geom.String(want))
		}
	}
}

func TestControlPointsHeuristic(t *testing.T) {
	s := straight(40)
	want := [4]geom.Vec3{geom.V(0, 0, 0), geom.V(20, 0, 0), geom.V(20, 0, 0), geom.V(40, 0, 0)}
	if got := s.ControlPoints(); !cmp.Equal(got, want) {
		t.Fatalf("ControlPoints diff: %s", cmp.Diff(got, want))
	}
	if math.Abs(s.CurveLength()-40) > 1e-6 {
		t.Fatalf("CurveLength = %f", s.CurveLength())
	}
}

func TestDistanceRoundTrip(t *testing.T) {
	for _, s := range []Spline{straight(100), curved()} {
		s := s
		t.Run(s.String(), func(t *testing.T) {
			for i := 0; i <= 50; i++ {
				d := s.CurveLength() * float64(i) / 50
				got := s.DistanceAt(s.TFromDistance(d))
				if math.Abs(got-d) > 1e-2 {
					t.Fatalf("distance %.4f round-tripped to %.4f", d, got)
				}
			}
		})
	}
}

func TestTFromPos(t *testing.T) {
	s := curved()
	for _, want := range []float64{0, 0.1, 0.37, 0.5, 0.81, 1} {
		got := s.TFromPos(s.Position(want))
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("TFromPos(Position(%.2f)) = %.5f", want, got)
		}
	}
	// off the curve: nearest point on a straight line is the orthogonal projection
	st := straight(100)
	got := st.Position(st.TFromPos(geom.V(30, 0, 7)))
	if !geom.ApproxEqual(got, geom.V(30, 0, 0), 1e-2) {
		t.Fatalf("projection = %s", geom.String(got))
	}
	// beyond the ends clamps
	if got := st.TFromPos(geom.V(-50, 0, 0)); got != 0 {
		t.Fatalf("TFromPos before start = %f", got)
	}
	if got := st.TFromPos(geom.V(150, 0, 0)); got != 1 {
		t.Fatalf("TFromPos after end = %f", got)
	}
}

func TestSetControlsIdempotent(t *testing.T) {
	a := curved()
	b := curved()
	b.SetControls(a.Controls())
	b.SetControls(a.Controls())
	if !cmp.Equal(a.LUT(), b.LUT()) {
		t.Fatalf("LUT diff: %s", cmp.Diff(a.LUT(), b.LUT()))
	}
	if !cmp.Equal(a.CurvePoints(), b.CurvePoints()) {
		t.Fatalf("CurvePoints diff: %s", cmp.Diff(a.CurvePoints(), b.CurvePoints()))
	}
	if a.CurveLength() != b.CurveLength() {
		t.Fatalf("CurveLength %f != %f", a.CurveLength(), b.CurveLength())
	}
}

func TestCurvePoints(t *testing.T) {
	s := straight(100)
	points := s.CurvePoints()
	if len(points) != 11 {
		t.Fatalf("got %d points", len(points))
	}
	want := make([]geom.Vec3, 11)
	for i := range want {
		want[i] = geom.V(float64(i)*10, 0, 0)
	}
	if !cmp.Equal(points, want, cmpopts.EquateApprox(0, 1e-2)) {
		t.Fatalf("CurvePoints diff: %s", cmp.Diff(points, want))
	}

	p := DefaultParams()
	p.MaxSegments = 4
	capped := New(p, s.Controls())
	if got := len(capped.CurvePoints()); got != 5 {
		t.Fatalf("capped: got %d points", got)
	}
}

func TestSplit(t *testing.T) {
	s := curved()
	for _, u := range []float64{0.2, 0.5, 0.73} {
		u := u
		t.Run(fmt.Sprint(u), func(t *testing.T) {
			pos := geom.Add(s.Position(u), geom.V(0, 0.5, 0))
			a, b := s.Split(pos)
			if sum := a.CurveLength() + b.CurveLength(); math.Abs(sum-s.CurveLength()) > 0.05 {
				t.Fatalf("lengths %.4f + %.4f = %.4f, original %.4f", a.CurveLength(), b.CurveLength(), sum, s.CurveLength())
			}
			boundary := s.Position(s.TFromPos(pos))
			if !geom.ApproxEqual(a.Controls()[1].Pos, boundary, 1e-6) || !geom.ApproxEqual(b.Controls()[0].Pos, boundary, 1e-6) {
				t.Fatalf("boundary %s / %s, want %s", geom.String(a.Controls()[1].Pos), geom.String(b.Controls()[0].Pos), geom.String(boundary))
			}
			if a.Controls()[0] != s.Controls()[0] || b.Controls()[1] != s.Controls()[1] {
				t.Fatalf("outer controls changed")
			}
			// the halves trace the original curve
			for i := 0; i <= 10; i++ {
				v := float64(i) / 10
				p := a.Position(v)
				q := s.Position(s.TFromPos(p))
				if !geom.ApproxEqual(p, q, 1e-2) {
					t.Fatalf("first half point %s is off the original curve (%s)", geom.String(p), geom.String(q))
				}
			}
			// interior forwards point into each half
			if geom.Dot(a.Controls()[1].Forward, s.Forward(s.TFromPos(pos))) >= 0 {
				t.Fatalf("first half end forward doesn't point back into the curve")
			}
			if geom.Dot(b.Controls()[0].Forward, s.Forward(s.TFromPos(pos))) <= 0 {
				t.Fatalf("second half start forward doesn't point into the curve")
			}
		})
	}
}

func TestTraverse(t *testing.T) {
	s := straight(100)
	start := s.TFromDistance(20)
	got := s.LUTDistance(s.Traverse(start, 10))
	if math.Abs(got-30) > 0.5 {
		t.Fatalf("moved to %.3f, want 30", got)
	}
	got = s.LUTDistance(s.Traverse(start, -5))
	if math.Abs(got-15) > 0.5 {
		t.Fatalf("moved back to %.3f, want 15", got)
	}
	if got := s.Traverse(start, -50); got != 0 {
		t.Fatalf("Traverse past start = %f", got)
	}
	if got := s.Traverse(0, -1); got != 0 {
		t.Fatalf("Traverse at start = %f", got)
	}
	if got := s.Traverse(start, 500); got != 1 {
		t.Fatalf("Traverse past end = %f", got)
	}

	c := curved()
	u := 0.0
	for i := 0; i < 2000; i++ {
		next := c.Traverse(u, 0.05)
		if next < u {
			t.Fatalf("step %d went backwards: %f → %f", i, u, next)
		}
		u = next
	}
}

func TestDegenerate(t *testing.T) {
	cases := map[string]Control{
		"axis":    {Pos: geom.V(5, 0, 5), Forward: geom.V(0, 0, -1)},
		"oblique": {Pos: geom.V(12.3, 0, -7.1), Forward: geom.V(0.6, 0, 0.8)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			s := New(DefaultParams(), [2]Control{c, c})
			if s.CurveLength() != 0 {
				t.Fatalf("CurveLength = %g", s.CurveLength())
			}
			for _, u := range []float64{0, 0.3, 0.5, 1} {
				if got := s.Position(u); got != c.Pos {
					t.Fatalf("Position(%.1f) = %s, want %s", u, geom.String(got), geom.String(c.Pos))
				}
			}
			f := s.Forward(0.5)
			if math.IsNaN(f[0]) || math.IsNaN(f[2]) {
				t.Fatalf("Forward = %s", geom.String(f))
			}
			if got := s.TFromDistance(3); got != 0 {
				t.Fatalf("TFromDistance = %f", got)
			}
			if got := s.Traverse(0.5, 3); got != 0.5 {
				t.Fatalf("Traverse = %f", got)
			}
		})
	}
}
