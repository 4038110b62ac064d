package train

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/spline"
)

func newTestNetwork(t *testing.T) *rail.Network {
	n, err := rail.NewNetwork(rail.DefaultParams())
	if err != nil {
		t.Fatalf("NewNetwork: %s", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func addRail(t *testing.T, n *rail.Network, c0, c1 spline.Control, start, end rail.IntersectionID) *rail.Rail {
	id, err := n.AddRail(n.NewSpline([2]spline.Control{c0, c1}), start, end)
	if err != nil {
		t.Fatalf("AddRail: %s", err)
	}
	return n.MustRail(id)
}

func addStraight(t *testing.T, n *rail.Network, from, to geom.Vec3, start, end rail.IntersectionID) *rail.Rail {
	f := geom.Normalize(geom.Sub(to, from))
	return addRail(t, n,
		spline.Control{Pos: from, Forward: f},
		spline.Control{Pos: to, Forward: geom.Neg(f)},
		start, end)
}

// firstSelector always takes the first option.
type firstSelector struct{}

func (firstSelector) Select(_ *Train, _ rail.IntersectionID, options []rail.RailID) rail.RailID {
	return options[0]
}

func position(t *testing.T, n *rail.Network, tr *Train) geom.Vec3 {
	r := n.MustRail(tr.Rail)
	if tr.T < 0 || tr.T > 1 {
		t.Fatalf("t out of range: %s", tr)
	}
	return r.Spline.Position(tr.T)
}

func place(t *testing.T, e *Engine, r rail.RailID, pos, forward geom.Vec3) *Train {
	tr, err := e.Place(r, pos, forward)
	if err != nil {
		t.Fatalf("Place: %s", err)
	}
	return tr
}

func TestDeadEndReverses(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	e := NewEngine(n, firstSelector{})
	tr := place(t, e, a.ID, geom.V(90, 0, 0), geom.V(1, 0, 0))
	e.Advance(tr, 20)
	if tr.Rail != a.ID {
		t.Fatalf("left the rail: %s", tr)
	}
	if !geom.ApproxEqual(tr.Forward, geom.V(-1, 0, 0), 1e-6) {
		t.Fatalf("forward %s after reversing", geom.String(tr.Forward))
	}
	if got := position(t, n, tr); !geom.ApproxEqual(got, geom.V(90, 0, 0), 0.1) {
		t.Fatalf("at %s, want (90 0 0)", geom.String(got))
	}
}

// Two rails meeting on the same side of an intersection: a train arriving on
// one has no way forward and comes back on the same rail.
func TestVJunctionReverses(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(50, 0, 0), 0, 0)
	m := a.Joints[rail.JointEnd].Intersection
	b := addStraight(t, n, geom.V(50, 0, 0), geom.V(0, 0, 30), m, 0)
	if got := n.CurveOptions(m, geom.V(1, 0, 0)); len(got) != 0 {
		t.Fatalf("CurveOptions = %v, want none", got)
	}

	e := NewEngine(n, firstSelector{})
	tr := place(t, e, a.ID, geom.V(40, 0, 0), geom.V(1, 0, 0))
	e.Advance(tr, 20)
	if tr.Rail != a.ID {
		t.Fatalf("on rail %d, want %d (not %d)", tr.Rail, a.ID, b.ID)
	}
	if !geom.ApproxEqual(tr.Forward, geom.V(-1, 0, 0), 1e-6) {
		t.Fatalf("forward %s, want back the way it came", geom.String(tr.Forward))
	}
	if got := position(t, n, tr); !geom.ApproxEqual(got, geom.V(40, 0, 0), 0.1) {
		t.Fatalf("at %s, want (40 0 0)", geom.String(got))
	}
}

func TestContinueOntoNextRail(t *testing.T) {
	cases := []struct {
		name     string
		reversed bool
	}{
		{"same direction", false},
		{"next rail reversed", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := newTestNetwork(t)
			a := addStraight(t, n, geom.V(0, 0, 0), geom.V(50, 0, 0), 0, 0)
			m := a.Joints[rail.JointEnd].Intersection
			var b *rail.Rail
			if c.reversed {
				b = addStraight(t, n, geom.V(100, 0, 0), geom.V(50, 0, 0), 0, m)
			} else {
				b = addStraight(t, n, geom.V(50, 0, 0), geom.V(100, 0, 0), m, 0)
			}
			e := NewEngine(n, firstSelector{})
			tr := place(t, e, a.ID, geom.V(40, 0, 0), geom.V(1, 0, 0))
			e.Advance(tr, 20)
			if tr.Rail != b.ID {
				t.Fatalf("on rail %d, want %d", tr.Rail, b.ID)
			}
			if !geom.ApproxEqual(tr.Forward, geom.V(1, 0, 0), 1e-6) {
				t.Fatalf("forward %s", geom.String(tr.Forward))
			}
			if got := position(t, n, tr); !geom.ApproxEqual(got, geom.V(60, 0, 0), 0.1) {
				t.Fatalf("at %s, want (60 0 0)", geom.String(got))
			}
		})
	}
}

func TestRouteSelector(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(50, 0, 0), 0, 0)
	m := a.Joints[rail.JointEnd].Intersection
	b1 := addStraight(t, n, geom.V(50, 0, 0), geom.V(100, 0, 0), m, 0)
	b2 := addRail(t, n,
		spline.Control{Pos: geom.V(50, 0, 0), Forward: geom.V(1, 0, 0)},
		spline.Control{Pos: geom.V(100, 0, 40), Forward: geom.V(-1, 0, 0)},
		m, 0)
	if got := n.CurveOptions(m, geom.V(1, 0, 0)); !cmp.Equal(got, []rail.RailID{b1.ID, b2.ID}) {
		t.Fatalf("CurveOptions = %v", got)
	}

	s := NewRouteSelector(firstSelector{})
	e := NewEngine(n, s)
	// both trains start at the same point
	e.Spacing = 0
	routed := place(t, e, a.ID, geom.V(40, 0, 0), geom.V(1, 0, 0))
	free := place(t, e, a.ID, geom.V(40, 0, 0), geom.V(1, 0, 0))
	s.SetRoute(routed.ID, []rail.RailID{a.ID, b2.ID})

	e.Advance(routed, 20)
	e.Advance(free, 20)
	if routed.Rail != b2.ID {
		t.Fatalf("routed train on %d, want %d", routed.Rail, b2.ID)
	}
	if free.Rail != b1.ID {
		t.Fatalf("unrouted train on %d, want %d", free.Rail, b1.ID)
	}
	if got := s.Route(routed.ID); !cmp.Equal(got, []rail.RailID{b2.ID}) {
		t.Fatalf("route left = %v", got)
	}
}

func TestRandomSelector(t *testing.T) {
	options := []rail.RailID{1, 2, 3}
	seen := map[rail.RailID]bool{}
	a := NewRandomSelector(1)
	b := NewRandomSelector(1)
	for i := 0; i < 100; i++ {
		x, y := a.Select(nil, 0, options), b.Select(nil, 0, options)
		if x != y {
			t.Fatalf("same seed diverged at %d: %d != %d", i, x, y)
		}
		seen[x] = true
	}
	if len(seen) != len(options) {
		t.Fatalf("only chose %v", seen)
	}
}

func TestPlaceRemove(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	e := NewEngine(n, firstSelector{})
	if _, err := e.Place(a.ID+1, geom.V(0, 0, 0), geom.V(1, 0, 0)); !errors.Is(err, rail.ErrUnknownRail) {
		t.Fatalf("Place on unknown rail: %v", err)
	}
	tr := place(t, e, a.ID, geom.V(25, 0, 3), geom.V(-1, 0, 0.1))
	if !geom.ApproxEqual(tr.Forward, geom.V(-1, 0, 0), 1e-6) {
		t.Fatalf("forward %s", geom.String(tr.Forward))
	}
	if got := position(t, n, tr); !geom.ApproxEqual(got, geom.V(25, 0, 0), 0.1) {
		t.Fatalf("placed at %s", geom.String(got))
	}
	if !e.OnRail(a.ID) {
		t.Fatal("OnRail = false")
	}
	if err := e.Remove(tr.ID); err != nil {
		t.Fatalf("Remove: %s", err)
	}
	if e.OnRail(a.ID) || len(e.Trains()) != 0 {
		t.Fatal("train still there")
	}
	if err := e.Remove(tr.ID); !errors.Is(err, ErrUnknownTrain) {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestPlaceOverlap(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	b := addStraight(t, n, geom.V(0, 0, 2), geom.V(100, 0, 2), 0, 0)
	e := NewEngine(n, firstSelector{})
	first := place(t, e, a.ID, geom.V(50, 0, 0), geom.V(1, 0, 0))

	cases := []struct {
		name string
		rail rail.RailID
		pos  geom.Vec3
		ok   bool
	}{
		{"on top", a.ID, geom.V(50, 0, 0), false},
		{"behind within spacing", a.ID, geom.V(47, 0, 0), false},
		{"ahead past spacing", a.ID, geom.V(55, 0, 0), true},
		{"next to it on another rail", b.ID, geom.V(50, 0, 2), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, err := e.Place(c.rail, c.pos, geom.V(1, 0, 0))
			if c.ok {
				if err != nil {
					t.Fatalf("Place: %s", err)
				}
				e.Remove(tr.ID)
				return
			}
			if !errors.Is(err, ErrOverlap) {
				t.Fatalf("Place = %v, want ErrOverlap", err)
			}
		})
	}
	if got := e.Trains(); len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("Trains = %v", got)
	}
}

func TestSetTargetSpeed(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	e := NewEngine(n, firstSelector{})
	form := uuid.New()
	e.SetRelation(form, Relation{Coeffs: []float64{0, 0.5}})
	calibrated := place(t, e, a.ID, geom.V(20, 0, 0), geom.V(1, 0, 0))
	calibrated.Form = form
	plain := place(t, e, a.ID, geom.V(60, 0, 0), geom.V(1, 0, 0))

	if err := e.SetTargetSpeed(calibrated.ID, 10); err != nil {
		t.Fatalf("SetTargetSpeed: %s", err)
	}
	if calibrated.Power != 20 || calibrated.Speed != 10 {
		t.Fatalf("power %d speed %f", calibrated.Power, calibrated.Speed)
	}
	if err := e.SetTargetSpeed(calibrated.ID, 200); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("SetTargetSpeed(200) = %v", err)
	}
	if calibrated.Power != 20 {
		t.Fatalf("power changed to %d", calibrated.Power)
	}
	if err := e.SetTargetSpeed(plain.ID, 7); err != nil || plain.Speed != 7 {
		t.Fatalf("SetTargetSpeed without relation: %v, speed %f", err, plain.Speed)
	}
	if err := e.SetTargetSpeed(uuid.New(), 7); !errors.Is(err, ErrUnknownTrain) {
		t.Fatalf("SetTargetSpeed(unknown) = %v", err)
	}
}

func TestAtStation(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	sid, err := n.AddStation(a.ID, "halt", geom.V(60, 0, 0))
	if err != nil {
		t.Fatalf("AddStation: %s", err)
	}
	st, _ := n.Station(sid)
	e := NewEngine(n, firstSelector{})
	tr := place(t, e, a.ID, geom.V(40, 0, 0), geom.V(1, 0, 0))
	tr.Speed = 10
	if got := e.AtStation(st); len(got) != 0 {
		t.Fatalf("AtStation before arriving = %v", got)
	}
	e.Tick(2 * time.Second)
	if got := e.AtStation(st); len(got) != 1 || got[0].ID != tr.ID {
		t.Fatalf("AtStation = %v", got)
	}
}

func TestTick(t *testing.T) {
	n := newTestNetwork(t)
	a := addStraight(t, n, geom.V(0, 0, 0), geom.V(100, 0, 0), 0, 0)
	b := addStraight(t, n, geom.V(0, 0, 50), geom.V(100, 0, 50), 0, 0)
	e := NewEngine(n, firstSelector{})

	form := uuid.New()
	e.SetRelation(form, Relation{Coeffs: []float64{0, 0.5}})
	powered := place(t, e, a.ID, geom.V(10, 0, 0), geom.V(1, 0, 0))
	powered.Form = form
	powered.Power = 20
	plain := place(t, e, b.ID, geom.V(10, 0, 50), geom.V(1, 0, 0))
	plain.Speed = 4

	e.Tick(2 * time.Second)
	if got := position(t, n, powered); !geom.ApproxEqual(got, geom.V(30, 0, 0), 0.1) {
		t.Fatalf("powered train at %s", geom.String(got))
	}
	if powered.Speed != 10 {
		t.Fatalf("speed %f from relation", powered.Speed)
	}
	if got := position(t, n, plain); !geom.ApproxEqual(got, geom.V(18, 0, 50), 0.1) {
		t.Fatalf("plain train at %s", geom.String(got))
	}

	if err := n.RemoveRail(b.ID); err != nil {
		t.Fatalf("RemoveRail: %s", err)
	}
	e.Tick(time.Second)
	if _, ok := e.Train(plain.ID); ok {
		t.Fatal("train on removed rail kept")
	}
	if got := e.Trains(); len(got) != 1 || got[0].ID != powered.ID {
		t.Fatalf("Trains = %v", got)
	}
}
