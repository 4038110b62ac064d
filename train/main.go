// Package train moves trains along a rail network.
package train

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/rail"
)

var (
	ErrUnknownTrain = errors.New("unknown train")
	ErrOverlap      = errors.New("overlaps another train")
	ErrUnreachable  = errors.New("speed out of the formation's power range")
)

const (
	// maxHops bounds the rail changes within one advance.
	maxHops = 64
	// DefaultSpacing is the length of a train.
	DefaultSpacing = 4.0
)

type Train struct {
	ID uuid.UUID
	// Form identifies the formation, for looking up its speed relation.
	Form uuid.UUID
	Rail rail.RailID
	// T is the curve parameter on Rail, not an arc length.
	T float64
	// Forward is the direction of travel.
	Forward geom.Vec3
	// Power is the throttle setting (0-255). It sets Speed when the formation has a relation.
	Power int
	// Speed in units per second.
	Speed float64
}

func (t *Train) String() string {
	return fmt.Sprintf("train %s on %d at t%.3f heading %s", t.ID, t.Rail, t.T, geom.String(t.Forward))
}

func (t *Train) clone() *Train {
	t2 := *t
	return &t2
}

// Layout is the part of the rail network trains need. Both *rail.Layout and
// *rail.Network satisfy it.
type Layout interface {
	Rail(id rail.RailID) (*rail.Rail, bool)
	CurveOptions(id rail.IntersectionID, forward geom.Vec3) []rail.RailID
}

// Selector picks the rail a train continues on at an intersection. options is
// never empty.
type Selector interface {
	Select(t *Train, at rail.IntersectionID, options []rail.RailID) rail.RailID
}

type Engine struct {
	// Spacing is how far apart (in arc length) two trains on the same rail must be placed.
	Spacing float64

	y         Layout
	selector  Selector
	trains    map[uuid.UUID]*Train
	order     []uuid.UUID
	relations map[uuid.UUID]Relation
}

func NewEngine(y Layout, s Selector) *Engine {
	return &Engine{
		Spacing:   DefaultSpacing,
		y:         y,
		selector:  s,
		trains:    map[uuid.UUID]*Train{},
		relations: map[uuid.UUID]Relation{},
	}
}

// Place puts a new train on r at the point closest to pos, facing the way of
// forward along the rail. It fails with ErrOverlap if another train on r is
// closer than Spacing.
func (e *Engine) Place(r rail.RailID, pos, forward geom.Vec3) (*Train, error) {
	ra, ok := e.y.Rail(r)
	if !ok {
		return nil, fmt.Errorf("place: %w: %d", rail.ErrUnknownRail, r)
	}
	t := ra.Spline.TFromPos(pos)
	if near := e.near(ra, t, e.Spacing); len(near) > 0 {
		return nil, fmt.Errorf("place on %d at t%.3f: %w %s", r, t, ErrOverlap, near[0].ID)
	}
	tangent := ra.Spline.Forward(t)
	if geom.Dot(forward, tangent) < 0 {
		tangent = geom.Neg(tangent)
	}
	tr := &Train{
		ID:      uuid.New(),
		Rail:    r,
		T:       t,
		Forward: tangent,
	}
	e.trains[tr.ID] = tr
	e.order = append(e.order, tr.ID)
	zap.S().Debugw("placed train", "train", tr)
	return tr, nil
}

func (e *Engine) Remove(id uuid.UUID) error {
	if _, ok := e.trains[id]; !ok {
		return fmt.Errorf("remove: %w: %s", ErrUnknownTrain, id)
	}
	delete(e.trains, id)
	i := slices.Index(e.order, id)
	e.order = slices.Delete(e.order, i, i+1)
	return nil
}

func (e *Engine) Train(id uuid.UUID) (*Train, bool) {
	t, ok := e.trains[id]
	return t, ok
}

// Trains returns copies of all trains in placement order.
func (e *Engine) Trains() []*Train {
	res := make([]*Train, 0, len(e.order))
	for _, id := range e.order {
		res = append(res, e.trains[id].clone())
	}
	return res
}

// OnRail reports whether any train is on rail r.
func (e *Engine) OnRail(r rail.RailID) bool {
	for _, t := range e.trains {
		if t.Rail == r {
			return true
		}
	}
	return false
}

// Near returns copies of the trains on rail r within distance (arc length) of t,
// in placement order.
func (e *Engine) Near(r rail.RailID, t, distance float64) []*Train {
	ra, ok := e.y.Rail(r)
	if !ok {
		return nil
	}
	return e.near(ra, t, distance)
}

func (e *Engine) near(r *rail.Rail, t, distance float64) []*Train {
	var res []*Train
	at := r.Spline.DistanceAt(t)
	for _, id := range e.order {
		tr := e.trains[id]
		if tr.Rail != r.ID {
			continue
		}
		if math.Abs(r.Spline.DistanceAt(tr.T)-at) < distance {
			res = append(res, tr.clone())
		}
	}
	return res
}

// AtStation returns the trains over station s (closer than Spacing), in placement order.
func (e *Engine) AtStation(s *rail.Station) []*Train {
	return e.Near(s.Rail, s.T, e.Spacing)
}

// SetRelation sets the power to speed relation used for trains of formation form.
func (e *Engine) SetRelation(form uuid.UUID, r Relation) {
	e.relations[form] = r
}

// SetTargetSpeed sets the power of train id to reach speed, using its
// formation's relation. Without a solvable relation the speed is set directly.
func (e *Engine) SetTargetSpeed(id uuid.UUID, speed float64) error {
	t, ok := e.trains[id]
	if !ok {
		return fmt.Errorf("set speed: %w: %s", ErrUnknownTrain, id)
	}
	rel, ok := e.relations[t.Form]
	if !ok || len(rel.Coeffs) < 2 {
		t.Speed = speed
		return nil
	}
	power, ok := rel.Power(speed)
	if !ok {
		return fmt.Errorf("set speed %.2f of %s: %w", speed, id, ErrUnreachable)
	}
	t.Power = int(math.Round(power))
	t.Speed = rel.Speed(float64(t.Power))
	return nil
}

// Tick moves every train by its speed over dt. Trains whose rail has been removed are dropped.
func (e *Engine) Tick(dt time.Duration) {
	for _, id := range slices.Clone(e.order) {
		t := e.trains[id]
		if _, ok := e.y.Rail(t.Rail); !ok {
			zap.S().Warnw("rail under train removed, dropping train", "train", t.ID, "rail", t.Rail)
			e.Remove(id)
			continue
		}
		if rel, ok := e.relations[t.Form]; ok && rel.Valid() {
			t.Speed = rel.Speed(float64(t.Power))
		}
		e.Advance(t, t.Speed*dt.Seconds())
	}
}

// Advance moves t distance along the network, crossing intersections as needed.
// At an intersection with no way forward, t reverses onto the rail it came from.
func (e *Engine) Advance(t *Train, distance float64) {
	for hops := 0; ; hops++ {
		if hops > maxHops {
			zap.S().Warnw("too many rail changes in one move, stopping", "train", t.ID, "left", distance)
			return
		}
		r, ok := e.y.Rail(t.Rail)
		if !ok {
			panic(fmt.Sprintf("train %s on unknown rail %d", t.ID, t.Rail))
		}
		res := r.Traverse(t.T, t.Forward, distance)
		if !res.Arrived {
			t.T, t.Forward = res.T, res.Forward
			return
		}
		distance = res.Remaining
		options := e.y.CurveOptions(res.Intersection, res.Forward)
		if len(options) == 0 {
			zap.S().Debugw("no way forward, reversing",
				"train", t.ID,
				"intersection", res.Intersection,
				"left", distance)
			t.T = res.T
			t.Forward = geom.Neg(res.Forward)
			continue
		}
		next := e.selector.Select(t, res.Intersection, options)
		nr, ok := e.y.Rail(next)
		if !ok {
			panic(fmt.Sprintf("selector chose unknown rail %d", next))
		}
		t.Rail = next
		t.T, t.Forward = nr.Entry(res.Intersection)
	}
}
