// Package plan is the interactive rail builder.
//
// A Planner is fed one Input per tick. It proposes a rail from its start to the
// cursor, snapping the end to intersections and rails under the cursor, and
// validates the proposal every tick. A confirm while the proposal is Valid adds
// the rail to the network, and the next proposal starts where it ended.
package plan

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/spline"
)

type Params struct {
	// MinLength is the shortest rail allowed, and the closest a rail may be split to its ends.
	MinLength float64 `json:"min-length"`
	// MaxLength caps the distance from the start to the end.
	MaxLength float64 `json:"max-length"`
	// MinDelta is the smallest angle (radians) allowed between rails at one intersection.
	MinDelta float64 `json:"min-delta"`
	// MaxTurn is the largest angle (radians) allowed between two consecutive polyline segments.
	MaxTurn float64 `json:"max-turn"`
	// CursorRadius is the size of the cursor when hit-testing intersections.
	CursorRadius float64 `json:"cursor-radius"`
}

func DefaultParams() Params {
	return Params{
		MinLength:    10,
		MaxLength:    100,
		MinDelta:     15 * math.Pi / 180,
		MaxTurn:      22.5 * math.Pi / 180,
		CursorRadius: 0.1,
	}
}

// TrainLocator tells whether a rail has a train on it.
type TrainLocator interface {
	OnRail(id rail.RailID) bool
}

// RailHit is an externally ray-cast point on a rail.
type RailHit struct {
	Rail rail.RailID
	Pos  geom.Vec3
}

// Input is one tick of player input. Buttons are edge-triggered.
type Input struct {
	// Cursor is the point on the ground under the cursor.
	Cursor geom.Vec3
	// Hit is the rail under the cursor, if any.
	Hit       *RailHit
	Confirm   bool
	Cancel    bool
	CycleMode bool
	// Flip reverses the forward of an end snapped onto the middle of a rail.
	Flip bool
	// Rotate is added to the manual rotation (radians, about Up) of the end forward.
	Rotate float64
}

type Result struct {
	Outcome Outcome
	// Rail is the committed rail.
	Rail rail.RailID
}

type Planner struct {
	params Params
	n      *rail.Network
	trains TrainLocator

	phase  Phase
	status Status
	mode   CurveMode
	// rotation is the accumulated manual rotation of the end forward.
	rotation float64
	spline   spline.Spline

	startIntersection rail.IntersectionID
	endIntersection   rail.IntersectionID
	// startRail and endRail are rails that need to be split at the respective end when committing.
	startRail rail.RailID
	endRail   rail.RailID

	// startAlign keeps the start forward along (instead of against) the tangent of startRail.
	startAlign bool
	// endAlign is startAlign for the end; endAlignFilled is unset whenever the end leaves a rail.
	endAlign       bool
	endAlignFilled bool
}

// New returns an idle planner. trains may be nil.
func New(p Params, n *rail.Network, trains TrainLocator) *Planner {
	pl := &Planner{
		params: p,
		n:      n,
		trains: trains,
	}
	pl.reset()
	return pl
}

func (p *Planner) reset() {
	p.phase = PhaseIdle
	p.status = Status{}
	p.rotation = 0
	p.startIntersection, p.endIntersection = 0, 0
	p.startRail, p.endRail = 0, 0
	p.endAlignFilled = false
	p.spline = p.n.NewSpline([2]spline.Control{
		{Forward: geom.Forward},
		{Forward: geom.Forward},
	})
}

func (p *Planner) Phase() Phase { return p.phase }

func (p *Planner) Status() Status { return p.status }

func (p *Planner) Mode() CurveMode { return p.mode }

// Spline returns the proposed rail.
func (p *Planner) Spline() spline.Spline { return p.spline }

func (p *Planner) Controls() [2]spline.Control { return p.spline.Controls() }

// StartIntersection returns the intersection the start is snapped to, or zero.
func (p *Planner) StartIntersection() rail.IntersectionID { return p.startIntersection }

// EndIntersection returns the intersection the end is snapped to, or zero.
func (p *Planner) EndIntersection() rail.IntersectionID { return p.endIntersection }

// StartRail returns the rail the start is on (to be split), or zero.
func (p *Planner) StartRail() rail.RailID { return p.startRail }

// EndRail returns the rail the end is on (to be split), or zero.
func (p *Planner) EndRail() rail.RailID { return p.endRail }

func (p *Planner) String() string {
	return fmt.Sprintf("planner(%s %s %s %s)", p.phase, p.mode, p.status, p.spline.String())
}

// Update advances the planner by one tick.
// An error is only returned when committing fails, in which case the planner is unchanged.
func (p *Planner) Update(in Input) (Result, error) {
	if in.CycleMode {
		p.mode = p.mode.Next()
	}
	p.rotation += in.Rotate
	if p.phase == PhaseIdle {
		return p.updateIdle(in), nil
	}
	if in.Cancel {
		return p.cancel(), nil
	}
	if p.startGone() {
		p.reset()
		zap.S().Infow("planner: start removed, cancelled")
		return Result{Outcome: Cancelled}, nil
	}
	p.adjust(in)
	if !in.Confirm {
		return Result{}, nil
	}
	switch p.phase {
	case PhaseInitialPlacement:
		c := p.spline.Controls()
		if c[0].Pos == c[1].Pos {
			return Result{}, nil
		}
		p.phase = PhaseAdjusting
		p.rotation = 0
		return Result{Outcome: Oriented}, nil
	case PhaseAdjusting:
		if !p.status.Valid() {
			zap.S().Debugw("planner: refused commit", "status", p.status.String())
			return Result{}, nil
		}
		return p.commit()
	}
	panic("unreachable")
}

// startGone reports whether the intersection or rail the start was snapped to
// has been removed from the network since.
func (p *Planner) startGone() bool {
	if _, ok := p.n.Intersection(p.startIntersection); p.startIntersection != 0 && !ok {
		return true
	}
	if _, ok := p.n.Rail(p.startRail); p.startRail != 0 && !ok {
		return true
	}
	return false
}

func (p *Planner) cursorSphere(pos geom.Vec3) geom.Sphere {
	return geom.Sphere{Center: pos, Radius: p.params.CursorRadius}
}

// updateIdle places the start at the cursor, snapping it to an intersection or a rail.
func (p *Planner) updateIdle(in Input) Result {
	p.reset()
	start := spline.Control{Pos: in.Cursor, Forward: geom.Forward}
	if i, ok := p.n.IntersectCollision(p.cursorSphere(in.Cursor)); ok {
		p.startIntersection = i.ID
		start = spline.Control{Pos: i.Pos, Forward: i.NearestForward(in.Cursor)}
	} else if r, ok := p.hitRail(in.Hit); ok {
		if in.Flip {
			p.startAlign = !p.startAlign
		}
		start = p.onRail(r, in.Hit.Pos, p.startAlign)
		p.startRail = r.ID
		if d := p.distanceToJoints(r, start.Pos); d < p.params.MinLength {
			p.status = Status{Code: ExtendTooCloseToIntersection, Value: d}
		}
	}
	p.spline.SetControls([2]spline.Control{start, start})
	if !in.Confirm || !p.status.Valid() {
		return Result{}
	}
	if p.startIntersection == 0 && p.startRail == 0 {
		p.phase = PhaseInitialPlacement
	} else {
		// already oriented by what it snapped to
		p.phase = PhaseAdjusting
	}
	zap.S().Debugw("planner: started",
		"phase", p.phase.String(),
		"start", start.String(),
		"intersection", p.startIntersection,
		"rail", p.startRail)
	return Result{Outcome: Started}
}

func (p *Planner) hitRail(hit *RailHit) (*rail.Rail, bool) {
	if hit == nil {
		return nil, false
	}
	return p.n.Rail(hit.Rail)
}

// onRail returns a control on r at the point nearest to pos, facing along r's
// tangent if align is set and against it otherwise.
func (p *Planner) onRail(r *rail.Rail, pos geom.Vec3, align bool) spline.Control {
	t := r.Spline.TFromPos(pos)
	forward := r.Spline.Forward(t)
	if !align {
		forward = geom.Neg(forward)
	}
	return spline.Control{Pos: r.Spline.Position(t), Forward: forward}
}

// distanceToJoints returns the distance from pos to the nearer of r's intersections.
func (p *Planner) distanceToJoints(r *rail.Rail, pos geom.Vec3) float64 {
	d := math.Inf(1)
	for _, j := range r.Joints {
		d = math.Min(d, geom.Distance(pos, p.n.MustIntersection(j.Intersection).Pos))
	}
	return d
}

// adjust moves the end to the cursor, applies the curve mode and snapping, and validates.
func (p *Planner) adjust(in Input) {
	c := p.spline.Controls()
	c[1].Pos = in.Cursor
	delta := geom.Sub(c[1].Pos, c[0].Pos)
	if geom.Length(delta) > p.params.MaxLength {
		c[1].Pos = geom.Add(c[0].Pos, geom.Scale(geom.Normalize(delta), p.params.MaxLength))
		delta = geom.Sub(c[1].Pos, c[0].Pos)
	}
	toEnd := geom.DirOr(delta, geom.Forward)
	p.status = Status{}
	p.endIntersection, p.endRail = 0, 0

	if p.phase == PhaseInitialPlacement {
		c[0].Forward = toEnd
		c[1].Forward = geom.Neg(toEnd)
		p.spline.SetControls(c)
		p.validate()
		return
	}

	switch p.mode {
	case Curve:
		normal := geom.DirOr(geom.Cross(toEnd, geom.Up), geom.V(1, 0, 0))
		c[1].Forward = geom.Neg(geom.Reflect(c[0].Forward, normal))
	case Straight:
		c[1].Forward = geom.Neg(c[0].Forward)
	case Chase:
		c[1].Forward = geom.Neg(toEnd)
	}
	c[1].Forward = geom.RotateY(c[1].Forward, p.rotation)

	if i, ok := p.n.IntersectCollision(p.cursorSphere(in.Cursor)); ok {
		if i.ID != p.startIntersection {
			c[1] = spline.Control{Pos: i.Pos, Forward: i.NearestForward(c[0].Pos)}
			p.endIntersection = i.ID
		}
		p.endAlignFilled = false
	} else if r, ok := p.hitRail(in.Hit); ok {
		t := r.Spline.TFromPos(in.Hit.Pos)
		if !p.endAlignFilled {
			p.endAlign = geom.Dot(r.Spline.Forward(t), c[1].Forward) > 0
			p.endAlignFilled = true
		}
		if in.Flip {
			p.endAlign = !p.endAlign
		}
		c[1] = p.onRail(r, in.Hit.Pos, p.endAlign)
		p.endRail = r.ID
	} else {
		p.endAlignFilled = false
	}
	p.spline.SetControls(c)
	p.validate()
}

// validate sets status to the first failing check.
func (p *Planner) validate() {
	c := p.spline.Controls()
	switch {
	case p.endRail != 0 && p.endRail == p.startRail:
		p.status = Status{Code: ExtendIntoSelf}
		return
	case p.startRail != 0 && p.trainOn(p.startRail):
		p.status = Status{Code: TrainOnStartRail}
		return
	case p.endRail != 0 && p.trainOn(p.endRail):
		p.status = Status{Code: TrainOnEndRail}
		return
	}
	for k, id := range [2]rail.RailID{p.startRail, p.endRail} {
		if id == 0 {
			continue
		}
		if d := p.distanceToJoints(p.n.MustRail(id), c[k].Pos); d < p.params.MinLength {
			p.status = Status{Code: ExtendTooCloseToIntersection, Value: d}
			return
		}
	}
	if l := p.spline.CurveLength(); l < p.params.MinLength && p.endIntersection == 0 {
		p.status = Status{Code: RailTooShort, Value: l}
		return
	}
	if p.startIntersection != 0 {
		a := p.n.MinAngleRelativeToOthers(p.startIntersection, geom.Normalize(geom.Sub(c[1].Pos, c[0].Pos)))
		if a < p.params.MinDelta {
			p.status = Status{Code: CurveTooShallow, Value: a}
			return
		}
	}
	if p.endIntersection != 0 {
		a := p.n.MinAngleRelativeToOthers(p.endIntersection, geom.Normalize(geom.Sub(c[0].Pos, c[1].Pos)))
		if a < p.params.MinDelta {
			p.status = Status{Code: CurveTooShallow, Value: a}
			return
		}
	}
	if a := maxTurn(c[0].Forward, p.spline.CurvePoints()); a > p.params.MaxTurn {
		p.status = Status{Code: CurveTooSharp, Value: a}
		return
	}
}

func (p *Planner) trainOn(id rail.RailID) bool {
	return p.trains != nil && p.trains.OnRail(id)
}

// maxTurn returns the largest angle between forward and the first segment of
// points, or between any two consecutive segments.
func maxTurn(forward geom.Vec3, points []geom.Vec3) float64 {
	if len(points) < 2 {
		return 0
	}
	max := geom.AngleBetween(forward, geom.Sub(points[1], points[0]))
	for k := 2; k < len(points); k++ {
		a := geom.AngleBetween(geom.Sub(points[k-1], points[k-2]), geom.Sub(points[k], points[k-1]))
		if a > max {
			max = a
		}
	}
	return max
}

// commit adds the planned rail and splits the rails its ends are on.
// Nothing is changed if an error is returned. A split failing once the rail is
// added means validate let through a layout it shouldn't have, and panics.
func (p *Planner) commit() (Result, error) {
	c := p.spline.Controls()
	for _, id := range [2]rail.RailID{p.startRail, p.endRail} {
		if _, ok := p.n.Rail(id); id != 0 && !ok {
			return Result{}, fmt.Errorf("commit: split: %w: %d", rail.ErrUnknownRail, id)
		}
	}
	id, err := p.n.AddRail(p.spline, p.startIntersection, p.endIntersection)
	if err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	r := p.n.MustRail(id)
	start := r.Joints[rail.JointStart].Intersection
	end := r.Joints[rail.JointEnd].Intersection
	if p.startRail != 0 {
		if _, _, err := p.n.InsertIntersection(p.startRail, start, c[0].Pos); err != nil {
			panic(fmt.Sprintf("commit %s: split start rail %d: %s", r, p.startRail, err))
		}
	}
	if p.endRail != 0 {
		if _, _, err := p.n.InsertIntersection(p.endRail, end, c[1].Pos); err != nil {
			panic(fmt.Sprintf("commit %s: split end rail %d: %s", r, p.endRail, err))
		}
	}
	zap.S().Infow("planner: committed rail",
		"rail", r.String(),
		"split-start", p.startRail,
		"split-end", p.endRail)

	next := spline.Control{Pos: c[1].Pos, Forward: geom.Neg(c[1].Forward)}
	p.spline.SetControls([2]spline.Control{next, next})
	p.startIntersection = end
	p.endIntersection = 0
	p.startRail, p.endRail = 0, 0
	p.endAlignFilled = false
	p.rotation = 0
	p.phase = PhaseAdjusting
	p.status = Status{}
	return Result{Outcome: Committed, Rail: id}, nil
}

func (p *Planner) cancel() Result {
	if p.phase == PhaseAdjusting && p.startIntersection == 0 && p.startRail == 0 {
		p.phase = PhaseInitialPlacement
		zap.S().Infow("planner: back to initial placement")
		return Result{Outcome: SteppedBack}
	}
	p.reset()
	zap.S().Infow("planner: cancelled")
	return Result{Outcome: Cancelled}
}
