package rail

import (
	"fmt"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/spline"
)

const (
	// JointStart is the joint at the start (t = 0) of a rail's spline.
	JointStart = 0
	// JointEnd is the joint at the end (t = 1) of a rail's spline.
	JointEnd = 1
)

// Joint is one end of a rail.
type Joint struct {
	Intersection IntersectionID
}

// Rail is a single curve between two intersections.
type Rail struct {
	ID     RailID
	Joints [2]Joint
	// Spline's start and end controls sit on Joints[JointStart] and Joints[JointEnd].
	Spline spline.Spline
}

func (r *Rail) String() string {
	return fmt.Sprintf("rail %d (%d→%d, l%.2f)", r.ID, r.Joints[JointStart].Intersection, r.Joints[JointEnd].Intersection, r.Spline.CurveLength())
}

// JointAt returns which joint of r is at intersection id.
func (r *Rail) JointAt(id IntersectionID) (joint int, ok bool) {
	for k, j := range r.Joints {
		if j.Intersection == id {
			return k, true
		}
	}
	return 0, false
}

// FarIntersection returns the intersection at the other end of rail from near.
func (y *Layout) FarIntersection(rail RailID, near IntersectionID) IntersectionID {
	r := y.MustRail(rail)
	k, ok := r.JointAt(near)
	if !ok {
		panic(fmt.Sprintf("%s isn't connected to intersection %d", r, near))
	}
	return r.Joints[1-k].Intersection
}

func (y *Layout) checkJoint(c spline.Control, id IntersectionID) error {
	i, ok := y.intersections[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownIntersection, id)
	}
	if !i.Collision.Contains(c.Pos) {
		return fmt.Errorf("%w: %s is %.2f away from %s", ErrJointOffset, geom.String(c.Pos), geom.Distance(i.Pos, c.Pos), i)
	}
	if !y.hasFreeSlot(id, c.Forward) {
		return fmt.Errorf("%s: %w", i, ErrNoFreeSlot)
	}
	return nil
}

// AddRail adds a rail along s between intersections start and end.
// A zero id creates a new intersection at that end of s, facing into the rail at
// the start and out of it at the end, so a train running along the rail stays on
// the same side of both.
// Nothing is changed if an error is returned.
func (n *Network) AddRail(s spline.Spline, start, end IntersectionID) (RailID, error) {
	c := s.Controls()
	if start != 0 && start == end {
		return 0, ErrSelfLoop
	}
	if start != 0 {
		if err := n.checkJoint(c[JointStart], start); err != nil {
			return 0, fmt.Errorf("start: %w", err)
		}
	}
	if end != 0 {
		if err := n.checkJoint(c[JointEnd], end); err != nil {
			return 0, fmt.Errorf("end: %w", err)
		}
	}
	if start == 0 {
		start = n.CreateNewIntersection(c[JointStart].Pos, c[JointStart].Forward)
	}
	if end == 0 {
		end = n.CreateNewIntersection(c[JointEnd].Pos, geom.Neg(c[JointEnd].Forward))
	}
	id := RailID(n.railIDs.Get())
	r := &Rail{
		ID:     id,
		Joints: [2]Joint{{Intersection: start}, {Intersection: end}},
		Spline: s,
	}
	n.rails[id] = r
	n.mustConnect(id, c[JointStart].Forward, start)
	n.mustConnect(id, c[JointEnd].Forward, end)
	n.emit(Event{Kind: EventRailAdded, Rail: id})
	zap.S().Debugw("added rail", "rail", r.String())
	return id, nil
}

// detach removes rail from the arena and from its intersections' slots, without
// touching the intersections otherwise.
func (n *Network) detach(rail RailID) *Rail {
	r := n.MustRail(rail)
	for _, j := range r.Joints {
		n.disconnect(rail, j.Intersection)
		n.emit(Event{Kind: EventIntersectionChanged, Intersection: j.Intersection})
	}
	delete(n.rails, rail)
	n.railIDs.Put(uint32(rail))
	n.emit(Event{Kind: EventRailRemoved, Rail: rail})
	return r
}

// RemoveRail removes rail and the stations on it. Intersections left without any
// rail are removed too and their ids reused; the others have their slots compacted.
func (n *Network) RemoveRail(rail RailID) error {
	if _, ok := n.rails[rail]; !ok {
		return fmt.Errorf("remove: %w: %d", ErrUnknownRail, rail)
	}
	for _, st := range n.StationsOn(rail) {
		n.removeStation(st.ID)
	}
	r := n.detach(rail)
	for _, j := range r.Joints {
		i := n.MustIntersection(j.Intersection)
		if i.Empty() {
			n.removeIntersection(i.ID)
		} else {
			i.compact()
		}
	}
	zap.S().Debugw("removed rail", "rail", r.String())
	return nil
}

func (n *Network) removeIntersection(id IntersectionID) {
	delete(n.intersections, id)
	n.index.delete(id)
	n.intersectionIDs.Put(uint32(id))
	n.emit(Event{Kind: EventIntersectionRemoved, Intersection: id})
	zap.S().Debugw("reclaimed intersection", "id", id)
}

// InsertIntersection splits rail at the point nearest to pos and connects both
// halves to middle. The halves trace the same curve as rail did.
// Nothing is changed if an error is returned.
func (n *Network) InsertIntersection(rail RailID, middle IntersectionID, pos geom.Vec3) (RailID, RailID, error) {
	r, ok := n.rails[rail]
	if !ok {
		return 0, 0, fmt.Errorf("insert intersection: %w: %d", ErrUnknownRail, rail)
	}
	if _, ok := r.JointAt(middle); ok {
		return 0, 0, fmt.Errorf("insert intersection: %w", ErrSelfLoop)
	}
	t := r.Spline.TFromPos(pos)
	a, b := r.Spline.SplitAt(t)
	ae, bs := a.Controls()[JointEnd], b.Controls()[JointStart]
	for _, c := range [2]spline.Control{ae, bs} {
		if err := n.checkJoint(c, middle); err != nil {
			return 0, 0, fmt.Errorf("insert intersection: %w", err)
		}
	}
	mi := n.MustIntersection(middle)
	if right := mi.RightGroup(ae.Forward); right == mi.RightGroup(bs.Forward) && freeSlots(mi.group(right)) < 2 {
		return 0, 0, fmt.Errorf("insert intersection: %s: %w", mi, ErrNoFreeSlot)
	}

	start, end := r.Joints[JointStart].Intersection, r.Joints[JointEnd].Intersection
	n.detach(rail)
	ra, err := n.AddRail(a, start, middle)
	if err != nil {
		panic(fmt.Sprintf("insert intersection: first half: %s", err))
	}
	rb, err := n.AddRail(b, middle, end)
	if err != nil {
		panic(fmt.Sprintf("insert intersection: second half: %s", err))
	}
	n.moveStations(rail, t, n.rails[ra], n.rails[rb])
	zap.S().Debugw("split rail",
		"rail", rail,
		"middle", middle,
		"halves", []RailID{ra, rb})
	return ra, rb, nil
}
