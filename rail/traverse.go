package rail

import (
	"fmt"

	"nyiyui.ca/hato/senro/geom"
)

// TraverseResult is where a move along a rail ended up.
type TraverseResult struct {
	T   float64
	Pos geom.Vec3
	// Forward is the direction of travel.
	Forward geom.Vec3
	// Arrived is set when the move reached an end of the rail. Remaining and
	// Intersection are only meaningful then.
	Arrived      bool
	Remaining    float64
	Intersection IntersectionID
}

func (tr TraverseResult) String() string {
	if tr.Arrived {
		return fmt.Sprintf("arrived at %d (t%.3f, %.2f left)", tr.Intersection, tr.T, tr.Remaining)
	}
	return fmt.Sprintf("t%.3f at %s", tr.T, geom.String(tr.Pos))
}

// Traverse moves distance along r from t, in the direction of forward.
// If that would go past either end, it stops at that end and reports how much of
// distance is left over.
func (r *Rail) Traverse(t float64, forward geom.Vec3, distance float64) TraverseResult {
	s := &r.Spline
	dir := 1.0
	if geom.Dot(forward, s.Forward(t)) < 0 {
		dir = -1
	}
	if distance < 0 {
		distance = -distance
		dir = -dir
	}
	cur := s.LUTDistance(t)
	c := s.Controls()
	if dir > 0 {
		if left := s.CurveLength() - cur; distance >= left {
			return TraverseResult{
				T:            1,
				Pos:          c[JointEnd].Pos,
				Forward:      geom.Neg(c[JointEnd].Forward),
				Arrived:      true,
				Remaining:    distance - left,
				Intersection: r.Joints[JointEnd].Intersection,
			}
		}
	} else {
		if distance >= cur {
			return TraverseResult{
				T:            0,
				Pos:          c[JointStart].Pos,
				Forward:      geom.Neg(c[JointStart].Forward),
				Arrived:      true,
				Remaining:    distance - cur,
				Intersection: r.Joints[JointStart].Intersection,
			}
		}
	}
	t2 := s.Traverse(t, dir*distance)
	return TraverseResult{
		T:       t2,
		Pos:     s.Position(t2),
		Forward: geom.Scale(s.Forward(t2), dir),
	}
}

// Entry returns the t and travel direction of a train entering r from intersection id.
func (r *Rail) Entry(id IntersectionID) (t float64, forward geom.Vec3) {
	k, ok := r.JointAt(id)
	if !ok {
		panic(fmt.Sprintf("%s isn't connected to intersection %d", r, id))
	}
	c := r.Spline.Controls()[k]
	if k == JointStart {
		return 0, c.Forward
	}
	return 1, c.Forward
}
