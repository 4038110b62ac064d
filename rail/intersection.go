package rail

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
)

// Intersection is a node of the network, connecting any number of rails.
//
// Rails are sorted into two groups by which way they leave the intersection:
// rails whose forward (at this end) agrees with RightForward are in Right, the
// rest are in Left. A train passing through always goes from one group into the
// other, so the groups tell which rails it may continue onto.
type Intersection struct {
	ID  IntersectionID
	Pos geom.Vec3
	// RightForward is the reference direction that splits Left from Right.
	RightForward geom.Vec3
	// Right and Left have a fixed length (Params.CurvesMax). Zero means an empty slot.
	Right     []RailID
	Left      []RailID
	Collision geom.Sphere
}

func (i *Intersection) String() string {
	return fmt.Sprintf("intersection %d at %s", i.ID, geom.String(i.Pos))
}

func (i *Intersection) clone() *Intersection {
	c := *i
	c.Right = slices.Clone(i.Right)
	c.Left = slices.Clone(i.Left)
	return &c
}

// RightGroup reports whether a rail leaving in direction forward belongs to Right.
// A forward perpendicular to RightForward goes to Left.
func (i *Intersection) RightGroup(forward geom.Vec3) bool {
	return geom.Dot(i.RightForward, forward) > 0
}

func (i *Intersection) group(right bool) []RailID {
	if right {
		return i.Right
	}
	return i.Left
}

// emptySlot returns the first empty slot of a group, or -1.
func emptySlot(group []RailID) int {
	return slices.Index(group, 0)
}

func freeSlots(group []RailID) int {
	free := 0
	for _, r := range group {
		if r == 0 {
			free++
		}
	}
	return free
}

// Rails returns every connected rail, Right group first, in slot order.
func (i *Intersection) Rails() []RailID {
	rails := make([]RailID, 0, len(i.Right)+len(i.Left))
	for _, group := range [2][]RailID{i.Right, i.Left} {
		for _, r := range group {
			if r != 0 {
				rails = append(rails, r)
			}
		}
	}
	return rails
}

// Empty reports whether no rail is connected.
func (i *Intersection) Empty() bool {
	return len(i.Rails()) == 0
}

// IsRightSide reports whether pos lies on the RightForward side of the intersection.
func (i *Intersection) IsRightSide(pos geom.Vec3) bool {
	d, ok := geom.Dir(geom.Sub(pos, i.Pos))
	if !ok {
		return false
	}
	return geom.Dot(d, i.RightForward) > 0
}

// NearestForward returns RightForward or its opposite, whichever points towards pos.
func (i *Intersection) NearestForward(pos geom.Vec3) geom.Vec3 {
	if i.IsRightSide(pos) {
		return i.RightForward
	}
	return geom.Neg(i.RightForward)
}

// compact moves occupied slots to the front of each group, keeping their order.
func (i *Intersection) compact() {
	for _, group := range [2][]RailID{i.Right, i.Left} {
		k := 0
		for _, r := range group {
			if r != 0 {
				group[k] = r
				k++
			}
		}
		for ; k < len(group); k++ {
			group[k] = 0
		}
	}
}

// CreateNewIntersection adds an empty intersection at pos and returns its id.
func (n *Network) CreateNewIntersection(pos, rightForward geom.Vec3) IntersectionID {
	id := IntersectionID(n.intersectionIDs.Get())
	max := n.params.CurvesMax()
	i := &Intersection{
		ID:           id,
		Pos:          pos,
		RightForward: geom.DirOr(rightForward, geom.Forward),
		Right:        make([]RailID, max),
		Left:         make([]RailID, max),
		Collision:    geom.Sphere{Center: pos, Radius: n.params.IntersectionRadius},
	}
	n.intersections[id] = i
	n.index.set(id, i.Collision)
	n.emit(Event{Kind: EventIntersectionChanged, Intersection: id})
	zap.S().Debugw("created intersection",
		"id", id,
		"pos", geom.String(pos),
		"right-forward", geom.String(i.RightForward))
	return id
}

// IntersectCollision returns the intersection whose collision sphere intersects
// sphere. When several do, the lowest id wins.
func (n *Network) IntersectCollision(sphere geom.Sphere) (*Intersection, bool) {
	for _, id := range n.index.candidates(sphere) {
		i, ok := n.intersections[id]
		if !ok {
			panic(fmt.Sprintf("spatial index has unknown intersection %d", id))
		}
		if i.Collision.Intersects(sphere) {
			return i, true
		}
	}
	return nil, false
}

// Connect puts rail into the first empty slot of the group forward belongs to.
// forward is the rail's direction leaving the intersection.
func (n *Network) Connect(rail RailID, forward geom.Vec3, id IntersectionID) error {
	i, ok := n.intersections[id]
	if !ok {
		return fmt.Errorf("connect rail %d: %w: %d", rail, ErrUnknownIntersection, id)
	}
	group := i.group(i.RightGroup(forward))
	k := emptySlot(group)
	if k == -1 {
		return fmt.Errorf("connect rail %d to %s: %w", rail, i, ErrNoFreeSlot)
	}
	group[k] = rail
	n.emit(Event{Kind: EventIntersectionChanged, Intersection: id})
	return nil
}

func (n *Network) mustConnect(rail RailID, forward geom.Vec3, id IntersectionID) {
	if err := n.Connect(rail, forward, id); err != nil {
		panic(err.Error())
	}
}

// hasFreeSlot reports whether Connect would succeed.
func (y *Layout) hasFreeSlot(id IntersectionID, forward geom.Vec3) bool {
	i := y.MustIntersection(id)
	return emptySlot(i.group(i.RightGroup(forward))) != -1
}

// disconnect clears every slot referring to rail.
func (y *Layout) disconnect(rail RailID, id IntersectionID) {
	i := y.MustIntersection(id)
	for _, group := range [2][]RailID{i.Right, i.Left} {
		for k, r := range group {
			if r == rail {
				group[k] = 0
			}
		}
	}
}

// MinAngleRelativeToOthers returns the smallest angle between dir and the
// direction (from the intersection, towards the far end) of any connected rail.
// With no rails connected it returns π/2.
func (y *Layout) MinAngleRelativeToOthers(id IntersectionID, dir geom.Vec3) float64 {
	i := y.MustIntersection(id)
	min := math.Pi / 2
	for _, rid := range i.Rails() {
		r := y.MustRail(rid)
		if a := geom.AngleBetween(y.jointDir(r, id), dir); a < min {
			min = a
		}
	}
	return min
}

// ConnectedIntersections returns every intersection reachable from id (including
// id itself), sorted.
func (y *Layout) ConnectedIntersections(id IntersectionID) []IntersectionID {
	y.MustIntersection(id)
	visited := map[IntersectionID]bool{id: true}
	stack := []IntersectionID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, rid := range y.MustIntersection(cur).Rails() {
			r := y.MustRail(rid)
			for _, j := range r.Joints {
				if !visited[j.Intersection] {
					visited[j.Intersection] = true
					stack = append(stack, j.Intersection)
				}
			}
		}
	}
	ids := make([]IntersectionID, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CurveOptions returns the rails a train may continue onto when it is at
// intersection id travelling in direction forward. The rail it arrived on leaves
// the intersection in direction -forward; the options are the other group.
func (y *Layout) CurveOptions(id IntersectionID, forward geom.Vec3) []RailID {
	i := y.MustIntersection(id)
	var options []RailID
	for _, r := range i.group(!i.RightGroup(geom.Neg(forward))) {
		if r != 0 {
			options = append(options, r)
		}
	}
	return options
}
