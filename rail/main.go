// Package rail is the track network: intersections (junctions) and the rails
// (single curves) between them.
//
// Everything lives in one arena owned by Network and refers to everything else by
// id, never by pointer. Layout is the read-only half of the arena; Network.Snapshot
// copies it for consumers that run off the simulation goroutine.
package rail

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/spline"
)

var (
	ErrNoFreeSlot          = errors.New("no free slot in intersection group")
	ErrUnknownIntersection = errors.New("unknown intersection")
	ErrUnknownRail         = errors.New("unknown rail")
	ErrUnknownStation      = errors.New("unknown station")
	ErrSelfLoop            = errors.New("rail starts and ends at the same intersection")
	ErrJointOffset         = errors.New("rail end is not at its intersection")
)

type IntersectionID uint32

type RailID uint32

type Params struct {
	// IntersectionRadius is the radius of every intersection's collision sphere.
	IntersectionRadius float64 `json:"intersection-radius"`
	// MinDelta is the smallest angle (radians) allowed between two rails leaving an
	// intersection. It bounds how many rails fit in one group.
	MinDelta float64       `json:"min-delta"`
	Spline   spline.Params `json:"spline"`
}

func DefaultParams() Params {
	return Params{
		IntersectionRadius: 2.5,
		MinDelta:           15 * math.Pi / 180,
		Spline:             spline.DefaultParams(),
	}
}

// CurvesMax is the capacity of each group of an intersection.
func (p Params) CurvesMax() int {
	if p.MinDelta <= 0 {
		panic(fmt.Sprintf("invalid MinDelta %f", p.MinDelta))
	}
	return int(math.Ceil(math.Pi/p.MinDelta - 1e-9))
}

// Layout is a read-only view of a network.
type Layout struct {
	params        Params
	intersections map[IntersectionID]*Intersection
	rails         map[RailID]*Rail
	stations      map[StationID]*Station
}

func (y *Layout) Params() Params { return y.params }

func (y *Layout) Intersection(id IntersectionID) (*Intersection, bool) {
	i, ok := y.intersections[id]
	return i, ok
}

// MustIntersection is Intersection, but panics if id doesn't exist.
func (y *Layout) MustIntersection(id IntersectionID) *Intersection {
	i, ok := y.intersections[id]
	if !ok {
		panic(fmt.Sprintf("intersection %d doesn't exist", id))
	}
	return i
}

func (y *Layout) Rail(id RailID) (*Rail, bool) {
	r, ok := y.rails[id]
	return r, ok
}

// MustRail is Rail, but panics if id doesn't exist.
func (y *Layout) MustRail(id RailID) *Rail {
	r, ok := y.rails[id]
	if !ok {
		panic(fmt.Sprintf("rail %d doesn't exist", id))
	}
	return r
}

// IntersectionIDs returns every intersection id, sorted.
func (y *Layout) IntersectionIDs() []IntersectionID {
	ids := maps.Keys(y.intersections)
	slices.Sort(ids)
	return ids
}

// RailIDs returns every rail id, sorted.
func (y *Layout) RailIDs() []RailID {
	ids := maps.Keys(y.rails)
	slices.Sort(ids)
	return ids
}

func (y *Layout) clone() *Layout {
	c := &Layout{
		params:        y.params,
		intersections: make(map[IntersectionID]*Intersection, len(y.intersections)),
		rails:         make(map[RailID]*Rail, len(y.rails)),
		stations:      make(map[StationID]*Station, len(y.stations)),
	}
	for id, i := range y.intersections {
		c.intersections[id] = i.clone()
	}
	for id, r := range y.rails {
		r2 := *r
		c.rails[id] = &r2
	}
	for id, s := range y.stations {
		s2 := *s
		c.stations[id] = &s2
	}
	return c
}

// Network is the mutable track network.
// It is not safe for concurrent use; hand Snapshots to other goroutines instead.
type Network struct {
	Layout
	intersectionIDs IDProvider
	railIDs         IDProvider
	stationIDs      IDProvider
	index           *spatialIndex

	pending []Event
	seq     uint64
	sender  *notify.MultiplexerSender[Change]
	// Changes receives a Change every time Flush is called with pending events.
	Changes *notify.Multiplexer[Change]
}

func NewNetwork(p Params) (*Network, error) {
	if p.IntersectionRadius <= 0 {
		return nil, fmt.Errorf("invalid intersection radius %f", p.IntersectionRadius)
	}
	if p.MinDelta <= 0 || p.MinDelta > math.Pi {
		return nil, fmt.Errorf("invalid min delta %f", p.MinDelta)
	}
	index, err := newSpatialIndex()
	if err != nil {
		return nil, fmt.Errorf("spatial index: %w", err)
	}
	n := &Network{
		Layout: Layout{
			params:        p,
			intersections: map[IntersectionID]*Intersection{},
			rails:         map[RailID]*Rail{},
			stations:      map[StationID]*Station{},
		},
		index: index,
	}
	n.sender, n.Changes = notify.NewMultiplexerSender[Change]("rail network")
	return n, nil
}

func (n *Network) Close() error {
	return n.index.Close()
}

// Snapshot returns a deep copy of the current layout.
func (n *Network) Snapshot() *Layout {
	return n.Layout.clone()
}

// NewSpline returns an empty spline using this network's spline parameters.
func (n *Network) NewSpline(controls [2]spline.Control) spline.Spline {
	return spline.New(n.params.Spline, controls)
}

func (y *Layout) String() string {
	return fmt.Sprintf("layout(%d intersections, %d rails, %d stations)", len(y.intersections), len(y.rails), len(y.stations))
}

// jointDir returns the direction of the rail's far end as seen from its end at intersection id.
func (y *Layout) jointDir(r *Rail, id IntersectionID) geom.Vec3 {
	c := r.Spline.Controls()
	near, far := c[0].Pos, c[1].Pos
	if r.Joints[0].Intersection != id {
		near, far = far, near
	}
	return geom.Normalize(geom.Sub(far, near))
}
