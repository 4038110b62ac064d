package rail

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type EventKind int

const (
	EventIntersectionChanged EventKind = iota + 1
	EventIntersectionRemoved
	EventRailAdded
	EventRailRemoved
	EventStationChanged
	EventStationRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventIntersectionChanged:
		return "intersection-changed"
	case EventIntersectionRemoved:
		return "intersection-removed"
	case EventRailAdded:
		return "rail-added"
	case EventRailRemoved:
		return "rail-removed"
	case EventStationChanged:
		return "station-changed"
	case EventStationRemoved:
		return "station-removed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes one change to the network. Only the id matching Kind is set.
type Event struct {
	Kind         EventKind
	Intersection IntersectionID
	Rail         RailID
	Station      StationID
}

func (e Event) String() string {
	switch e.Kind {
	case EventRailAdded, EventRailRemoved:
		return fmt.Sprintf("%s %d", e.Kind, e.Rail)
	case EventStationChanged, EventStationRemoved:
		return fmt.Sprintf("%s %d", e.Kind, e.Station)
	default:
		return fmt.Sprintf("%s %d", e.Kind, e.Intersection)
	}
}

// Change is a batch of events together with the layout after all of them.
type Change struct {
	// Seq increases by one every Flush. Changes may be delivered out of order;
	// consumers should ignore one older than the last they saw.
	Seq    uint64
	Events []Event
	Layout *Layout
}

func (n *Network) emit(e Event) {
	if slices.Contains(n.pending, e) {
		return
	}
	n.pending = append(n.pending, e)
}

// Pending returns the events recorded since the last Flush.
func (n *Network) Pending() []Event {
	return slices.Clone(n.pending)
}

// Flush publishes every event since the last Flush as one Change on Changes.
// It returns false (and publishes nothing) when there were none.
func (n *Network) Flush() (Change, bool) {
	if len(n.pending) == 0 {
		return Change{}, false
	}
	n.seq++
	c := Change{
		Seq:    n.seq,
		Events: n.pending,
		Layout: n.Snapshot(),
	}
	n.pending = nil
	n.sender.Send(c)
	return c, true
}
