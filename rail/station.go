package rail

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
)

type StationID uint32

// Station is a stop placed on a rail.
type Station struct {
	ID   StationID
	Name string
	Rail RailID
	// T is where on Rail the station is; Pos is the point there.
	T   float64
	Pos geom.Vec3
}

func (s *Station) String() string {
	return fmt.Sprintf("station %d %q on %d at t%.3f", s.ID, s.Name, s.Rail, s.T)
}

func (y *Layout) Station(id StationID) (*Station, bool) {
	s, ok := y.stations[id]
	return s, ok
}

// StationIDs returns every station id, sorted.
func (y *Layout) StationIDs() []StationID {
	ids := maps.Keys(y.stations)
	slices.Sort(ids)
	return ids
}

// StationsOn returns the stations on rail, by id.
func (y *Layout) StationsOn(rail RailID) []*Station {
	var res []*Station
	for _, id := range y.StationIDs() {
		if s := y.stations[id]; s.Rail == rail {
			res = append(res, s)
		}
	}
	return res
}

// AddStation places a station on rail at the point nearest to pos.
func (n *Network) AddStation(rail RailID, name string, pos geom.Vec3) (StationID, error) {
	r, ok := n.rails[rail]
	if !ok {
		return 0, fmt.Errorf("add station %q: not on rail: %w: %d", name, ErrUnknownRail, rail)
	}
	t := r.Spline.TFromPos(pos)
	s := &Station{
		ID:   StationID(n.stationIDs.Get()),
		Name: name,
		Rail: rail,
		T:    t,
		Pos:  r.Spline.Position(t),
	}
	n.stations[s.ID] = s
	n.emit(Event{Kind: EventStationChanged, Station: s.ID})
	zap.S().Debugw("added station", "station", s.String())
	return s.ID, nil
}

func (n *Network) RemoveStation(id StationID) error {
	if _, ok := n.stations[id]; !ok {
		return fmt.Errorf("remove: %w: %d", ErrUnknownStation, id)
	}
	n.removeStation(id)
	return nil
}

func (n *Network) removeStation(id StationID) {
	delete(n.stations, id)
	n.stationIDs.Put(uint32(id))
	n.emit(Event{Kind: EventStationRemoved, Station: id})
}

// moveStations puts the stations of a rail split at t onto its halves a and b.
func (n *Network) moveStations(rail RailID, t float64, a, b *Rail) {
	for _, s := range n.StationsOn(rail) {
		to := a
		if s.T > t {
			to = b
		}
		s.Rail = to.ID
		s.T = to.Spline.TFromPos(s.Pos)
		n.emit(Event{Kind: EventStationChanged, Station: s.ID})
	}
}
