package train

import (
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/rail"
)

// RandomSelector picks uniformly among the options.
type RandomSelector struct {
	rng *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSelector) Select(_ *Train, _ rail.IntersectionID, options []rail.RailID) rail.RailID {
	return options[s.rng.Intn(len(options))]
}

// RouteSelector follows a per-train route of rails. Off route, or once the
// route is used up, it defers to Fallback.
type RouteSelector struct {
	Fallback Selector
	routes   map[uuid.UUID][]rail.RailID
}

func NewRouteSelector(fallback Selector) *RouteSelector {
	return &RouteSelector{
		Fallback: fallback,
		routes:   map[uuid.UUID][]rail.RailID{},
	}
}

// SetRoute sets the rails train should follow, in order. A nil route clears it.
func (s *RouteSelector) SetRoute(train uuid.UUID, route []rail.RailID) {
	if route == nil {
		delete(s.routes, train)
		return
	}
	s.routes[train] = slices.Clone(route)
}

// Route returns what is left of train's route.
func (s *RouteSelector) Route(train uuid.UUID) []rail.RailID {
	return slices.Clone(s.routes[train])
}

func (s *RouteSelector) Select(t *Train, at rail.IntersectionID, options []rail.RailID) rail.RailID {
	route := s.routes[t.ID]
	i := slices.Index(route, t.Rail)
	if i != -1 && i+1 < len(route) && slices.Contains(options, route[i+1]) {
		s.routes[t.ID] = route[i+1:]
		return route[i+1]
	}
	return s.Fallback.Select(t, at, options)
}
