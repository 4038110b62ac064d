package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/spline"
)

var ErrNoPath = errors.New("no path")

// Position is somewhere on a rail, moving in a direction.
type Position struct {
	Rail    rail.RailID
	T       float64
	Forward geom.Vec3
}

// Step is the stretch of one rail a path covers, from t From to t To.
// From > To when the path runs against the rail's direction.
type Step struct {
	Rail     rail.RailID
	From, To float64
}

func (s Step) String() string {
	return fmt.Sprintf("%d(t%.3f→t%.3f)", s.Rail, s.From, s.To)
}

type Path struct {
	Steps []Step
	// Points is the polyline of the path, trimmed to its actual ends.
	Points []geom.Vec3
	Length float64
}

// Rails returns the rails of p in order.
func (p Path) Rails() []rail.RailID {
	res := make([]rail.RailID, len(p.Steps))
	for i, s := range p.Steps {
		res[i] = s.Rail
	}
	return res
}

type item struct {
	node Node
	dist float64
}

// queue orders by distance, then by node for a deterministic result.
type queue []item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node.less(q[j].node)
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

type hop struct {
	from Node
	edge Edge
}

// shortest runs Dijkstra from src. On equal distances the edge found first wins:
// the one from the lower node, then the one along the lower rail id.
func (g *Graph) shortest(src Node) (map[Node]float64, map[Node]hop) {
	dist := map[Node]float64{src: 0}
	prev := map[Node]hop{}
	done := map[Node]bool{}
	q := &queue{{src, 0}}
	for q.Len() > 0 {
		it := heap.Pop(q).(item)
		if done[it.node] {
			continue
		}
		done[it.node] = true
		for _, e := range g.edges[it.node] {
			d := it.dist + e.Weight
			if old, ok := dist[e.To]; ok && d >= old {
				continue
			}
			dist[e.To] = d
			prev[e.To] = hop{it.node, e}
			heap.Push(q, item{e.To, d})
		}
	}
	return dist, prev
}

// Path returns the shortest way from from to the point on rail to nearest pos.
// Trains only turn back at dead ends, so neither is the path allowed to.
func (g *Graph) Path(from Position, to rail.RailID, pos geom.Vec3) (Path, error) {
	fr, ok := g.y.Rail(from.Rail)
	if !ok {
		return Path{}, fmt.Errorf("path from: %w: %d", rail.ErrUnknownRail, from.Rail)
	}
	tr, ok := g.y.Rail(to)
	if !ok {
		return Path{}, fmt.Errorf("path to: %w: %d", rail.ErrUnknownRail, to)
	}
	fromT := clamp01(from.T)
	toT := tr.Spline.TFromPos(pos)
	ahead := geom.Dot(from.Forward, fr.Spline.Forward(fromT)) >= 0

	if from.Rail == to && (ahead && toT >= fromT || !ahead && toT <= fromT) {
		return g.assemble([]Step{{to, fromT, toT}}), nil
	}

	exit, exitT := rail.JointStart, 0.0
	if ahead {
		exit, exitT = rail.JointEnd, 1.0
	}
	src := arrival(g.y, fr, exit)
	dist, prev := g.shortest(src)

	best := math.Inf(1)
	bestEntry := -1
	for _, k := range [2]int{rail.JointStart, rail.JointEnd} {
		d, ok := dist[departure(g.y, tr, k)]
		if !ok {
			continue
		}
		entryT := float64(k)
		d += math.Abs(tr.Spline.DistanceAt(toT) - tr.Spline.DistanceAt(entryT))
		if d < best {
			best, bestEntry = d, k
		}
	}
	if bestEntry == -1 {
		return Path{}, fmt.Errorf("%w from %d to %d", ErrNoPath, from.Rail, to)
	}

	var middle []Step
	for n := departure(g.y, tr, bestEntry); n != src; {
		h, ok := prev[n]
		if !ok {
			panic(fmt.Sprintf("broken path back from %s", n))
		}
		s := Step{h.edge.Rail, 1, 0}
		if h.edge.FromStart {
			s = Step{h.edge.Rail, 0, 1}
		}
		middle = append([]Step{s}, middle...)
		n = h.from
	}

	steps := []Step{{from.Rail, fromT, exitT}}
	steps = append(steps, middle...)
	steps = append(steps, Step{to, float64(bestEntry), toT})
	return g.assemble(steps), nil
}

// PathToStation is Path to the station id.
func (g *Graph) PathToStation(from Position, id rail.StationID) (Path, error) {
	st, ok := g.y.Station(id)
	if !ok {
		return Path{}, fmt.Errorf("path to: %w: %d", rail.ErrUnknownStation, id)
	}
	return g.Path(from, st.Rail, st.Pos)
}

func (g *Graph) assemble(steps []Step) Path {
	p := Path{Steps: steps}
	for i, s := range steps {
		sp := &g.y.MustRail(s.Rail).Spline
		p.Length += math.Abs(sp.DistanceAt(s.To) - sp.DistanceAt(s.From))
		pts := trim(sp, s.From, s.To)
		if i > 0 {
			pts = pts[1:]
		}
		p.Points = append(p.Points, pts...)
	}
	return p
}

// trim returns the polyline of s between from and to (in travel order),
// starting and ending exactly at those t.
func trim(s *spline.Spline, from, to float64) []geom.Vec3 {
	cp := s.CurvePoints()
	l := s.CurveLength()
	a, b := s.DistanceAt(from), s.DistanceAt(to)
	res := []geom.Vec3{s.Position(from)}
	inside := func(i int) bool {
		d := l * float64(i) / float64(len(cp)-1)
		return d > math.Min(a, b) && d < math.Max(a, b)
	}
	if a <= b {
		for i := range cp {
			if inside(i) {
				res = append(res, cp[i])
			}
		}
	} else {
		for i := len(cp) - 1; i >= 0; i-- {
			if inside(i) {
				res = append(res, cp[i])
			}
		}
	}
	return append(res, s.Position(to))
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}
