package spline

import (
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
)

const (
	// arcSubsteps is the number of chords each lookup table interval is measured with.
	arcSubsteps = 8
	// refineIterations bounds every refinement loop, converged or not.
	refineIterations = 100
	// refineEpsilon is divided by the polyline point count to get the refinement threshold (in t).
	refineEpsilon = 1e-4
	// lengthEpsilon is the arc length below which a curve counts as a single point.
	lengthEpsilon = 1e-9
)

// chord measures the curve between a and b with arcSubsteps straight segments.
func (s *Spline) chord(a, b float64) float64 {
	var sum float64
	prev := s.Position(a)
	for k := 1; k <= arcSubsteps; k++ {
		cur := s.Position(a + (b-a)*float64(k)/arcSubsteps)
		sum += geom.Distance(prev, cur)
		prev = cur
	}
	return sum
}

func (s *Spline) buildLUT() {
	n := s.params.Samples
	lut := make([]Sample, n)
	for i := range lut {
		t := float64(i) / float64(n-1)
		lut[i] = Sample{T: t, Pos: s.Position(t)}
		if i > 0 {
			lut[i].Distance = lut[i-1].Distance + s.chord(lut[i-1].T, t)
		}
	}
	if lut[n-1].Distance < lengthEpsilon {
		for i := range lut {
			lut[i].Distance = 0
		}
	}
	s.lut = lut
	s.length = lut[n-1].Distance
}

func (s *Spline) buildPoints() {
	start := s.controls[0].Pos
	end := s.controls[1].Pos
	segments := 2
	if s.params.MinSegmentLength > 0 {
		segments = int(math.Round(geom.Distance(start, end) / s.params.MinSegmentLength))
		if segments < 2 {
			segments = 2
		}
	}
	if s.params.MaxSegments > 0 && segments > s.params.MaxSegments {
		segments = s.params.MaxSegments
	}
	if segments < 1 {
		segments = 1
	}
	s.pointCount = segments + 1
	points := make([]geom.Vec3, s.pointCount)
	for k := range points {
		points[k] = s.Position(s.TFromDistance(s.length * float64(k) / float64(segments)))
	}
	s.points = points
}

// bracket returns i such that lut[i].T <= t <= lut[i+1].T.
func (s *Spline) bracket(t float64) int {
	n := len(s.lut)
	i := int(t * float64(n-1))
	if i > n-2 {
		i = n - 2
	}
	if i < 0 {
		i = 0
	}
	return i
}

// DistanceAt returns the arc length from the start of the curve to t.
func (s *Spline) DistanceAt(t float64) float64 {
	if len(s.lut) < 2 {
		return 0
	}
	t = clamp01(t)
	i := s.bracket(t)
	return s.lut[i].Distance + s.chord(s.lut[i].T, t)
}

// LUTDistance is DistanceAt, but linearly interpolated between the two lookup table
// samples bracketing t. Traverse works in this measure.
func (s *Spline) LUTDistance(t float64) float64 {
	if len(s.lut) < 2 {
		return 0
	}
	t = clamp01(t)
	i := s.bracket(t)
	a, b := s.lut[i], s.lut[i+1]
	if b.T == a.T {
		return a.Distance
	}
	return a.Distance + (t-a.T)/(b.T-a.T)*(b.Distance-a.Distance)
}

// TFromPos returns the t of the point on the curve nearest to pos.
// The lookup table seeds the search, which is then refined by halving intervals.
// Distances are compared squared.
func (s *Spline) TFromPos(pos geom.Vec3) float64 {
	if len(s.lut) == 0 {
		return 0
	}
	best := 0
	bestD := math.Inf(1)
	for i, smp := range s.lut {
		if d := geom.DistanceSqr(smp.Pos, pos); d < bestD {
			best, bestD = i, d
		}
	}
	return s.refine(s.lut[best].T, func(t float64) float64 {
		return geom.DistanceSqr(s.Position(t), pos)
	}, "pos")
}

// TFromDistance returns the t at which the arc length from the start equals distance.
// The error is squared like in TFromPos.
func (s *Spline) TFromDistance(distance float64) float64 {
	if len(s.lut) == 0 || s.length == 0 {
		return 0
	}
	distance = math.Max(0, math.Min(s.length, distance))
	best := 0
	bestD := math.Inf(1)
	for i, smp := range s.lut {
		if d := math.Abs(smp.Distance - distance); d < bestD {
			best, bestD = i, d
		}
	}
	return s.refine(s.lut[best].T, func(t float64) float64 {
		d := s.DistanceAt(t) - distance
		return d * d
	}, "distance")
}

// refine searches around t for a lower cost, halving the step every iteration.
// It gives up after refineIterations and logs a warning, returning the best t found.
func (s *Spline) refine(t float64, cost func(t float64) float64, goal string) float64 {
	half := 0.5
	if len(s.lut) >= 2 {
		half = 1 / float64(len(s.lut)-1)
	}
	threshold := refineEpsilon / float64(max(s.pointCount, 1))
	c := cost(t)
	for i := 0; i < refineIterations; i++ {
		half /= 2
		for _, cand := range [2]float64{clamp01(t - half), clamp01(t + half)} {
			if cc := cost(cand); cc < c {
				t, c = cand, cc
			}
		}
		if half < threshold {
			return clamp01(t)
		}
	}
	zap.S().Warnw("spline: refinement did not converge",
		"goal", goal,
		"t", t,
		"half", half,
		"threshold", threshold,
		"spline", s.String())
	return clamp01(t)
}

func (s *Spline) searchDistance(e Sample, distance float64) int {
	switch {
	case e.Distance < distance:
		return -1
	case e.Distance > distance:
		return 1
	default:
		return 0
	}
}

// Traverse moves t by movement along the curve (negative to go backwards).
// It interpolates linearly between the lookup table samples around t instead of
// projecting from scratch, so repeated small moves never step backwards.
// The result is clamped to [0, 1].
func (s *Spline) Traverse(t, movement float64) float64 {
	if len(s.lut) < 2 || s.length == 0 {
		return clamp01(t)
	}
	d := s.LUTDistance(t) + movement
	if d <= 0 {
		return 0
	}
	if d >= s.length {
		return 1
	}
	j, _ := slices.BinarySearchFunc(s.lut, d, s.searchDistance)
	if j < 1 {
		j = 1
	}
	a, b := s.lut[j-1], s.lut[j]
	if b.Distance == a.Distance {
		return b.T
	}
	return a.T + (d-a.Distance)/(b.Distance-a.Distance)*(b.T-a.T)
}
