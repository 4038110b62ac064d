package train

import (
	"fmt"
	"math"

	"github.com/openacid/slimarray/polyfit"
)

const (
	minPower = 0
	maxPower = 255
)

// Relation maps throttle power (x) to speed (y) as y = Σ Coeffs[i]·xⁱ.
type Relation struct {
	Coeffs []float64
}

func (r Relation) Valid() bool { return len(r.Coeffs) > 0 }

func (r Relation) Speed(power float64) float64 {
	y := 0.0
	for i := len(r.Coeffs) - 1; i >= 0; i-- {
		y = y*power + r.Coeffs[i]
	}
	return y
}

// Power solves for the power giving speed.
// For quadratics with two solutions in range, the lower one is returned.
func (r Relation) Power(speed float64) (power float64, ok bool) {
	inRange := func(x float64) bool { return x >= minPower && x <= maxPower }
	switch len(r.Coeffs) {
	case 0:
		panic("cannot solve for literally nothing")
	case 1:
		panic("cannot solve for constant")
	case 2:
		x := (speed - r.Coeffs[0]) / r.Coeffs[1]
		return x, inRange(x)
	case 3:
		a, b, c := r.Coeffs[2], r.Coeffs[1], r.Coeffs[0]-speed
		if a == 0 {
			x := -c / b
			return x, inRange(x)
		}
		d := math.Sqrt(b*b - 4*a*c)
		xa := (-b + d) / (2 * a)
		xb := (-b - d) / (2 * a)
		switch {
		case inRange(xa) && inRange(xb):
			return math.Min(xa, xb), true
		case inRange(xa):
			return xa, true
		case inRange(xb):
			return xb, true
		default:
			return 0, false
		}
	default:
		panic(fmt.Sprintf("only linear and quadratic relations supported (%d coeffs given)", len(r.Coeffs)))
	}
}

// Fit fits a relation of degree at most 2 over (power, speed) points.
func Fit(points [][2]float64) Relation {
	if len(points) == 0 {
		return Relation{}
	}
	degree := 2
	if len(points)-1 < degree {
		degree = len(points) - 1
	}
	if degree == 0 {
		return Relation{Coeffs: []float64{points[0][1]}}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p[0]
		ys[i] = p[1]
	}
	fit := polyfit.NewFit(xs, ys, degree)
	return Relation{Coeffs: fit.Solve()}
}
