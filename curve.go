package rheobench

import (
	"fmt"
	"math"
	"sort"
)

// CorrectedCurve is a flow curve produced by one stage: ShearRate[i] pairs with Stress[i].
//
// Bagley and Mooney emit one entry per surviving target, so the length of a
// stage's output is independent of the length of its input.
type CorrectedCurve struct {
	ShearRate []float64 // 1/s
	Stress    []float64 // Pa
}

// Len returns the number of pairs in the curve.
func (c CorrectedCurve) Len() int {
	return len(c.ShearRate)
}

// Viscosity returns τ/γ̇ for every pair (NaN where γ̇ is zero).
func (c CorrectedCurve) Viscosity() []float64 {
	out := make([]float64, len(c.ShearRate))
	for i := range c.ShearRate {
		if c.ShearRate[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = c.Stress[i] / c.ShearRate[i]
	}
	return out
}

func (c CorrectedCurve) validate() error {
	if len(c.ShearRate) != len(c.Stress) {
		return fmt.Errorf("%w: %d shear rates vs %d stresses", ErrInsufficientData, len(c.ShearRate), len(c.Stress))
	}
	return nil
}

// series is an (x, y) sequence sorted by x with unique x values.
type series struct {
	x []float64
	y []float64
}

// newSeries sorts the pairs by x and merges duplicate x values by averaging their y.
// Non-finite pairs are dropped. Input order carries no meaning.
func newSeries(x, y []float64) series {
	idx := make([]int, 0, len(x))
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return x[idx[a]] < x[idx[b]]
	})

	s := series{
		x: make([]float64, 0, len(idx)),
		y: make([]float64, 0, len(idx)),
	}
	for i := 0; i < len(idx); {
		xv := x[idx[i]]
		sum, n := 0.0, 0
		for i < len(idx) && x[idx[i]] == xv {
			sum += y[idx[i]]
			n++
			i++
		}
		s.x = append(s.x, xv)
		s.y = append(s.y, sum/float64(n))
	}
	return s
}

// bounds returns the observed x range.
func (s series) bounds() (lo, hi float64, ok bool) {
	if len(s.x) == 0 {
		return 0, 0, false
	}
	return s.x[0], s.x[len(s.x)-1], true
}

// interpolate returns y at x by linear interpolation. It never extrapolates:
// ok is false when x lies outside the observed range.
func (s series) interpolate(x float64) (float64, bool) {
	lo, hi, ok := s.bounds()
	if !ok || x < lo || x > hi {
		return 0, false
	}
	i := sort.SearchFloat64s(s.x, x)
	if s.x[i] == x {
		return s.y[i], true
	}
	x0, x1 := s.x[i-1], s.x[i]
	y0, y1 := s.y[i-1], s.y[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0), true
}

// extrapolate returns y at x, extending the end segments linearly beyond the range.
func (s series) extrapolate(x float64) float64 {
	n := len(s.x)
	switch {
	case n == 1:
		return s.y[0]
	case x <= s.x[0]:
		return lerp(s.x[0], s.y[0], s.x[1], s.y[1], x)
	case x >= s.x[n-1]:
		return lerp(s.x[n-2], s.y[n-2], s.x[n-1], s.y[n-1], x)
	}
	y, _ := s.interpolate(x)
	return y
}

func lerp(x0, y0, x1, y1, x float64) float64 {
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// GeometricGrid returns n geometrically spaced values from lo to hi inclusive.
// Both bounds must be positive with lo <= hi.
func GeometricGrid(lo, hi float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: grid needs at least 2 targets, got %d", ErrInsufficientData, n)
	}
	if !(lo > 0) || !(hi >= lo) || !isFinite(hi) {
		return nil, fmt.Errorf("%w: empty or non-positive range [%g, %g]", ErrNoValidTargets, lo, hi)
	}

	grid := make([]float64, n)
	logLo, logHi := math.Log(lo), math.Log(hi)
	step := (logHi - logLo) / float64(n-1)
	for i := range grid {
		grid[i] = math.Exp(logLo + step*float64(i))
	}
	// Pin the ends so that floating error cannot push them outside the range.
	grid[0], grid[n-1] = lo, hi
	return grid, nil
}

// overlap returns the intersection of the observed x ranges of every series.
func overlap(all []series) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(-1), math.Inf(1)
	for _, s := range all {
		l, h, has := s.bounds()
		if !has {
			return 0, 0, false
		}
		lo = math.Max(lo, l)
		hi = math.Min(hi, h)
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
