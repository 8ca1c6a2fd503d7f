package rheobench

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// LinearFit is an ordinary least-squares line y = Intercept + Slope·x.
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// FitLine performs ordinary least squares on (x, y).
// It needs at least two points with distinct x values.
func FitLine(x, y []float64) (LinearFit, error) {
	if len(x) != len(y) {
		return LinearFit{}, fmt.Errorf("%w: %d x values vs %d y values", ErrInsufficientData, len(x), len(y))
	}
	if len(x) < 2 {
		return LinearFit{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(x))
	}
	if spread(x) == 0 {
		return LinearFit{}, fmt.Errorf("%w: all x values are equal", ErrInsufficientData)
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if !isFinite(intercept) || !isFinite(slope) {
		return LinearFit{}, fmt.Errorf("%w: regression produced non-finite coefficients", ErrInsufficientData)
	}

	r2 := 1.0
	if spread(y) > 0 {
		r2 = stat.RSquared(x, y, nil, intercept, slope)
	}

	return LinearFit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		N:         len(x),
	}, nil
}

// spread is the population variance of v, with spread below the rounding
// noise of the mean counted as none.
func spread(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mean, variance := stat.PopMeanVariance(v, nil)
	if math.IsNaN(variance) || variance <= 1e-24*mean*mean {
		return 0
	}
	return variance
}
