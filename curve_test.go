package rheobench

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_SortsAndAveragesDuplicates(t *testing.T) {
	s := newSeries(
		[]float64{3, 1, 2, 1, math.NaN(), 4},
		[]float64{30, 10, 20, 14, 99, math.Inf(1)},
	)

	if diff := cmp.Diff([]float64{1, 2, 3}, s.x); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{12, 20, 30}, s.y); diff != "" {
		t.Errorf("y mismatch (-want +got):\n%s", diff)
	}
}

func TestSeries_InterpolateNeverExtrapolates(t *testing.T) {
	s := newSeries([]float64{1, 2, 4}, []float64{10, 20, 40})

	y, ok := s.interpolate(3)
	require.True(t, ok)
	assert.InDelta(t, 30, y, 1e-12)

	y, ok = s.interpolate(4)
	require.True(t, ok, "range end is inside")
	assert.Equal(t, 40.0, y)

	_, ok = s.interpolate(0.999)
	assert.False(t, ok)
	_, ok = s.interpolate(4.001)
	assert.False(t, ok)

	_, ok = series{}.interpolate(1)
	assert.False(t, ok)
}

func TestSeries_Extrapolate(t *testing.T) {
	s := newSeries([]float64{1, 2, 4}, []float64{10, 20, 50})

	assert.InDelta(t, 0, s.extrapolate(0), 1e-12)
	assert.InDelta(t, 65, s.extrapolate(5), 1e-12)
	assert.InDelta(t, 35, s.extrapolate(3), 1e-12)
}

func TestGeometricGrid(t *testing.T) {
	grid, err := GeometricGrid(1, 1000, 4)
	require.NoError(t, err)
	require.Len(t, grid, 4)

	assert.Equal(t, 1.0, grid[0])
	assert.Equal(t, 1000.0, grid[3])
	assert.InDelta(t, 10, grid[1], 1e-9)
	assert.InDelta(t, 100, grid[2], 1e-9)

	single, err := GeometricGrid(5, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5}, single)

	_, err = GeometricGrid(1, 10, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = GeometricGrid(0, 10, 5)
	assert.ErrorIs(t, err, ErrNoValidTargets)
	_, err = GeometricGrid(10, 1, 5)
	assert.ErrorIs(t, err, ErrNoValidTargets)
}

func TestOverlap(t *testing.T) {
	a := newSeries([]float64{1, 5, 10}, []float64{1, 1, 1})
	b := newSeries([]float64{3, 20}, []float64{1, 1})

	lo, hi, ok := overlap([]series{a, b})
	require.True(t, ok)
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 10.0, hi)

	c := newSeries([]float64{11, 12}, []float64{1, 1})
	_, _, ok = overlap([]series{a, c})
	assert.False(t, ok)
}

func TestFitLine(t *testing.T) {
	fit, err := FitLine([]float64{1, 2, 3, 4}, []float64{5, 7, 9, 11})
	require.NoError(t, err)
	assert.InDelta(t, 2, fit.Slope, 1e-12)
	assert.InDelta(t, 3, fit.Intercept, 1e-12)
	assert.InDelta(t, 1, fit.RSquared, 1e-12)
	assert.Equal(t, 4, fit.N)

	_, err = FitLine([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = FitLine([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInsufficientData, "zero variance in x")
	_, err = FitLine([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)

	flat, err := FitLine([]float64{1, 2, 3}, []float64{4, 4, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0, flat.Slope, 1e-12)
	assert.Equal(t, 1.0, flat.RSquared)
}

func TestFitLine_RoundingSpread(t *testing.T) {
	third := 0.1 + 0.2 // 0.30000000000000004
	_, err := FitLine([]float64{third, 0.3, 0.3}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInsufficientData, "x differs only by rounding")

	flat, err := FitLine([]float64{1, 2, 3}, []float64{1e6, 1e6 + 1e-10, 1e6})
	require.NoError(t, err)
	assert.Equal(t, 1.0, flat.RSquared, "y differs only by rounding")
}

func TestSpread(t *testing.T) {
	assert.Equal(t, 0.0, spread(nil))
	assert.Equal(t, 0.0, spread([]float64{7, 7, 7}))
	assert.InDelta(t, 1.25, spread([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, spread([]float64{5e8, 5e8 + 1e-7}))
	assert.Greater(t, spread([]float64{1e-6, 2e-6}), 0.0)
}
