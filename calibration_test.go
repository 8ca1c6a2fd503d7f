package rheobench

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibration_ShearRateAt(t *testing.T) {
	cal, err := NewCalibration("bagley+mooney", []string{"a", "b"}, CorrectedCurve{
		ShearRate: []float64{40, 10, 20},
		Stress:    []float64{300, 100, 200},
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 200, 300}, cal.Stress)
	assert.Equal(t, []float64{10, 20, 40}, cal.ShearRate)

	cases := []struct {
		stress, want float64
	}{
		{150, 15},
		{200, 20},
		{400, 60}, // beyond range: last segment extended
		{50, 5},   // below range: first segment extended
	}
	for _, tc := range cases {
		got, err := cal.ShearRateAt(tc.stress)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, got, 1e-12, "τ=%g", tc.stress)
	}
}

func TestCalibration_ApplyDropsNegativeRates(t *testing.T) {
	cal, err := NewCalibration("bagley", nil, CorrectedCurve{
		ShearRate: []float64{10, 30},
		Stress:    []float64{100, 200},
	})
	require.NoError(t, err)

	out, dropped, err := cal.Apply(CorrectedCurve{
		ShearRate: []float64{1, 2, 3},
		Stress:    []float64{40, 150, 300},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []float64{150, 300}, out.Stress)
	assert.InDelta(t, 20, out.ShearRate[0], 1e-12)
	assert.InDelta(t, 50, out.ShearRate[1], 1e-12)

	_, dropped, err = cal.Apply(CorrectedCurve{ShearRate: []float64{1, 2}, Stress: []float64{10, 20}})
	assert.ErrorIs(t, err, ErrNoValidTargets)
	assert.Equal(t, 2, dropped)
}

func TestCalibration_Invalid(t *testing.T) {
	_, err := NewCalibration("bagley", nil, CorrectedCurve{
		ShearRate: []float64{10, 12},
		Stress:    []float64{100, 100},
	})
	assert.ErrorIs(t, err, ErrInvalidCalibration)

	var empty Calibration
	_, err = empty.ShearRateAt(10)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

// TestCalibration_DecodedCurve covers a calibration rebuilt from its exported
// fields, as a loader does.
func TestCalibration_DecodedCurve(t *testing.T) {
	cal := &Calibration{
		CorrectionType: "bagley+mooney",
		Stress:         []float64{100, 300},
		ShearRate:      []float64{10, 50},
	}
	got, err := cal.ShearRateAt(200)
	require.NoError(t, err)
	assert.InDelta(t, 30, got, 1e-12)
}

func TestCalibration_DecodedCurveIsReadOnly(t *testing.T) {
	cal := &Calibration{
		Stress:    []float64{100, 200, 300},
		ShearRate: []float64{10, 20, 40},
	}
	before := *cal

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(stress float64) {
			defer wg.Done()
			_, err := cal.ShearRateAt(stress)
			assert.NoError(t, err)
		}(100 + float64(i)*25)
	}
	wg.Wait()

	out, dropped, err := cal.Apply(CorrectedCurve{ShearRate: []float64{1, 2}, Stress: []float64{150, 250}})
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.InDeltaSlice(t, []float64{15, 30}, out.ShearRate, 1e-12)

	assert.Equal(t, before, *cal, "reads must not populate the cached series")
	assert.Empty(t, cal.curve.x)
}

func TestCalibration_MismatchedFields(t *testing.T) {
	cal := &Calibration{Stress: []float64{100, 200, 300}, ShearRate: []float64{10, 20}}
	_, err := cal.ShearRateAt(150)
	assert.ErrorIs(t, err, ErrInvalidCalibration)

	_, _, err = cal.Apply(CorrectedCurve{ShearRate: []float64{1}, Stress: []float64{150}})
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}
