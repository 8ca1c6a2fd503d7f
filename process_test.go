package rheobench

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func powerLawDataset() CapillaryDataset {
	g := CapillaryGeometry{Diameter: 1, Length: 20}
	ds := datasetFromRates("pl", g, logspace(10, 1000, 8), func(rate float64, g CapillaryGeometry) float64 {
		return 2 * 10 * math.Sqrt(rate) * g.AspectRatio()
	})
	ds.Points = append(ds.Points, MeasurementPoint{Pressure: 5e5, Mass: 0, Duration: 10, Sequence: 9})
	return ds
}

func TestProcessDataset_Rabinowitsch(t *testing.T) {
	res, err := ProcessDataset(powerLawDataset(), ProcessOptions{})
	require.NoError(t, err)

	require.Len(t, res.Points, 8)
	assert.Equal(t, 1, res.NoFlow)
	require.NotNil(t, res.Rabinowitsch)
	assert.InDelta(t, 0.5, res.Rabinowitsch.NPrime, 1e-9)

	for _, p := range res.Points {
		assert.Equal(t, "pl", p.Source)
		assert.InEpsilon(t, 1.25*p.ApparentShearRate, p.ShearRate, 1e-9)
		assert.InEpsilon(t, p.Stress/p.ShearRate, p.Viscosity, 1e-12)
		assert.InEpsilon(t, p.Stress/p.ApparentShearRate, p.ApparentViscosity, 1e-12)
	}

	curve := res.Curve()
	assert.Equal(t, 8, curve.Len())
	assert.Equal(t, res.Points[3].ShearRate, curve.ShearRate[3])
}

func TestProcessDataset_Calibration(t *testing.T) {
	cal, err := NewCalibration("bagley", nil, CorrectedCurve{
		Stress:    []float64{300, 400},
		ShearRate: []float64{10, 110},
	})
	require.NoError(t, err)

	res, err := ProcessDataset(powerLawDataset(), ProcessOptions{Calibration: cal})
	require.NoError(t, err)

	assert.Nil(t, res.Rabinowitsch)
	assert.Positive(t, res.Dropped, "low stresses extrapolate below zero")
	assert.Equal(t, 8, len(res.Points)+res.Dropped)
	for _, p := range res.Points {
		want, err := cal.ShearRateAt(p.Stress)
		require.NoError(t, err)
		assert.InDelta(t, want, p.ShearRate, 1e-9)
		assert.GreaterOrEqual(t, p.ShearRate, 0.0)
	}
}

func TestProcessDataset_InvalidGeometry(t *testing.T) {
	ds := powerLawDataset()
	ds.Geometry.Diameter = 0
	_, err := ProcessDataset(ds, ProcessOptions{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestRenumber(t *testing.T) {
	in := []ProcessedPoint{{Sequence: 7}, {Sequence: 3}, {Sequence: 9}}
	out := Renumber(in)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Sequence, out[1].Sequence, out[2].Sequence})
	assert.Equal(t, 7, in[0].Sequence)
}
