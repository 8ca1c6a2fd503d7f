package rheobench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMooneyCorrect_RecoversSlip builds γ̇aw = γ̇(τ) + k/R and checks that the
// intercept recovers γ̇(τ) and slope/4 the slip velocity.
func TestMooneyCorrect_RecoversSlip(t *testing.T) {
	trueRate := func(stress float64) float64 { return stress / 2 }
	stresses := linspace(100, 1000, 10)

	for _, k := range []float64{0, 0.5} {
		res, err := MooneyCorrect(mooneySeries(trueRate, k, stresses), MooneyOptions{})
		require.NoError(t, err)

		require.Len(t, res.Targets, DefaultTargets)
		assert.Equal(t, 20.0, res.Length)
		for _, tg := range res.Targets {
			assert.InEpsilon(t, trueRate(tg.Stress), tg.ShearRate, 1e-6)
			assert.InDelta(t, k, tg.Slope, 1e-6)
			assert.InDelta(t, k/4, tg.SlipVelocity, 1e-6)
			assert.Equal(t, 3, tg.Contributors)
		}
		t.Logf("k=%g: γ̇(τ=%.1f) = %.4f 1/s, vs = %.4g m/s",
			k, res.Targets[0].Stress, res.Targets[0].ShearRate, res.Targets[0].SlipVelocity)
	}
}

func TestMooneyCorrect_ExternalTargets(t *testing.T) {
	trueRate := func(stress float64) float64 { return stress / 4 }
	ds := mooneySeries(trueRate, 0.2, linspace(100, 1000, 10))

	res, err := MooneyCorrect(ds, MooneyOptions{StressTargets: []float64{200, 500, 5000}})
	require.NoError(t, err)

	assert.Equal(t, []float64{200, 500}, res.Curve.Stress)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 5000.0, res.Dropped[0].Target)
	assert.Equal(t, 0, res.Dropped[0].Contributors)
	assert.InEpsilon(t, 50, res.Curve.ShearRate[0], 1e-6)
	assert.InEpsilon(t, 125, res.Curve.ShearRate[1], 1e-6)
}

func TestMooneyCorrect_NegativeInterceptDropsTargets(t *testing.T) {
	trueRate := func(stress float64) float64 { return stress/2 - 1000 }
	res, err := MooneyCorrect(mooneySeries(trueRate, 1, linspace(100, 1000, 10)), MooneyOptions{CorrectionOptions: CorrectionOptions{Targets: 4}})

	require.ErrorIs(t, err, ErrNoValidTargets)
	require.NotNil(t, res)
	assert.Empty(t, res.Targets)
	assert.Len(t, res.Dropped, 4)
}

// TestMooneyCorrect_EmptyOverlap checks that disjoint stress ranges are
// reported as an error, never as an empty curve.
func TestMooneyCorrect_EmptyOverlap(t *testing.T) {
	trueRate := func(stress float64) float64 { return stress }
	ds := mooneySeries(trueRate, 0, linspace(100, 200, 5))
	ds[1] = datasetFromStresses("far", ds[1].Geometry, linspace(300, 400, 5), func(stress float64, g CapillaryGeometry) float64 {
		return stress
	})

	res, err := MooneyCorrect(ds, MooneyOptions{})
	assert.ErrorIs(t, err, ErrNoValidTargets)
	assert.Nil(t, res)
}

func TestMooneyCorrect_InvalidSeries(t *testing.T) {
	trueRate := func(stress float64) float64 { return stress }
	ds := mooneySeries(trueRate, 0, linspace(100, 200, 5))

	_, err := MooneyCorrect(ds[:1], MooneyOptions{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	mismatch := append([]CapillaryDataset(nil), ds...)
	mismatch[2].Geometry.Length = 30
	_, err = MooneyCorrect(mismatch, MooneyOptions{})
	assert.ErrorIs(t, err, ErrGeometryMismatch)

	_, err = MooneyCorrect([]CapillaryDataset{ds[0], ds[0]}, MooneyOptions{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}
