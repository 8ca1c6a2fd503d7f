package rheobench

import (
	"fmt"
	"math"
)

// Helpers that build instrument readings from a known flow law.

const testDensity = 1200.0 // kg/m³
const testDuration = 10.0  // s

// massForRate returns the extruded mass giving apparent shear rate γ̇aw.
func massForRate(rate float64, g CapillaryGeometry) float64 {
	r := g.Radius()
	flow := rate * math.Pi * r * r * r / 4
	return flow * testDensity * testDuration
}

// datasetFromRates builds a dataset whose i-th trial has apparent shear rate
// rates[i] and pressure pressure(rate, g).
func datasetFromRates(id string, g CapillaryGeometry, rates []float64, pressure func(rate float64, g CapillaryGeometry) float64) CapillaryDataset {
	ds := CapillaryDataset{ID: id, Geometry: g, Density: testDensity}
	for i, rate := range rates {
		ds.Points = append(ds.Points, MeasurementPoint{
			Pressure: pressure(rate, g),
			Mass:     massForRate(rate, g),
			Duration: testDuration,
			Sequence: i + 1,
		})
	}
	return ds
}

// datasetFromStresses builds a dataset whose i-th trial has wall stress
// stresses[i] and apparent shear rate rate(stress, g).
func datasetFromStresses(id string, g CapillaryGeometry, stresses []float64, rate func(stress float64, g CapillaryGeometry) float64) CapillaryDataset {
	ds := CapillaryDataset{ID: id, Geometry: g, Density: testDensity}
	for i, tau := range stresses {
		ds.Points = append(ds.Points, MeasurementPoint{
			Pressure: tau * 2 * g.LengthM() / g.Radius(),
			Mass:     massForRate(rate(tau, g), g),
			Duration: testDuration,
			Sequence: i + 1,
		})
	}
	return ds
}

func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo * math.Pow(hi/lo, float64(i)/float64(n-1))
	}
	return out
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

// jitter is a deterministic relative perturbation in [-amp, amp].
func jitter(i int, amp float64) float64 {
	return 1 + amp*math.Sin(2.3*float64(i)+0.7)
}

// bagleySeries returns three capillaries of one diameter whose pressures follow
// ΔP = 2·τ(γ̇)·(L/R) + entrance.
func bagleySeries(tau func(rate float64) float64, entrance float64, rates []float64) []CapillaryDataset {
	var out []CapillaryDataset
	for _, l := range []float64{10, 20, 40} {
		g := CapillaryGeometry{Diameter: 1, Length: l}
		out = append(out, datasetFromRates(fmt.Sprintf("D1-L%.0f", l), g, rates, func(rate float64, g CapillaryGeometry) float64 {
			return 2*tau(rate)*g.AspectRatio() + entrance
		}))
	}
	return out
}

// mooneySeries returns three capillaries of one length whose apparent shear
// rates follow γ̇aw = γ̇(τ) + k/R.
func mooneySeries(trueRate func(stress float64) float64, k float64, stresses []float64) []CapillaryDataset {
	var out []CapillaryDataset
	for _, d := range []float64{1, 1.5, 2} {
		g := CapillaryGeometry{Diameter: d, Length: 20}
		out = append(out, datasetFromStresses(fmt.Sprintf("D%.1f-L20", d), g, stresses, func(stress float64, g CapillaryGeometry) float64 {
			return trueRate(stress) + k/g.Radius()
		}))
	}
	return out
}
