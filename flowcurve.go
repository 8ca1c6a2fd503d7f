package rheobench

import (
	"fmt"
	"math"
)

// NoFlowMass is the extruded mass (kg) at or below which a trial is treated as
// "no flow recorded".
const NoFlowMass = 1e-9

// MeasurementPoint is one physical trial on the rheometer.
type MeasurementPoint struct {
	Pressure float64 // Pa, > 0
	Mass     float64 // kg, >= 0
	Duration float64 // s, > 0
	Sequence int     // 1-based trial index
}

// CapillaryGeometry describes one capillary die. Values are in millimetres.
type CapillaryGeometry struct {
	Diameter float64 // mm
	Length   float64 // mm
}

// Validate reports ErrInvalidGeometry unless both dimensions are positive.
func (g CapillaryGeometry) Validate() error {
	if !(g.Diameter > 0) || !(g.Length > 0) {
		return fmt.Errorf("%w: D=%g mm, L=%g mm", ErrInvalidGeometry, g.Diameter, g.Length)
	}
	return nil
}

// Radius returns R in metres.
func (g CapillaryGeometry) Radius() float64 {
	return g.Diameter / 2 / 1000
}

// LengthM returns L in metres.
func (g CapillaryGeometry) LengthM() float64 {
	return g.Length / 1000
}

// AspectRatio returns L/R (dimensionless), the Bagley abscissa.
func (g CapillaryGeometry) AspectRatio() float64 {
	return g.LengthM() / g.Radius()
}

// CapillaryDataset is every trial recorded on one capillary.
// It is treated as read-only once built.
type CapillaryDataset struct {
	ID       string
	Geometry CapillaryGeometry
	Density  float64 // kg/m³
	Points   []MeasurementPoint
}

// FlowCurvePoint is the apparent flow-curve value of one trial.
//
// When NoFlow is set the trial recorded no extrudate: ShearRate and Viscosity
// are NaN, never zero, so that "no flow" cannot be mistaken for a real
// zero-shear reading.
type FlowCurvePoint struct {
	ShearRate float64 // γ̇aw, 1/s
	Stress    float64 // τw, Pa
	Viscosity float64 // ηa, Pa·s
	NoFlow    bool
}

// WallStress returns the apparent wall shear stress τw = P·R/(2L).
func WallStress(pressure float64, g CapillaryGeometry) float64 {
	return pressure * g.Radius() / (2 * g.LengthM())
}

// ApparentShearRate returns γ̇aw = 4Q/(πR³) for a volumetric flow Q in m³/s.
func ApparentShearRate(flow float64, g CapillaryGeometry) float64 {
	r := g.Radius()
	return 4 * flow / (math.Pi * r * r * r)
}

// ComputeFlowPoint converts one trial into apparent wall shear stress and rate.
//
//	R   = D/2
//	Q   = (m/ρ)/t
//	τw  = P·R/(2L)
//	γ̇aw = 4Q/(πR³)
//
// Trials with mass at or below NoFlowMass are marked NoFlow. Returns
// ErrInvalidGeometry if R or L is not positive, and ErrInvalidMeasurement for
// a trial that collected mass over a non-positive duration.
func ComputeFlowPoint(p MeasurementPoint, g CapillaryGeometry, density float64) (FlowCurvePoint, error) {
	if err := g.Validate(); err != nil {
		return FlowCurvePoint{}, err
	}
	if !(density > 0) {
		return FlowCurvePoint{}, fmt.Errorf("%w: %g kg/m³", ErrInvalidDensity, density)
	}

	stress := WallStress(p.Pressure, g)
	if p.Mass <= NoFlowMass {
		return FlowCurvePoint{
			ShearRate: math.NaN(),
			Stress:    stress,
			Viscosity: math.NaN(),
			NoFlow:    true,
		}, nil
	}

	if !(p.Duration > 0) || math.IsInf(p.Duration, 0) {
		return FlowCurvePoint{}, fmt.Errorf("%w: mass %g kg over duration %g s", ErrInvalidMeasurement, p.Mass, p.Duration)
	}

	flow := (p.Mass / density) / p.Duration
	rate := ApparentShearRate(flow, g)

	return FlowCurvePoint{
		ShearRate: rate,
		Stress:    stress,
		Viscosity: stress / rate,
	}, nil
}

// FlowCurve computes the apparent flow curve of a dataset, skipping no-flow trials.
// The returned curve preserves the order of the dataset's points.
func FlowCurve(ds CapillaryDataset) (CorrectedCurve, error) {
	if err := ds.Geometry.Validate(); err != nil {
		return CorrectedCurve{}, fmt.Errorf("dataset %q: %w", ds.ID, err)
	}

	curve := CorrectedCurve{
		ShearRate: make([]float64, 0, len(ds.Points)),
		Stress:    make([]float64, 0, len(ds.Points)),
	}
	for _, p := range ds.Points {
		fp, err := ComputeFlowPoint(p, ds.Geometry, ds.Density)
		if err != nil {
			return CorrectedCurve{}, fmt.Errorf("dataset %q point %d: %w", ds.ID, p.Sequence, err)
		}
		if fp.NoFlow {
			continue
		}
		curve.ShearRate = append(curve.ShearRate, fp.ShearRate)
		curve.Stress = append(curve.Stress, fp.Stress)
	}

	return curve, nil
}
