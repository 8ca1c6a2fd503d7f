package rheobench

import (
	"fmt"
	"log/slog"
)

// ProcessedPoint is one retained trial with every derived quantity: the row of
// the tabular results export and the unit of replicate aggregation.
type ProcessedPoint struct {
	Source   string // dataset ID
	Sequence int
	Geometry CapillaryGeometry
	Pressure float64 // Pa
	Mass     float64 // kg
	Duration float64 // s

	Stress            float64 // τw, Pa
	ApparentShearRate float64 // γ̇aw, 1/s
	ApparentViscosity float64 // ηa, Pa·s
	ShearRate         float64 // γ̇w, 1/s
	Viscosity         float64 // η, Pa·s
}

// ProcessOptions controls single-dataset processing.
type ProcessOptions struct {
	// Calibration, when set, supplies γ̇w from a master curve instead of the
	// Rabinowitsch correction.
	Calibration *Calibration
	Logger      *slog.Logger
}

// ProcessResult is the outcome of ProcessDataset.
type ProcessResult struct {
	Points       []ProcessedPoint
	Rabinowitsch *RabinowitschResult // nil when a calibration was applied
	NoFlow       int                 // trials skipped for lack of extrudate
	Dropped      int                 // trials the calibration mapped to a negative rate
}

// Curve returns the (γ̇w, τw) pairs of the processed points.
func (r *ProcessResult) Curve() CorrectedCurve {
	return PointsCurve(r.Points)
}

// PointsCurve extracts the (γ̇w, τw) pairs of points.
func PointsCurve(points []ProcessedPoint) CorrectedCurve {
	c := CorrectedCurve{
		ShearRate: make([]float64, len(points)),
		Stress:    make([]float64, len(points)),
	}
	for i, p := range points {
		c.ShearRate[i] = p.ShearRate
		c.Stress[i] = p.Stress
	}
	return c
}

// ProcessDataset runs the Flow-Curve Calculator over every trial of one
// capillary and converts apparent shear rates to true wall shear rates, either
// by the Rabinowitsch correction or by an external calibration.
func ProcessDataset(ds CapillaryDataset, opts ProcessOptions) (*ProcessResult, error) {
	if err := ds.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", ds.ID, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &ProcessResult{}
	var apparent CorrectedCurve
	for _, p := range ds.Points {
		fp, err := ComputeFlowPoint(p, ds.Geometry, ds.Density)
		if err != nil {
			return nil, fmt.Errorf("dataset %q point %d: %w", ds.ID, p.Sequence, err)
		}
		if fp.NoFlow {
			res.NoFlow++
			continue
		}
		res.Points = append(res.Points, ProcessedPoint{
			Source:            ds.ID,
			Sequence:          p.Sequence,
			Geometry:          ds.Geometry,
			Pressure:          p.Pressure,
			Mass:              p.Mass,
			Duration:          p.Duration,
			Stress:            fp.Stress,
			ApparentShearRate: fp.ShearRate,
			ApparentViscosity: fp.Viscosity,
		})
		apparent.ShearRate = append(apparent.ShearRate, fp.ShearRate)
		apparent.Stress = append(apparent.Stress, fp.Stress)
	}
	if res.NoFlow > 0 {
		logger.Debug("no-flow trials skipped", "dataset", ds.ID, "count", res.NoFlow)
	}

	if opts.Calibration != nil {
		kept := res.Points[:0]
		for _, p := range res.Points {
			rate, err := opts.Calibration.ShearRateAt(p.Stress)
			if err != nil {
				return nil, err
			}
			if rate < 0 {
				res.Dropped++
				continue
			}
			p.ShearRate = rate
			p.Viscosity = p.Stress / rate
			kept = append(kept, p)
		}
		res.Points = kept
		return res, nil
	}

	wr, err := RabinowitschCorrect(apparent, logger)
	if err != nil {
		return nil, err
	}
	res.Rabinowitsch = wr
	for i := range res.Points {
		res.Points[i].ShearRate = wr.Curve.ShearRate[i]
		res.Points[i].Viscosity = res.Points[i].Stress / wr.Curve.ShearRate[i]
	}
	return res, nil
}

// Renumber returns a copy of points with Sequence reassigned 1..n in the
// existing order.
func Renumber(points []ProcessedPoint) []ProcessedPoint {
	out := make([]ProcessedPoint, len(points))
	for i, p := range points {
		p.Sequence = i + 1
		out[i] = p
	}
	return out
}
