package rheobench

import (
	"fmt"
	"log/slog"
	"math"
)

// DefaultTargets is the default number of points on a correction target grid.
const DefaultTargets = 15

// geometryTolerance is the relative tolerance for "same diameter" / "same length".
const geometryTolerance = 1e-6

// CorrectionOptions controls the Bagley and Mooney correctors.
type CorrectionOptions struct {
	Targets int          // Grid size (default: DefaultTargets)
	Logger  *slog.Logger // nil uses slog.Default()
}

func (o CorrectionOptions) targets() int {
	if o.Targets <= 0 {
		return DefaultTargets
	}
	return o.Targets
}

func (o CorrectionOptions) logger(stage Stage) *slog.Logger {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("stage", string(stage)))
}

// DroppedTarget records a grid value a correction stage rejected, and why.
type DroppedTarget struct {
	Target       float64
	Contributors int
	Reason       string
}

// BagleyTarget is the regression behind one retained Bagley point.
type BagleyTarget struct {
	ShearRate    float64 // γ̇aw*, 1/s
	Stress       float64 // τw corrected = slope/2, Pa
	Slope        float64 // dΔP/d(L/R), Pa
	EntranceLoss float64 // ΔP intercept at L/R = 0, Pa
	RSquared     float64
	Contributors int
}

// BagleyResult is the output of the Bagley entrance-loss correction.
type BagleyResult struct {
	Curve    CorrectedCurve // γ̇aw* vs corrected τw, one entry per retained target
	Targets  []BagleyTarget
	Dropped  []DroppedTarget
	Grid     []float64
	Diameter float64 // mm
}

// BagleyCorrect removes the capillary entrance pressure loss using two or more
// capillaries that share a diameter but differ in length.
//
// For every target apparent shear rate γ̇aw* on a geometric grid spanning the
// overlap of all observed ranges, the pressure of each capillary is linearly
// interpolated at γ̇aw* (never extrapolated) and regressed against L/R:
//
//	ΔP = 2·τw·(L/R) + ΔP_entrance
//
// The corrected stress is slope/2; the intercept is the entrance loss.
// A target is dropped when fewer than two capillaries cover it or the slope is
// negative. Returns ErrNoValidTargets when no target survives.
func BagleyCorrect(datasets []CapillaryDataset, opts CorrectionOptions) (*BagleyResult, error) {
	log := opts.logger(StageBagley)

	if len(datasets) < 2 {
		return nil, fmt.Errorf("%w: Bagley needs at least 2 capillaries, got %d", ErrInsufficientData, len(datasets))
	}
	diameter, err := commonDimension(datasets, func(g CapillaryGeometry) float64 { return g.Diameter }, "diameter")
	if err != nil {
		return nil, err
	}
	if distinct(datasets, func(g CapillaryGeometry) float64 { return g.Length }) < 2 {
		return nil, fmt.Errorf("%w: Bagley needs at least 2 distinct lengths", ErrInsufficientData)
	}

	curves := make([]series, len(datasets))
	aspect := make([]float64, len(datasets))
	for i, ds := range datasets {
		rates := make([]float64, 0, len(ds.Points))
		pressure := make([]float64, 0, len(ds.Points))
		for _, p := range ds.Points {
			fp, err := ComputeFlowPoint(p, ds.Geometry, ds.Density)
			if err != nil {
				return nil, fmt.Errorf("dataset %q point %d: %w", ds.ID, p.Sequence, err)
			}
			if fp.NoFlow {
				continue
			}
			rates = append(rates, fp.ShearRate)
			pressure = append(pressure, p.Pressure)
		}
		curves[i] = newSeries(rates, pressure)
		aspect[i] = ds.Geometry.AspectRatio()
	}

	lo, hi, ok := overlap(curves)
	if !ok {
		return nil, fmt.Errorf("%w: apparent shear-rate ranges of the %d capillaries do not overlap", ErrNoValidTargets, len(datasets))
	}
	grid, err := GeometricGrid(lo, hi, opts.targets())
	if err != nil {
		return nil, err
	}

	res := &BagleyResult{Grid: grid, Diameter: diameter}
	for _, target := range grid {
		xs := make([]float64, 0, len(curves))
		ys := make([]float64, 0, len(curves))
		for i, s := range curves {
			if dp, ok := s.interpolate(target); ok {
				xs = append(xs, aspect[i])
				ys = append(ys, dp)
			}
		}

		drop := func(reason string) {
			res.Dropped = append(res.Dropped, DroppedTarget{Target: target, Contributors: len(xs), Reason: reason})
			log.Debug("target dropped", "target", target, "contributors", len(xs), "reason", reason)
		}

		if len(xs) < 2 {
			drop("fewer than 2 capillaries cover the target")
			continue
		}
		fit, err := FitLine(xs, ys)
		if err != nil {
			drop(err.Error())
			continue
		}
		if fit.Slope < 0 {
			drop(fmt.Sprintf("negative slope %.4g", fit.Slope))
			continue
		}

		stress := fit.Slope / 2
		res.Targets = append(res.Targets, BagleyTarget{
			ShearRate:    target,
			Stress:       stress,
			Slope:        fit.Slope,
			EntranceLoss: fit.Intercept,
			RSquared:     fit.RSquared,
			Contributors: len(xs),
		})
		res.Curve.ShearRate = append(res.Curve.ShearRate, target)
		res.Curve.Stress = append(res.Curve.Stress, stress)
	}

	if len(res.Targets) == 0 {
		return res, fmt.Errorf("%w: Bagley rejected all %d targets", ErrNoValidTargets, len(grid))
	}

	log.Info("Bagley correction complete",
		"diameter_mm", diameter,
		"capillaries", len(datasets),
		"kept", len(res.Targets),
		"dropped", len(res.Dropped))

	return res, nil
}

// commonDimension checks every geometry and that dim agrees across the series.
func commonDimension(datasets []CapillaryDataset, dim func(CapillaryGeometry) float64, name string) (float64, error) {
	for _, ds := range datasets {
		if err := ds.Geometry.Validate(); err != nil {
			return 0, fmt.Errorf("dataset %q: %w", ds.ID, err)
		}
	}
	ref := dim(datasets[0].Geometry)
	for _, ds := range datasets[1:] {
		if v := dim(ds.Geometry); math.Abs(v-ref) > geometryTolerance*ref {
			return 0, fmt.Errorf("%w: %s %g mm (dataset %q) differs from %g mm", ErrGeometryMismatch, name, v, ds.ID, ref)
		}
	}
	return ref, nil
}

// distinct counts values of dim that differ by more than the geometry tolerance.
func distinct(datasets []CapillaryDataset, dim func(CapillaryGeometry) float64) int {
	var seen []float64
outer:
	for _, ds := range datasets {
		v := dim(ds.Geometry)
		for _, s := range seen {
			if math.Abs(v-s) <= geometryTolerance*s {
				continue outer
			}
		}
		seen = append(seen, v)
	}
	return len(seen)
}
