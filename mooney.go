package rheobench

import (
	"fmt"
)

// MooneyOptions controls the Mooney wall-slip correction.
type MooneyOptions struct {
	CorrectionOptions

	// StressTargets, when set, is used as the τw target grid (typically the
	// stresses of a Bagley-corrected curve). Otherwise a geometric grid is
	// generated over the overlap of the capillaries' observed stress ranges.
	StressTargets []float64
}

// MooneyTarget is the regression behind one retained Mooney point.
type MooneyTarget struct {
	Stress       float64 // τw*, Pa
	ShearRate    float64 // slip-corrected γ̇ = intercept, 1/s
	Slope        float64 // dγ̇aw/d(1/R), m/s
	SlipVelocity float64 // slope/4, m/s
	RSquared     float64
	Contributors int
}

// MooneyResult is the output of the Mooney wall-slip correction.
type MooneyResult struct {
	Curve   CorrectedCurve // slip-corrected γ̇ vs τw*, one entry per retained target
	Targets []MooneyTarget
	Dropped []DroppedTarget
	Grid    []float64
	Length  float64 // mm
}

// MooneyCorrect removes wall slip using two or more capillaries that share a
// length but differ in diameter.
//
// For every target stress τw*, each capillary's apparent shear rate is
// interpolated at τw* (never extrapolated) and regressed against 1/R:
//
//	γ̇aw = γ̇s + 4·vs/R
//
// The intercept is the slip-free shear rate; slope/4 is the slip velocity.
// A target is dropped when fewer than two capillaries cover it or the
// intercept is negative. Returns ErrNoValidTargets when the stress ranges do
// not overlap or when no target survives.
func MooneyCorrect(datasets []CapillaryDataset, opts MooneyOptions) (*MooneyResult, error) {
	log := opts.logger(StageMooney)

	if len(datasets) < 2 {
		return nil, fmt.Errorf("%w: Mooney needs at least 2 capillaries, got %d", ErrInsufficientData, len(datasets))
	}
	length, err := commonDimension(datasets, func(g CapillaryGeometry) float64 { return g.Length }, "length")
	if err != nil {
		return nil, err
	}
	if distinct(datasets, func(g CapillaryGeometry) float64 { return g.Diameter }) < 2 {
		return nil, fmt.Errorf("%w: Mooney needs at least 2 distinct diameters", ErrInsufficientData)
	}

	curves := make([]series, len(datasets))
	inverseRadius := make([]float64, len(datasets))
	for i, ds := range datasets {
		fc, err := FlowCurve(ds)
		if err != nil {
			return nil, err
		}
		curves[i] = newSeries(fc.Stress, fc.ShearRate)
		inverseRadius[i] = 1 / ds.Geometry.Radius()
	}

	grid := opts.StressTargets
	if len(grid) == 0 {
		lo, hi, ok := overlap(curves)
		if !ok {
			return nil, fmt.Errorf("%w: wall shear stress ranges of the %d capillaries do not overlap", ErrNoValidTargets, len(datasets))
		}
		if grid, err = GeometricGrid(lo, hi, opts.targets()); err != nil {
			return nil, err
		}
	}

	res := &MooneyResult{Grid: grid, Length: length}
	for _, target := range grid {
		xs := make([]float64, 0, len(curves))
		ys := make([]float64, 0, len(curves))
		for i, s := range curves {
			if rate, ok := s.interpolate(target); ok {
				xs = append(xs, inverseRadius[i])
				ys = append(ys, rate)
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
		if fit.Intercept < 0 {
			drop(fmt.Sprintf("negative intercept %.4g", fit.Intercept))
			continue
		}

		res.Targets = append(res.Targets, MooneyTarget{
			Stress:       target,
			ShearRate:    fit.Intercept,
			Slope:        fit.Slope,
			SlipVelocity: fit.Slope / 4,
			RSquared:     fit.RSquared,
			Contributors: len(xs),
		})
		res.Curve.ShearRate = append(res.Curve.ShearRate, fit.Intercept)
		res.Curve.Stress = append(res.Curve.Stress, target)
	}

	if len(res.Targets) == 0 {
		return res, fmt.Errorf("%w: Mooney rejected all %d targets", ErrNoValidTargets, len(grid))
	}

	log.Info("Mooney correction complete",
		"length_mm", length,
		"capillaries", len(datasets),
		"kept", len(res.Targets),
		"dropped", len(res.Dropped))

	return res, nil
}
