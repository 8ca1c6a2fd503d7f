package rheobench

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// DefaultOutlierMultiplier is the residual threshold, in population standard
// deviations, offered by the CLI when none is configured.
const DefaultOutlierMultiplier = 3.0

// ResidualReport lists the points whose measured stress deviates from a fitted
// model by more than Multiplier·Std. It is a candidate removal set: nothing is
// deleted until the caller applies it with Keep or KeepCurve.
type ResidualReport struct {
	Model      Model
	Multiplier float64
	Std        float64   // population standard deviation of Residuals
	Threshold  float64   // Multiplier·Std
	Residuals  []float64 // measured τw − model(γ̇w), aligned with the input
	Flagged    []int     // indices into the input, ascending
}

// FlagResidualOutliers computes residuals of fit against the source points and
// flags those with |residual| > multiplier·std. The multiplier must be positive
// and finite; anything else returns ErrInvalidMultiplier. It has no side
// effects, so an interactive caller can re-evaluate it with adjusted
// multipliers before committing.
func FlagResidualOutliers(fit *ModelFitResult, rate, stress []float64, multiplier float64) (*ResidualReport, error) {
	if fit == nil {
		return nil, fmt.Errorf("%w: no fitted model", ErrInsufficientData)
	}
	if len(rate) != len(stress) {
		return nil, fmt.Errorf("%w: %d shear rates vs %d stresses", ErrInsufficientData, len(rate), len(stress))
	}
	if !(multiplier > 0) || !isFinite(multiplier) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidMultiplier, multiplier)
	}

	report := &ResidualReport{
		Model:      fit.Model,
		Multiplier: multiplier,
		Residuals:  make([]float64, len(rate)),
	}
	for i := range rate {
		report.Residuals[i] = stress[i] - fit.Predict(rate[i])
	}
	if len(rate) == 0 {
		return report, nil
	}

	std, err := stats.StandardDeviationPopulation(report.Residuals)
	if err != nil {
		return nil, fmt.Errorf("residual spread: %w", err)
	}
	report.Std = std
	report.Threshold = multiplier * std
	if std == 0 || math.IsNaN(std) {
		return report, nil
	}

	for i, r := range report.Residuals {
		if math.Abs(r) > report.Threshold {
			report.Flagged = append(report.Flagged, i)
		}
	}
	return report, nil
}

// IsFlagged reports whether input index i is in the removal set.
func (r *ResidualReport) IsFlagged(i int) bool {
	for _, f := range r.Flagged {
		if f == i {
			return true
		}
	}
	return false
}

// Keep returns the unflagged points renumbered 1..n in their original order.
func (r *ResidualReport) Keep(points []ProcessedPoint) []ProcessedPoint {
	kept := make([]ProcessedPoint, 0, len(points))
	for i, p := range points {
		if !r.IsFlagged(i) {
			kept = append(kept, p)
		}
	}
	return Renumber(kept)
}

// KeepCurve returns the unflagged pairs of curve in their original order.
func (r *ResidualReport) KeepCurve(curve CorrectedCurve) CorrectedCurve {
	var out CorrectedCurve
	for i := range curve.ShearRate {
		if !r.IsFlagged(i) {
			out.ShearRate = append(out.ShearRate, curve.ShearRate[i])
			out.Stress = append(out.Stress, curve.Stress[i])
		}
	}
	return out
}
