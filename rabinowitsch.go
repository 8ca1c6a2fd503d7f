package rheobench

import (
	"fmt"
	"log/slog"
	"math"
)

// RabinowitschResult is the output of the Weissenberg-Rabinowitsch correction.
type RabinowitschResult struct {
	Curve             CorrectedCurve // γ̇w vs τw
	ApparentShearRate []float64      // γ̇aw, aligned with Curve
	NPrime            float64        // n', apparent power-law index
	LnK               float64        // ln K' (NaN on fallback)
	Factor            float64        // (3n'+1)/(4n')
	RegressionPoints  int            // pairs with τw > 0 and γ̇aw > 0

	// Fallback is set when n' could not be estimated and the Newtonian value
	// n' = 1 was used instead; FallbackReason says why.
	Fallback       bool
	FallbackReason string
}

// RabinowitschFactor returns (3n'+1)/(4n').
func RabinowitschFactor(nPrime float64) float64 {
	return (3*nPrime + 1) / (4 * nPrime)
}

// RabinowitschCorrect converts apparent wall shear rates to true wall shear
// rates for a non-Newtonian wall velocity profile.
//
// n' and ln K' come from ordinary least squares on (ln γ̇aw, ln τw):
//
//	ln τw = ln K' + n'·ln γ̇aw
//	γ̇w    = (3n'+1)/(4n') · γ̇aw
//
// With fewer than 2 usable points, or a non-positive n', the correction falls
// back to n' = 1 (factor 1) and reports it through Fallback.
func RabinowitschCorrect(curve CorrectedCurve, logger *slog.Logger) (*RabinowitschResult, error) {
	if err := curve.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("stage", string(StageRabinowitsch)))

	var lx, ly []float64
	for i := range curve.ShearRate {
		if curve.ShearRate[i] > 0 && curve.Stress[i] > 0 {
			lx = append(lx, math.Log(curve.ShearRate[i]))
			ly = append(ly, math.Log(curve.Stress[i]))
		}
	}

	res := &RabinowitschResult{
		NPrime:           1,
		LnK:              math.NaN(),
		RegressionPoints: len(lx),
	}

	fit, err := FitLine(lx, ly)
	switch {
	case err != nil:
		res.Fallback = true
		res.FallbackReason = fmt.Sprintf("n' not estimable (%v); assuming Newtonian n'=1", err)
	case !(fit.Slope > 0):
		res.Fallback = true
		res.FallbackReason = fmt.Sprintf("non-positive n'=%.4g; assuming Newtonian n'=1", fit.Slope)
	default:
		res.NPrime = fit.Slope
		res.LnK = fit.Intercept
	}
	if res.Fallback {
		log.Warn("Rabinowitsch fallback", "reason", res.FallbackReason, "points", len(lx))
	}

	res.Factor = RabinowitschFactor(res.NPrime)
	res.ApparentShearRate = append([]float64(nil), curve.ShearRate...)
	res.Curve = CorrectedCurve{
		ShearRate: make([]float64, len(curve.ShearRate)),
		Stress:    append([]float64(nil), curve.Stress...),
	}
	for i, rate := range curve.ShearRate {
		res.Curve.ShearRate[i] = res.Factor * rate
	}

	log.Debug("Rabinowitsch correction applied", "n_prime", res.NPrime, "factor", res.Factor)
	return res, nil
}
