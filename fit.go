package rheobench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// FitOptions controls the multi-model fitter.
type FitOptions struct {
	MaxIterations int     // Levenberg-Marquardt iterations per model
	Tolerance     float64 // Relative SSR / step convergence tolerance
	ParamFloor    float64 // Lower bound of every parameter
	MaxIndex      float64 // Upper bound of a power-law index

	// ImprovementRatio, in (0, 1], is how much of the current best model's
	// unexplained variance 1−R² a later model must at most leave to replace
	// it. 1 selects the strict maximum R².
	ImprovementRatio float64

	Logger *slog.Logger
}

// DefaultFitOptions returns the bounds and tolerances used by the pipeline.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxIterations:    500,
		Tolerance:        1e-10,
		ParamFloor:       1e-9,
		MaxIndex:         5,
		ImprovementRatio: 0.5,
	}
}

func (o FitOptions) withDefaults() FitOptions {
	d := DefaultFitOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if !(o.ImprovementRatio > 0) || o.ImprovementRatio > 1 {
		o.ImprovementRatio = d.ImprovementRatio
	}
	if o.ParamFloor <= 0 {
		o.ParamFloor = d.ParamFloor
	}
	if o.MaxIndex <= 0 {
		o.MaxIndex = d.MaxIndex
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ModelFitResult is one converged model fit. It is never mutated after fitting.
type ModelFitResult struct {
	Model      Model
	Params     []float64
	RSquared   float64
	SSR        float64
	Points     int
	Iterations int
	Covariance [][]float64 // nil when the fit has no residual degrees of freedom
}

// Param returns the named parameter and whether the model has it.
func (r *ModelFitResult) Param(name string) (float64, bool) {
	for i, n := range r.Model.ParamNames() {
		if n == name {
			return r.Params[i], true
		}
	}
	return 0, false
}

// Predict returns the fitted stress at rate.
func (r *ModelFitResult) Predict(rate float64) float64 {
	return r.Model.Eval(r.Params, rate)
}

// Viscosity returns the fitted apparent viscosity τ/γ̇ at rate.
func (r *ModelFitResult) Viscosity(rate float64) float64 {
	if rate == 0 {
		return math.NaN()
	}
	return r.Predict(rate) / rate
}

// StdErrors returns the square roots of the covariance diagonal, or nil.
func (r *ModelFitResult) StdErrors() []float64 {
	if r.Covariance == nil {
		return nil
	}
	out := make([]float64, len(r.Covariance))
	for i := range r.Covariance {
		out[i] = math.Sqrt(math.Max(r.Covariance[i][i], 0))
	}
	return out
}

// FitAttempt is the outcome of fitting one candidate model.
type FitAttempt struct {
	Model  Model
	Result *ModelFitResult // nil when skipped or not converged
	Err    error
}

// FitReport collects every attempt and the selected best model.
type FitReport struct {
	Attempts []FitAttempt
	Best     *ModelFitResult
}

// Converged returns the results of every converged model in table order.
func (r *FitReport) Converged() []*ModelFitResult {
	var out []*ModelFitResult
	for _, a := range r.Attempts {
		if a.Result != nil {
			out = append(out, a.Result)
		}
	}
	return out
}

// RSquared returns the coefficient of determination 1 - SSres/SStot.
//
// When SStot is (numerically) zero the data carry no variance: R² is 1 if the
// residuals vanish too, 0 otherwise.
func RSquared(observed, predicted []float64) float64 {
	mean := 0.0
	for _, v := range observed {
		mean += v
	}
	mean /= float64(len(observed))

	var ssRes, ssTot float64
	for i, v := range observed {
		ssRes += (v - predicted[i]) * (v - predicted[i])
		ssTot += (v - mean) * (v - mean)
	}

	const eps = 1e-12
	if ssTot <= eps*math.Max(mean*mean, 1) {
		if ssRes <= eps*math.Max(mean*mean, 1) {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// FitModel fits one model to the (γ̇w, τw) pairs with both values positive.
// Returns ErrInsufficientData when there are fewer valid points than
// parameters, ErrNoConvergence when the solver fails.
func FitModel(m Model, rate, stress []float64, opts FitOptions) (*ModelFitResult, error) {
	opts = opts.withDefaults()
	if m < 0 || m >= modelCount {
		return nil, fmt.Errorf("unknown model %d", int(m))
	}

	x, y := positivePairs(rate, stress)
	if len(x) < m.NumParams() {
		return nil, fmt.Errorf("%w: %s needs %d points, got %d", ErrInsufficientData, m, m.NumParams(), len(x))
	}

	lower, upper := m.Bounds(opts.ParamFloor, opts.MaxIndex)
	guess := modelSpecs[m].guess(x, y)
	for i := range guess {
		if !isFinite(guess[i]) {
			guess[i] = lower[i]
		}
	}

	sol, err := levenbergMarquardt(curveFunc(modelSpecs[m].eval), x, y, guess, lower, upper, opts.MaxIterations, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}

	predicted := make([]float64, len(x))
	for i := range x {
		predicted[i] = m.Eval(sol.params, x[i])
	}

	return &ModelFitResult{
		Model:      m,
		Params:     sol.params,
		RSquared:   RSquared(y, predicted),
		SSR:        sol.ssr,
		Points:     len(x),
		Iterations: sol.iterations,
		Covariance: sol.covariance,
	}, nil
}

// unexplainedFloor is the 1−R² below which a fit is exact to rounding.
const unexplainedFloor = 1e-12

func unexplained(res *ModelFitResult) float64 {
	return math.Max(1-res.RSquared, unexplainedFloor)
}

// improves reports whether candidate should replace best.
func improves(candidate, best *ModelFitResult, ratio float64) bool {
	return unexplained(candidate) < ratio*unexplained(best)
}

// FitModels fits every candidate model and selects the best by R².
//
// Models that are skipped (too few points) or do not converge are recorded in
// the report but never selected. A later model replaces the current best only
// if it leaves less than ImprovementRatio of the best's unexplained variance:
//
//	1−R²_new < ImprovementRatio·(1−R²_best)
//
// Nested models absorbing the same noise are therefore ties and go to the
// simpler, earlier model, while a genuinely better law wins however close both
// R² are to 1. Unexplained variance below unexplainedFloor counts as an exact
// fit. Returns ErrNoModelConverged when nothing converged.
func FitModels(rate, stress []float64, opts FitOptions) (*FitReport, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With(slog.String("stage", string(StageFit)))

	if len(rate) != len(stress) {
		return nil, fmt.Errorf("%w: %d shear rates vs %d stresses", ErrInsufficientData, len(rate), len(stress))
	}

	report := &FitReport{Attempts: make([]FitAttempt, 0, len(Models))}
	for _, m := range Models {
		res, err := FitModel(m, rate, stress, opts)
		report.Attempts = append(report.Attempts, FitAttempt{Model: m, Result: res, Err: err})

		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrInsufficientData) {
				level = slog.LevelDebug
			}
			log.Log(context.Background(), level, "model excluded", "model", m.String(), "error", err)
			continue
		}

		log.Debug("model fitted",
			"model", m.String(),
			"params", res.Params,
			"r_squared", res.RSquared,
			"iterations", res.Iterations)

		if report.Best == nil || improves(res, report.Best, opts.ImprovementRatio) {
			report.Best = res
		}
	}

	if report.Best == nil {
		return report, fmt.Errorf("%w: all %d candidate models failed or were skipped", ErrNoModelConverged, len(Models))
	}

	log.Info("best model selected", "model", report.Best.Model.String(), "r_squared", report.Best.RSquared)
	return report, nil
}

func positivePairs(rate, stress []float64) (x, y []float64) {
	for i := range rate {
		if i < len(stress) && rate[i] > 0 && stress[i] > 0 && isFinite(rate[i]) && isFinite(stress[i]) {
			x = append(x, rate[i])
			y = append(y, stress[i])
		}
	}
	return x, y
}
