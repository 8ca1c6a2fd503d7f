package rheobench

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Stage names a step of the correction pipeline.
type Stage string

const (
	StageRaw          Stage = "raw"
	StageBagley       Stage = "bagley"
	StageMooney       Stage = "mooney"
	StageRabinowitsch Stage = "rabinowitsch"
	StageCalibration  Stage = "calibration"
	StageFit          Stage = "fit"
)

// PipelineInput is one analysis session's data.
type PipelineInput struct {
	// Bagley is a series sharing one diameter with different lengths.
	Bagley []CapillaryDataset
	// Mooney is a series sharing one length with different diameters.
	Mooney []CapillaryDataset
	// Reference is the capillary whose raw flow curve is the last-resort
	// fallback. Defaults to the first Bagley, then the first Mooney dataset.
	Reference *CapillaryDataset
	// Calibration, when set, replaces the Rabinowitsch correction.
	Calibration *Calibration
}

// PipelineOptions carries every tunable of a pipeline run.
type PipelineOptions struct {
	Targets int
	Fit     FitOptions
	Logger  *slog.Logger
}

// DefaultPipelineOptions returns the grid size and fit settings used by the CLI.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Targets: DefaultTargets,
		Fit:     DefaultFitOptions(),
	}
}

// PipelineResult holds every intermediate curve of a run.
type PipelineResult struct {
	Stages   []Stage       // stages that produced the final curve, in order
	Failures []*StageError // stages that failed and were skipped

	Raw                CorrectedCurve
	Bagley             *BagleyResult
	Mooney             *MooneyResult
	Rabinowitsch       *RabinowitschResult
	CalibrationDropped int

	Curve CorrectedCurve // final (γ̇w, τw)
	Fit   *FitReport
}

// Best returns the selected model, or nil.
func (r *PipelineResult) Best() *ModelFitResult {
	if r.Fit == nil {
		return nil
	}
	return r.Fit.Best
}

// CorrectionType joins the applied stages, e.g. "bagley+mooney+rabinowitsch".
func (r *PipelineResult) CorrectionType() string {
	names := make([]string, 0, len(r.Stages))
	for _, s := range r.Stages {
		if s == StageRaw && len(r.Stages) > 1 {
			continue
		}
		names = append(names, string(s))
	}
	return strings.Join(names, "+")
}

// Applied reports whether stage contributed to the final curve.
func (r *PipelineResult) Applied(stage Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// RunPipeline runs raw → Bagley → Mooney → Rabinowitsch (or calibration) → fit.
//
// A failing correction stage is recorded in Failures and the pipeline keeps the
// best curve it has (raw → Bagley-only → Bagley+Mooney). Errors are returned
// only when no curve can be produced at all or when no model converged; in the
// latter case the partial result is returned alongside the error.
func RunPipeline(in PipelineInput, opts PipelineOptions) (*PipelineResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Fit.Logger == nil {
		opts.Fit.Logger = logger
	}
	corr := CorrectionOptions{Targets: opts.Targets, Logger: logger}

	ref := in.Reference
	switch {
	case ref != nil:
	case len(in.Bagley) > 0:
		ref = &in.Bagley[0]
	case len(in.Mooney) > 0:
		ref = &in.Mooney[0]
	default:
		return nil, fmt.Errorf("%w: no capillary datasets", ErrInsufficientData)
	}

	res := &PipelineResult{}
	raw, err := FlowCurve(*ref)
	if err != nil {
		return nil, &StageError{Stage: StageRaw, Err: err}
	}
	res.Raw = raw
	res.Curve = raw
	res.Stages = []Stage{StageRaw}

	fail := func(stage Stage, err error) {
		res.Failures = append(res.Failures, &StageError{Stage: stage, Err: err})
		logger.Warn("stage skipped", "stage", string(stage), "error", err)
	}

	if len(in.Bagley) > 0 {
		b, err := BagleyCorrect(in.Bagley, corr)
		if err != nil {
			fail(StageBagley, err)
		} else {
			res.Bagley = b
			res.Curve = b.Curve
			res.Stages = append(res.Stages, StageBagley)
		}
	}

	if len(in.Mooney) > 0 {
		mopts := MooneyOptions{CorrectionOptions: corr}
		if res.Bagley != nil {
			mopts.StressTargets = res.Bagley.Curve.Stress
		}
		m, err := MooneyCorrect(in.Mooney, mopts)
		if err != nil {
			fail(StageMooney, err)
		} else {
			res.Mooney = m
			res.Curve = m.Curve
			res.Stages = append(res.Stages, StageMooney)
		}
	}

	applied := false
	if in.Calibration != nil {
		curve, dropped, err := in.Calibration.Apply(res.Curve)
		if err != nil {
			fail(StageCalibration, err)
		} else {
			res.Curve = curve
			res.CalibrationDropped = dropped
			res.Stages = append(res.Stages, StageCalibration)
			applied = true
		}
	}
	if !applied {
		wr, err := RabinowitschCorrect(res.Curve, logger)
		if err != nil {
			fail(StageRabinowitsch, err)
		} else {
			res.Rabinowitsch = wr
			res.Curve = wr.Curve
			res.Stages = append(res.Stages, StageRabinowitsch)
		}
	}

	report, err := FitModels(res.Curve.ShearRate, res.Curve.Stress, opts.Fit)
	res.Fit = report
	if err != nil {
		if errors.Is(err, ErrNoModelConverged) {
			return res, &StageError{Stage: StageFit, Err: err}
		}
		return res, err
	}

	logger.Info("pipeline complete",
		"correction", res.CorrectionType(),
		"points", res.Curve.Len(),
		"model", report.Best.Model.String(),
		"r_squared", report.Best.RSquared)
	return res, nil
}
