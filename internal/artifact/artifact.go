// Package artifact encodes the records an analysis leaves behind: the
// calibration master curve, the selected model parameters and the tabular
// per-point results.
package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alexshd/rheobench"
)

// CalibrationPoints holds the master curve as two aligned columns.
type CalibrationPoints struct {
	Stress    []float64 `json:"tau_wall_pa"`
	ShearRate []float64 `json:"shear_rate_corrected"`
}

// CalibrationRecord is the persisted form of a rheobench.Calibration.
type CalibrationRecord struct {
	CorrectionType string            `json:"correction_type"`
	SourceIDs      []string          `json:"source_identifiers"`
	Points         CalibrationPoints `json:"points"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewCalibrationRecord captures cal for persistence.
func NewCalibrationRecord(cal *rheobench.Calibration, now time.Time) CalibrationRecord {
	return CalibrationRecord{
		CorrectionType: cal.CorrectionType,
		SourceIDs:      append([]string{}, cal.SourceIDs...),
		Points: CalibrationPoints{
			Stress:    append([]float64(nil), cal.Stress...),
			ShearRate: append([]float64(nil), cal.ShearRate...),
		},
		CreatedAt: now.UTC(),
	}
}

// Calibration rebuilds the master curve, validating it on the way.
func (r CalibrationRecord) Calibration() (*rheobench.Calibration, error) {
	if len(r.Points.Stress) != len(r.Points.ShearRate) {
		return nil, fmt.Errorf("%w: %d stresses vs %d shear rates",
			rheobench.ErrInvalidCalibration, len(r.Points.Stress), len(r.Points.ShearRate))
	}
	return rheobench.NewCalibration(r.CorrectionType, r.SourceIDs, rheobench.CorrectedCurve{
		Stress:    r.Points.Stress,
		ShearRate: r.Points.ShearRate,
	})
}

// ModelRecord is the per-session summary of the selected model.
type ModelRecord struct {
	SessionID      string             `json:"session_id,omitempty"`
	CorrectionType string             `json:"correction_type,omitempty"`
	BestModel      rheobench.Model    `json:"best_model_name"`
	RSquared       float64            `json:"r_squared"`
	Parameters     []float64          `json:"parameters"`
	ParameterNames []string           `json:"parameter_names"`
	StdErrors      []float64          `json:"std_errors,omitempty"`
	Candidates     map[string]float64 `json:"candidates,omitempty"` // converged model → R²
}

// NewModelRecord summarises a fit report. It fails when no model was selected.
func NewModelRecord(sessionID, correctionType string, report *rheobench.FitReport) (ModelRecord, error) {
	if report == nil || report.Best == nil {
		return ModelRecord{}, rheobench.ErrNoModelConverged
	}
	best := report.Best
	rec := ModelRecord{
		SessionID:      sessionID,
		CorrectionType: correctionType,
		BestModel:      best.Model,
		RSquared:       best.RSquared,
		Parameters:     append([]float64(nil), best.Params...),
		ParameterNames: best.Model.ParamNames(),
		StdErrors:      best.StdErrors(),
		Candidates:     map[string]float64{},
	}
	for _, res := range report.Converged() {
		rec.Candidates[res.Model.String()] = res.RSquared
	}
	return rec, nil
}

// Result rebuilds a fit result able to Predict from the record.
func (r ModelRecord) Result() (*rheobench.ModelFitResult, error) {
	if len(r.Parameters) != r.BestModel.NumParams() {
		return nil, fmt.Errorf("model %s needs %d parameters, record has %d",
			r.BestModel, r.BestModel.NumParams(), len(r.Parameters))
	}
	return &rheobench.ModelFitResult{
		Model:    r.BestModel,
		Params:   append([]float64(nil), r.Parameters...),
		RSquared: r.RSquared,
	}, nil
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadCalibration decodes a calibration record and rebuilds its master curve.
func ReadCalibration(r io.Reader) (*rheobench.Calibration, error) {
	var rec CalibrationRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding calibration record: %w", err)
	}
	return rec.Calibration()
}

// ReadModel decodes a model record.
func ReadModel(r io.Reader) (ModelRecord, error) {
	var rec ModelRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return ModelRecord{}, fmt.Errorf("decoding model record: %w", err)
	}
	return rec, nil
}
