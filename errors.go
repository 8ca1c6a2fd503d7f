package rheobench

import (
	"errors"
	"fmt"
)

// Errors returned by the correction and fitting stages.
var (
	// ErrInvalidGeometry is returned when a capillary diameter or length is not positive.
	// It is fatal for the dataset that carries the geometry.
	ErrInvalidGeometry = errors.New("invalid capillary geometry")

	// ErrInvalidDensity is returned when the fluid density is not positive.
	ErrInvalidDensity = errors.New("invalid fluid density")

	// ErrInvalidMeasurement is returned for a trial that collected mass over a
	// duration that is not a positive finite number.
	ErrInvalidMeasurement = errors.New("invalid measurement")

	// ErrInsufficientData is returned when a stage has fewer points or capillaries than it needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrGeometryMismatch is returned when a Bagley series does not share one diameter,
	// or a Mooney series does not share one length.
	ErrGeometryMismatch = errors.New("capillary series geometry mismatch")

	// ErrNoValidTargets is returned when a correction stage kept none of its target points.
	ErrNoValidTargets = errors.New("no valid targets")

	// ErrNoConvergence marks a single model whose solver did not converge.
	ErrNoConvergence = errors.New("solver did not converge")

	// ErrNoModelConverged is returned when every candidate model was skipped or failed.
	ErrNoModelConverged = errors.New("no model converged")

	// ErrInvalidCalibration is returned for a master curve that cannot be interpolated.
	ErrInvalidCalibration = errors.New("invalid calibration curve")

	// ErrInvalidMultiplier is returned for an outlier multiplier that is not positive and finite.
	ErrInvalidMultiplier = errors.New("invalid outlier multiplier")
)

// StageError records the failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
