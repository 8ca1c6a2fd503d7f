package rheobench

import (
	"fmt"
)

// Calibration is a master curve mapping wall shear stress to corrected shear
// rate, built once from a corrected series and applied to later datasets in
// place of the Rabinowitsch correction.
type Calibration struct {
	CorrectionType string   // e.g. "bagley+mooney+rabinowitsch"
	SourceIDs      []string // datasets the curve was built from
	Stress         []float64
	ShearRate      []float64

	curve series
}

// NewCalibration builds a master curve from a corrected curve.
// It needs at least two distinct stress values.
func NewCalibration(correctionType string, sourceIDs []string, curve CorrectedCurve) (*Calibration, error) {
	if err := curve.validate(); err != nil {
		return nil, err
	}
	s := newSeries(curve.Stress, curve.ShearRate)
	if len(s.x) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 distinct stress values, got %d", ErrInvalidCalibration, len(s.x))
	}
	return &Calibration{
		CorrectionType: correctionType,
		SourceIDs:      append([]string(nil), sourceIDs...),
		Stress:         append([]float64(nil), s.x...),
		ShearRate:      append([]float64(nil), s.y...),
		curve:          s,
	}, nil
}

// lookup returns the interpolation series. A Calibration not built by
// NewCalibration, e.g. one read back from storage, gets a fresh series on every
// call; the receiver is never written to.
func (c *Calibration) lookup() (series, error) {
	s := c.curve
	if len(s.x) == 0 {
		if len(c.Stress) != len(c.ShearRate) {
			return series{}, fmt.Errorf("%w: %d stresses vs %d shear rates", ErrInvalidCalibration, len(c.Stress), len(c.ShearRate))
		}
		s = newSeries(c.Stress, c.ShearRate)
	}
	if len(s.x) < 2 {
		return series{}, fmt.Errorf("%w: %d usable points", ErrInvalidCalibration, len(s.x))
	}
	return s, nil
}

// ShearRateAt maps a stress onto the master curve.
//
// Unlike the Bagley and Mooney target interpolation, this extrapolates
// linearly beyond the calibrated stress range.
func (c *Calibration) ShearRateAt(stress float64) (float64, error) {
	s, err := c.lookup()
	if err != nil {
		return 0, err
	}
	return s.extrapolate(stress), nil
}

// Apply replaces the shear rates of curve by the master-curve values for its
// stresses. Points mapped to a negative shear rate are dropped and counted.
func (c *Calibration) Apply(curve CorrectedCurve) (CorrectedCurve, int, error) {
	if err := curve.validate(); err != nil {
		return CorrectedCurve{}, 0, err
	}

	s, err := c.lookup()
	if err != nil {
		return CorrectedCurve{}, 0, err
	}

	out := CorrectedCurve{
		ShearRate: make([]float64, 0, curve.Len()),
		Stress:    make([]float64, 0, curve.Len()),
	}
	dropped := 0
	for _, stress := range curve.Stress {
		rate := s.extrapolate(stress)
		if rate < 0 {
			dropped++
			continue
		}
		out.ShearRate = append(out.ShearRate, rate)
		out.Stress = append(out.Stress, stress)
	}
	if out.Len() == 0 && curve.Len() > 0 {
		return out, dropped, fmt.Errorf("%w: calibration mapped every point to a negative shear rate", ErrNoValidTargets)
	}
	return out, dropped, nil
}
