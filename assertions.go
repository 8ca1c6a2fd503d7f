package rheobench

import (
	"math"
	"testing"
)

// AssertionConfig contains thresholds for fit-quality properties.
type AssertionConfig struct {
	// Minimum R² for the selected model
	MinRSquared float64

	// Relative tolerance when comparing recovered parameters
	RelTolerance float64
}

// DefaultAssertionConfig returns the thresholds used for synthetic round trips.
func DefaultAssertionConfig() AssertionConfig {
	return AssertionConfig{
		MinRSquared:  0.95, // 95% of variance explained
		RelTolerance: 0.05, // 5% parameter error
	}
}

// AssertBestModel verifies the fitter selected want with an acceptable R².
func AssertBestModel(t *testing.T, report *FitReport, want Model, cfg AssertionConfig) {
	t.Helper()

	if report == nil || report.Best == nil {
		t.Fatalf("No model selected")
	}

	for _, a := range report.Attempts {
		if a.Result != nil {
			t.Logf("  %-17s R² = %.6f  params = %v", a.Model, a.Result.RSquared, a.Result.Params)
		} else {
			t.Logf("  %-17s excluded: %v", a.Model, a.Err)
		}
	}

	if report.Best.Model != want {
		t.Errorf("Wrong model selected: got %s, want %s (R² = %.6f)",
			report.Best.Model, want, report.Best.RSquared)
	}

	AssertRSquared(t, report.Best, cfg)
}

// AssertRSquared verifies a fit explains enough of the variance.
func AssertRSquared(t *testing.T, res *ModelFitResult, cfg AssertionConfig) {
	t.Helper()

	if res.RSquared < cfg.MinRSquared {
		t.Errorf("Poor model fit: %s R² = %.4f (min: %.4f)", res.Model, res.RSquared, cfg.MinRSquared)
	}
}

// AssertRecovers verifies got is within the relative tolerance of want.
//
// For want == 0 the tolerance is applied as an absolute bound.
func AssertRecovers(t *testing.T, name string, got, want float64, cfg AssertionConfig) {
	t.Helper()

	scale := math.Abs(want)
	if scale == 0 {
		scale = 1
	}
	if math.IsNaN(got) || math.Abs(got-want) > cfg.RelTolerance*scale {
		t.Errorf("%s not recovered: got %.6g, want %.6g (tolerance %.2g%%)",
			name, got, want, cfg.RelTolerance*100)
		return
	}
	t.Logf("✓ %s = %.6g (want %.6g)", name, got, want)
}
