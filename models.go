package rheobench

import (
	"fmt"
	"math"
	"strings"
)

// Model is one of the candidate constitutive laws, in selection order.
type Model int

const (
	Newtonian       Model = iota // τ = η·γ̇
	PowerLaw                     // τ = K·γ̇ⁿ
	Bingham                      // τ = τ0 + ηp·γ̇
	HerschelBulkley              // τ = τ0 + K·γ̇ⁿ
	Casson                       // √τ = √τ0 + √ηc·√γ̇

	modelCount
)

// Models lists every candidate in table order. Ties go to the earlier entry.
var Models = [modelCount]Model{Newtonian, PowerLaw, Bingham, HerschelBulkley, Casson}

// modelSpec carries everything the fitter needs to know about one law.
type modelSpec struct {
	name   string
	params []string
	index  int // position of the power-law index in params, -1 if none
	eval   func(p []float64, rate float64) float64
	guess  func(rate, stress []float64) []float64
}

var modelSpecs = [modelCount]modelSpec{
	Newtonian: {
		name:   "Newtonian",
		params: []string{"eta"},
		index:  -1,
		eval: func(p []float64, rate float64) float64 {
			return p[0] * rate
		},
		guess: func(rate, stress []float64) []float64 {
			return []float64{meanRatio(rate, stress)}
		},
	},
	PowerLaw: {
		name:   "Power Law",
		params: []string{"K", "n"},
		index:  1,
		eval: func(p []float64, rate float64) float64 {
			return p[0] * math.Pow(rate, p[1])
		},
		guess: func(rate, stress []float64) []float64 {
			k, n := powerLawGuess(rate, stress)
			return []float64{k, n}
		},
	},
	Bingham: {
		name:   "Bingham",
		params: []string{"tau0", "eta_p"},
		index:  -1,
		eval: func(p []float64, rate float64) float64 {
			return p[0] + p[1]*rate
		},
		guess: func(rate, stress []float64) []float64 {
			fit, err := FitLine(rate, stress)
			if err != nil {
				return []float64{0.5 * minOf(stress), meanRatio(rate, stress)}
			}
			return []float64{fit.Intercept, fit.Slope}
		},
	},
	HerschelBulkley: {
		name:   "Herschel-Bulkley",
		params: []string{"tau0", "K", "n"},
		index:  2,
		eval: func(p []float64, rate float64) float64 {
			return p[0] + p[1]*math.Pow(rate, p[2])
		},
		guess: func(rate, stress []float64) []float64 {
			tau0 := 0.5 * minOf(stress)
			shifted := make([]float64, len(stress))
			for i, s := range stress {
				shifted[i] = s - tau0
			}
			k, n := powerLawGuess(rate, shifted)
			return []float64{tau0, k, n}
		},
	},
	Casson: {
		name:   "Casson",
		params: []string{"tau0", "eta_c"},
		index:  -1,
		eval: func(p []float64, rate float64) float64 {
			s := math.Sqrt(p[0]) + math.Sqrt(p[1]*rate)
			return s * s
		},
		guess: func(rate, stress []float64) []float64 {
			sx := make([]float64, len(rate))
			sy := make([]float64, len(stress))
			for i := range rate {
				sx[i] = math.Sqrt(rate[i])
				sy[i] = math.Sqrt(stress[i])
			}
			fit, err := FitLine(sx, sy)
			if err != nil {
				return []float64{0.5 * minOf(stress), meanRatio(rate, stress)}
			}
			return []float64{fit.Intercept * math.Abs(fit.Intercept), fit.Slope * math.Abs(fit.Slope)}
		},
	},
}

// String returns the display name of the model.
func (m Model) String() string {
	if m < 0 || m >= modelCount {
		return fmt.Sprintf("Model(%d)", int(m))
	}
	return modelSpecs[m].name
}

// ParamNames returns the parameter names in the order Eval expects them.
func (m Model) ParamNames() []string {
	return append([]string(nil), modelSpecs[m].params...)
}

// NumParams returns the number of free parameters.
func (m Model) NumParams() int {
	return len(modelSpecs[m].params)
}

// Eval returns the model stress at shear rate for the given parameters.
func (m Model) Eval(params []float64, rate float64) float64 {
	return modelSpecs[m].eval(params, rate)
}

// Bounds returns the box constraints of the parameters: every parameter is at
// least floor, and a power-law index is at most maxIndex.
func (m Model) Bounds(floor, maxIndex float64) (lower, upper []float64) {
	spec := modelSpecs[m]
	lower = make([]float64, len(spec.params))
	upper = make([]float64, len(spec.params))
	for i := range spec.params {
		lower[i] = floor
		upper[i] = math.Inf(1)
	}
	if spec.index >= 0 {
		upper[spec.index] = maxIndex
	}
	return lower, upper
}

// MarshalText encodes the model by name.
func (m Model) MarshalText() ([]byte, error) {
	if m < 0 || m >= modelCount {
		return nil, fmt.Errorf("unknown model %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a model name accepted by ParseModel.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseModel resolves a model name, ignoring case, spaces, '-' and '_'.
func ParseModel(name string) (Model, error) {
	key := normalizeName(name)
	for _, m := range Models {
		if normalizeName(m.String()) == key {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q", name)
}

func normalizeName(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(s))
}

// powerLawGuess estimates K and n from a log-log regression of the positive pairs.
func powerLawGuess(rate, stress []float64) (k, n float64) {
	var lx, ly []float64
	for i := range rate {
		if rate[i] > 0 && stress[i] > 0 {
			lx = append(lx, math.Log(rate[i]))
			ly = append(ly, math.Log(stress[i]))
		}
	}
	fit, err := FitLine(lx, ly)
	if err != nil {
		return meanRatio(rate, stress), 1
	}
	return math.Exp(fit.Intercept), fit.Slope
}

func meanRatio(rate, stress []float64) float64 {
	sum, n := 0.0, 0
	for i := range rate {
		if rate[i] > 0 {
			sum += stress[i] / rate[i]
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

func minOf(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		m = math.Min(m, x)
	}
	return m
}
