package main

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
	"github.com/alexshd/rheobench/internal/ingest"
	"github.com/alexshd/rheobench/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// fakePrompter replays scripted answers.
type fakePrompter struct {
	confirms    []bool
	multipliers []float64
}

func (p *fakePrompter) Confirm(string) (bool, error) {
	if len(p.confirms) == 0 {
		return false, fmt.Errorf("unexpected confirmation")
	}
	ok := p.confirms[0]
	p.confirms = p.confirms[1:]
	return ok, nil
}

func (p *fakePrompter) Multiplier(float64) (float64, error) {
	if len(p.multipliers) == 0 {
		return 0, fmt.Errorf("unexpected multiplier prompt")
	}
	m := p.multipliers[0]
	p.multipliers = p.multipliers[1:]
	return m, nil
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("RHEOBENCH_STORE_PATH", filepath.Join(t.TempDir(), "sessions.db"))
	t.Setenv("RHEOBENCH_LOG_LEVEL", "error")
	return &app{prompt: &fakePrompter{}, logOutput: io.Discard}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const (
	density  = 1200.0 // kg/m³
	duration = 10.0   // s
	eta      = 2.0    // Pa·s
)

func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo * math.Pow(hi/lo, float64(i)/float64(n-1))
	}
	return out
}

func massForRate(rate float64, g rheobench.CapillaryGeometry) float64 {
	r := g.Radius()
	return rate * math.Pi * r * r * r / 4 * density * duration
}

// newtonianDataset builds trials of a Newtonian fluid at the given apparent
// shear rates with an entrance pressure loss.
func newtonianDataset(id string, g rheobench.CapillaryGeometry, rates []float64, entrance float64) rheobench.CapillaryDataset {
	ds := rheobench.CapillaryDataset{ID: id, Geometry: g, Density: density}
	for i, rate := range rates {
		ds.Points = append(ds.Points, rheobench.MeasurementPoint{
			Pressure: 2*eta*rate*g.AspectRatio() + entrance,
			Mass:     massForRate(rate, g),
			Duration: duration,
			Sequence: i + 1,
		})
	}
	return ds
}

func bagleySets() []rheobench.CapillaryDataset {
	var out []rheobench.CapillaryDataset
	for _, l := range []float64{10, 20, 40} {
		g := rheobench.CapillaryGeometry{Diameter: 1, Length: l}
		out = append(out, newtonianDataset(fmt.Sprintf("D1-L%.0f", l), g, logspace(10, 1000, 10), 1e5))
	}
	return out
}

func mooneySets() []rheobench.CapillaryDataset {
	var out []rheobench.CapillaryDataset
	for _, d := range []float64{1, 1.5, 2} {
		g := rheobench.CapillaryGeometry{Diameter: d, Length: 20}
		out = append(out, newtonianDataset(fmt.Sprintf("D%.1f-L20", d), g, logspace(5, 1500, 12), 0))
	}
	return out
}

func writeSets(t *testing.T, name string, sets []rheobench.CapillaryDataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, ingest.WriteSets(f, sets))
	return path
}

func TestAnalyze_FullSession(t *testing.T) {
	a := newTestApp(t)
	bagley := writeSets(t, "bagley.json", bagleySets())
	mooney := writeSets(t, "mooney.json", mooneySets())
	outDir := filepath.Join(t.TempDir(), "export")

	out, err := run(t, a, "analyze",
		"--bagley", bagley, "--mooney", mooney,
		"--name", "batch 7", "--out", outDir, "--save-calibration")
	require.NoError(t, err, out)
	t.Log(out)

	assert.Contains(t, out, "Correction: bagley+mooney+rabinowitsch")
	assert.Contains(t, out, "Newtonian*")
	assert.Contains(t, out, "session ")

	for _, name := range []string{"curve.csv", "results.csv", "model.json", "calibration.json"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	f, err := os.Open(filepath.Join(outDir, "model.json"))
	require.NoError(t, err)
	defer f.Close()
	model, err := artifact.ReadModel(f)
	require.NoError(t, err)
	assert.Equal(t, rheobench.Newtonian, model.BestModel)
	assert.InEpsilon(t, eta, model.Parameters[0], 1e-6)
	assert.NotEmpty(t, model.SessionID)

	out, err = run(t, a, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "batch 7")
	assert.Contains(t, out, "bagley+mooney+rabinowitsch")

	out, err = run(t, a, "sessions", "show", model.SessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "D1-L10, D1-L20, D1-L40, D1.0-L20, D1.5-L20, D2.0-L20")
	assert.Contains(t, out, `"best_model_name": "Newtonian"`)

	out, err = run(t, a, "analyze", "--bagley", bagley, "--latest-calibration", "--no-store")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Correction: bagley+calibration")
	assert.Contains(t, out, "Newtonian*")

	_, err = run(t, a, "sessions", "delete", model.SessionID)
	require.NoError(t, err)
	_, err = run(t, a, "sessions", "show", model.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyze_Errors(t *testing.T) {
	a := newTestApp(t)
	bagley := writeSets(t, "bagley.json", bagleySets())

	_, err := run(t, a, "analyze", "--no-store")
	assert.ErrorIs(t, err, rheobench.ErrInsufficientData)

	_, err = run(t, a, "analyze", "--bagley", bagley, "--reference", "nope", "--no-store")
	assert.ErrorContains(t, err, `reference dataset "nope" not found`)

	_, err = run(t, a, "analyze", "--bagley", bagley, "--calibration", "x.json", "--latest-calibration")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = run(t, a, "analyze", "--bagley", bagley, "--latest-calibration", "--no-store")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBagleyAndMooney(t *testing.T) {
	a := newTestApp(t)
	curve := filepath.Join(t.TempDir(), "bagley.csv")

	out, err := run(t, a, "bagley", writeSets(t, "bagley.json", bagleySets()), "-o", curve)
	require.NoError(t, err)
	assert.Contains(t, out, "Bagley correction (D = 1 mm)")
	assert.FileExists(t, curve)

	out, err = run(t, a, "mooney", writeSets(t, "mooney.json", mooneySets()), "--stress", "100,200,400")
	require.NoError(t, err)
	assert.Contains(t, out, "Mooney correction (L = 20 mm)")
	assert.Contains(t, out, "  100 ")
}

func TestFit_SingleModel(t *testing.T) {
	a := newTestApp(t)
	results := filepath.Join(t.TempDir(), "results.csv")

	out, err := run(t, a, "fit", writeSets(t, "sets.json", mooneySets()[:1]), "--model", "power law", "--results", results)
	require.NoError(t, err)
	assert.Contains(t, out, "Power Law: R² = ")
	assert.FileExists(t, results)

	_, err = run(t, a, "fit", writeSets(t, "sets.json", mooneySets()[:1]), "--model", "maxwell")
	assert.Error(t, err)
}

func TestConvert_HistoricalCSV(t *testing.T) {
	a := newTestApp(t)
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte("pressao_bar,massa_g,tempo_s,ponto\n2,10,5,1\n"), 0o644))

	out, err := run(t, a, "convert", path, "--id", "D1.5-L43", "--diameter", "1.5", "--length", "43", "--density", "1.5")
	require.NoError(t, err)

	sets, err := ingest.ReadSets(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "D1.5-L43", sets[0].ID)
	require.Len(t, sets[0].Points, 1)
	assert.InDelta(t, 2e5, sets[0].Points[0].Pressure, 1e-6)
	assert.InDelta(t, 0.01, sets[0].Points[0].Mass, 1e-12)

	fp, err := rheobench.ComputeFlowPoint(sets[0].Points[0], sets[0].Geometry, sets[0].Density)
	require.NoError(t, err)
	assert.InDelta(t, 1744.186046511628, fp.Stress, 1e-9)

	_, err = run(t, a, "convert", path, "--diameter", "1.5", "--length", "43")
	assert.Error(t, err, "density is required")
}

func TestAggregate_IdenticalReplicates(t *testing.T) {
	a := newTestApp(t)
	set := mooneySets()[:1]
	r1 := writeSets(t, "r1.json", set)
	r2 := writeSets(t, "r2.json", set)

	out, err := run(t, a, "aggregate", r1, r2)
	require.NoError(t, err)
	assert.Contains(t, out, "Reproducibility over 2 replicates (0 outliers removed)")
	assert.Contains(t, out, "stress CV 0.00%: excellent")
	assert.Contains(t, out, "viscosity CV 0.00%: high stability")
}

// residualFixture has τ = 2γ̇ on γ̇ = 1..10 with +30 Pa on the fifth point:
// residual std 9 Pa, so the threshold is 27 Pa at ×3 and 36 Pa at ×4.
func residualFixture() (*rheobench.ModelFitResult, []rheobench.ProcessedPoint) {
	fit := &rheobench.ModelFitResult{Model: rheobench.Newtonian, Params: []float64{2}}
	var points []rheobench.ProcessedPoint
	for i := 1; i <= 10; i++ {
		p := rheobench.ProcessedPoint{Source: "fixture", Sequence: i, ShearRate: float64(i), Stress: 2 * float64(i)}
		if i == 5 {
			p.Stress += 30
		}
		points = append(points, p)
	}
	return fit, points
}

func TestReviewOutliers(t *testing.T) {
	fit, points := residualFixture()

	var out bytes.Buffer
	rep, err := reviewOutliers(&out, &fakePrompter{}, fit, points, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, rep.Flagged)
	assert.Contains(t, out.String(), "fixture #5")

	p := &fakePrompter{confirms: []bool{false, true}, multipliers: []float64{4}}
	out.Reset()
	rep, err = reviewOutliers(&out, p, fit, points, 3, true)
	require.NoError(t, err)
	assert.Empty(t, rep.Flagged)
	assert.Equal(t, 4.0, rep.Multiplier)
	assert.Equal(t, 2, strings.Count(out.String(), "Residual std"))
	assert.Empty(t, p.confirms)

	_, err = reviewOutliers(&out, &fakePrompter{}, fit, points, 3, true)
	assert.ErrorContains(t, err, "unexpected confirmation")
}

func TestVerdictColor(t *testing.T) {
	assert.Same(t, good, verdictColor(rheobench.VerdictExcellent))
	assert.Same(t, good, verdictColor(rheobench.VerdictHighStability))
	assert.Same(t, warn, verdictColor(rheobench.VerdictAcceptable))
	assert.Same(t, muted, verdictColor(rheobench.VerdictInsufficient))
	assert.Same(t, bad, verdictColor(rheobench.VerdictAttention))
	assert.Same(t, bad, verdictColor(rheobench.VerdictLowStability))
}
