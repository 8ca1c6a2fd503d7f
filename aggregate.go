package rheobench

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Reproducibility verdict thresholds, in percent coefficient of variation.
const (
	StressExcellentCV     = 1.0  // stress CV below this is "excellent"
	StressGoodCV          = 5.0  // below this "good", otherwise "attention"
	ViscosityHighCV       = 5.0  // viscosity CV below this is "high stability"
	ViscosityAcceptableCV = 10.0 // below this "acceptable", otherwise "low stability"
)

// Verdict labels.
const (
	VerdictExcellent     = "excellent"
	VerdictGood          = "good"
	VerdictAttention     = "attention"
	VerdictHighStability = "high stability"
	VerdictAcceptable    = "acceptable"
	VerdictLowStability  = "low stability"
	VerdictInsufficient  = "insufficient data"
)

// AggregateOptions controls replicate aggregation.
type AggregateOptions struct {
	IQRFactor    float64 // Tukey fence multiplier (default 1.5)
	MinGroupSize int     // Smallest group the IQR filter is applied to (default 3)
	BinDecimals  int     // Decimals of log10(γ̇w) used for binning (default 1)
}

// DefaultAggregateOptions returns the decade-scale binning with Tukey fences.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		IQRFactor:    1.5,
		MinGroupSize: 3,
		BinDecimals:  1,
	}
}

// StatGroup is one shear-rate band across all replicates.
type StatGroup struct {
	LogShearBin float64   // round(log10 γ̇w, BinDecimals)
	RawStress   []float64 // τw of every member before filtering
	Points      []ProcessedPoint
	Outliers    []ProcessedPoint
	PointCount  int // members after filtering
	Q1, Q3      float64

	MeanStress float64
	StdStress  float64
	CVPercent  float64 // stress CV

	MeanShearRate         float64
	StdShearRate          float64
	MeanApparentShearRate float64
	StdApparentShearRate  float64
	MeanViscosity         float64
	StdViscosity          float64
	ViscosityCVPercent    float64
}

// Reproducibility is the result of aggregating replicate measurement sets.
type Reproducibility struct {
	Groups     []StatGroup // ascending shear-rate band
	Replicates int
	Removed    int

	// Stress-weighted mean of the per-group CVs over groups with two or more
	// members; NaN when no such group exists.
	StressCV         float64
	ViscosityCV      float64
	StressVerdict    string
	ViscosityVerdict string
}

// Aggregate groups the points of repeated measurement sets by shear-rate band,
// removes within-band outliers and reports per-band and global reproducibility.
//
// Bands are round(log10 γ̇w, BinDecimals). Bands with at least MinGroupSize
// members keep only points with τw inside [Q1 − k·IQR, Q3 + k·IQR]; smaller
// bands are not filtered. Removing a point from one band never affects another.
func Aggregate(replicates [][]ProcessedPoint, opts AggregateOptions) (*Reproducibility, error) {
	d := DefaultAggregateOptions()
	if opts.IQRFactor <= 0 {
		opts.IQRFactor = d.IQRFactor
	}
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = d.MinGroupSize
	}
	if opts.BinDecimals < 0 {
		opts.BinDecimals = d.BinDecimals
	}
	scale := math.Pow(10, float64(opts.BinDecimals))

	bins := map[int64][]ProcessedPoint{}
	total := 0
	for _, rep := range replicates {
		for _, p := range rep {
			if !(p.ShearRate > 0) || !isFinite(p.Stress) {
				continue
			}
			key := int64(math.Round(math.Log10(p.ShearRate) * scale))
			bins[key] = append(bins[key], p)
			total++
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no points with positive shear rate in %d replicates", ErrInsufficientData, len(replicates))
	}

	keys := make([]int64, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rep := &Reproducibility{Replicates: len(replicates)}
	for _, k := range keys {
		g := buildGroup(float64(k)/scale, bins[k], opts)
		rep.Removed += len(g.Outliers)
		rep.Groups = append(rep.Groups, g)
	}

	rep.StressCV = weightedCV(rep.Groups, func(g StatGroup) float64 { return g.CVPercent })
	rep.ViscosityCV = weightedCV(rep.Groups, func(g StatGroup) float64 { return g.ViscosityCVPercent })
	rep.StressVerdict = StressVerdict(rep.StressCV)
	rep.ViscosityVerdict = ViscosityVerdict(rep.ViscosityCV)
	return rep, nil
}

func buildGroup(bin float64, members []ProcessedPoint, opts AggregateOptions) StatGroup {
	g := StatGroup{LogShearBin: bin}
	for _, p := range members {
		g.RawStress = append(g.RawStress, p.Stress)
	}

	g.Points = members
	if len(members) >= opts.MinGroupSize {
		g.Q1 = Quantile(g.RawStress, 0.25)
		g.Q3 = Quantile(g.RawStress, 0.75)
		iqr := g.Q3 - g.Q1
		lo, hi := g.Q1-opts.IQRFactor*iqr, g.Q3+opts.IQRFactor*iqr

		g.Points = nil
		for _, p := range members {
			if p.Stress < lo || p.Stress > hi {
				g.Outliers = append(g.Outliers, p)
				continue
			}
			g.Points = append(g.Points, p)
		}
	}
	g.PointCount = len(g.Points)

	column := func(f func(ProcessedPoint) float64) stats.Float64Data {
		out := make(stats.Float64Data, len(g.Points))
		for i, p := range g.Points {
			out[i] = f(p)
		}
		return out
	}
	g.MeanStress, g.StdStress = meanStd(column(func(p ProcessedPoint) float64 { return p.Stress }))
	g.MeanShearRate, g.StdShearRate = meanStd(column(func(p ProcessedPoint) float64 { return p.ShearRate }))
	g.MeanApparentShearRate, g.StdApparentShearRate = meanStd(column(func(p ProcessedPoint) float64 { return p.ApparentShearRate }))
	g.MeanViscosity, g.StdViscosity = meanStd(column(func(p ProcessedPoint) float64 { return p.Viscosity }))
	g.CVPercent = cv(g.MeanStress, g.StdStress)
	g.ViscosityCVPercent = cv(g.MeanViscosity, g.StdViscosity)
	return g
}

// meanStd returns the mean and sample standard deviation (0 for one value).
func meanStd(data stats.Float64Data) (mean, std float64) {
	mean, err := stats.Mean(data)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	if data.Len() < 2 {
		return mean, 0
	}
	std, err = stats.StandardDeviationSample(data)
	if err != nil {
		return mean, math.NaN()
	}
	return mean, std
}

func cv(mean, std float64) float64 {
	if mean == 0 || math.IsNaN(mean) {
		return math.NaN()
	}
	return std / math.Abs(mean) * 100
}

// weightedCV averages per-group CVs weighted by each group's mean stress,
// which gives high-stress bands more influence.
func weightedCV(groups []StatGroup, value func(StatGroup) float64) float64 {
	var sum, weights float64
	for _, g := range groups {
		v := value(g)
		if g.PointCount < 2 || !isFinite(v) || !(g.MeanStress > 0) {
			continue
		}
		sum += v * g.MeanStress
		weights += g.MeanStress
	}
	if weights == 0 {
		return math.NaN()
	}
	return sum / weights
}

// Quantile returns the p-quantile of v by linear interpolation between order
// statistics (position (n−1)·p).
func Quantile(v []float64, p float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// StressVerdict classifies a stress CV (percent).
func StressVerdict(cvPercent float64) string {
	switch {
	case math.IsNaN(cvPercent):
		return VerdictInsufficient
	case cvPercent < StressExcellentCV:
		return VerdictExcellent
	case cvPercent < StressGoodCV:
		return VerdictGood
	default:
		return VerdictAttention
	}
}

// ViscosityVerdict classifies a viscosity CV (percent).
func ViscosityVerdict(cvPercent float64) string {
	switch {
	case math.IsNaN(cvPercent):
		return VerdictInsufficient
	case cvPercent < ViscosityHighCV:
		return VerdictHighStability
	case cvPercent < ViscosityAcceptableCV:
		return VerdictAcceptable
	default:
		return VerdictLowStability
	}
}
