package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/alexshd/rheobench"
)

var (
	bold  = color.New(color.Bold)
	good  = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
	bad   = color.New(color.FgRed)
	muted = color.New(color.FgHiBlack)
)

// verdictColor picks the colour a reproducibility verdict is printed in.
func verdictColor(verdict string) *color.Color {
	switch verdict {
	case rheobench.VerdictExcellent, rheobench.VerdictGood, rheobench.VerdictHighStability:
		return good
	case rheobench.VerdictAcceptable:
		return warn
	case rheobench.VerdictInsufficient:
		return muted
	default:
		return bad
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatParams(res *rheobench.ModelFitResult) string {
	names := res.Model.ParamNames()
	errs := res.StdErrors()
	parts := make([]string, len(names))
	for i, n := range names {
		if errs != nil && !math.IsNaN(errs[i]) {
			parts[i] = fmt.Sprintf("%s=%.6g±%.2g", n, res.Params[i], errs[i])
		} else {
			parts[i] = fmt.Sprintf("%s=%.6g", n, res.Params[i])
		}
	}
	return strings.Join(parts, " ")
}

// printFit lists every candidate model and marks the selected one.
func printFit(w io.Writer, report *rheobench.FitReport) {
	bold.Fprintln(w, "Model fit")
	tw := newTable(w)
	fmt.Fprintln(tw, "  model\tR²\tparameters\t")
	for _, at := range report.Attempts {
		if at.Result == nil {
			fmt.Fprintf(tw, "  %s\t-\t%v\t\n", at.Model, at.Err)
			continue
		}
		mark := ""
		if at.Result == report.Best {
			mark = "*"
		}
		fmt.Fprintf(tw, "  %s%s\t%.6f\t%s\t\n", at.Model, mark, at.Result.RSquared, formatParams(at.Result))
	}
	tw.Flush()
	if report.Best != nil {
		fmt.Fprintf(w, "  best: %s\n", good.Sprint(report.Best.Model))
	} else {
		fmt.Fprintf(w, "  best: %s\n", bad.Sprint("none"))
	}
}

func printDropped(w io.Writer, unit string, dropped []rheobench.DroppedTarget) {
	for _, d := range dropped {
		muted.Fprintf(w, "  dropped %.6g %s (%d contributors): %s\n", d.Target, unit, d.Contributors, d.Reason)
	}
}

func printBagley(w io.Writer, b *rheobench.BagleyResult) {
	bold.Fprintf(w, "Bagley correction (D = %g mm)\n", b.Diameter)
	tw := newTable(w)
	fmt.Fprintln(tw, "  γ̇aw [1/s]\tτw [Pa]\tΔP entrance [Pa]\tR²\tn\t")
	for _, t := range b.Targets {
		fmt.Fprintf(tw, "  %.6g\t%.6g\t%.6g\t%.4f\t%d\t\n", t.ShearRate, t.Stress, t.EntranceLoss, t.RSquared, t.Contributors)
	}
	tw.Flush()
	printDropped(w, "1/s", b.Dropped)
}

func printMooney(w io.Writer, m *rheobench.MooneyResult) {
	bold.Fprintf(w, "Mooney correction (L = %g mm)\n", m.Length)
	tw := newTable(w)
	fmt.Fprintln(tw, "  τw [Pa]\tγ̇ [1/s]\tvs [m/s]\tR²\tn\t")
	for _, t := range m.Targets {
		fmt.Fprintf(tw, "  %.6g\t%.6g\t%.4g\t%.4f\t%d\t\n", t.Stress, t.ShearRate, t.SlipVelocity, t.RSquared, t.Contributors)
	}
	tw.Flush()
	printDropped(w, "Pa", m.Dropped)
}

func printRabinowitsch(w io.Writer, wr *rheobench.RabinowitschResult) {
	bold.Fprintln(w, "Rabinowitsch correction")
	if wr.Fallback {
		warn.Fprintf(w, "  n' = 1 (fallback: %s)\n", wr.FallbackReason)
		return
	}
	fmt.Fprintf(w, "  n' = %.4f, factor = %.4f, %d points\n", wr.NPrime, wr.Factor, wr.RegressionPoints)
}

// printPipeline summarises a pipeline run.
func printPipeline(w io.Writer, res *rheobench.PipelineResult) {
	bold.Fprint(w, "Correction: ")
	fmt.Fprintf(w, "%s (%d points)\n", res.CorrectionType(), res.Curve.Len())
	for _, f := range res.Failures {
		warn.Fprintf(w, "  skipped %s\n", f)
	}
	if res.CalibrationDropped > 0 {
		warn.Fprintf(w, "  calibration dropped %d points\n", res.CalibrationDropped)
	}
	if res.Bagley != nil {
		printBagley(w, res.Bagley)
	}
	if res.Mooney != nil {
		printMooney(w, res.Mooney)
	}
	if res.Rabinowitsch != nil {
		printRabinowitsch(w, res.Rabinowitsch)
	}
	if res.Fit != nil {
		printFit(w, res.Fit)
	}
}

func printResiduals(w io.Writer, rep *rheobench.ResidualReport, points []rheobench.ProcessedPoint) {
	fmt.Fprintf(w, "Residual std %.6g Pa, threshold %.6g Pa (×%g): %d flagged\n",
		rep.Std, rep.Threshold, rep.Multiplier, len(rep.Flagged))
	for _, i := range rep.Flagged {
		p := points[i]
		bad.Fprintf(w, "  %s #%d  γ̇w=%.6g  τw=%.6g  residual=%+.6g\n",
			p.Source, p.Sequence, p.ShearRate, p.Stress, rep.Residuals[i])
	}
}

// printReproducibility prints the per-band statistics and the global verdicts.
func printReproducibility(w io.Writer, rep *rheobench.Reproducibility) {
	bold.Fprintf(w, "Reproducibility over %d replicates (%d outliers removed)\n", rep.Replicates, rep.Removed)
	tw := newTable(w)
	fmt.Fprintln(tw, "  log10 γ̇w\tn\tγ̇w [1/s]\tτw [Pa]\tCV τ [%]\tη [Pa·s]\tCV η [%]\t")
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "  %.2f\t%d\t%.6g\t%.6g ± %.3g\t%s\t%.6g ± %.3g\t%s\t\n",
			g.LogShearBin, g.PointCount, g.MeanShearRate,
			g.MeanStress, g.StdStress, formatCV(g.CVPercent),
			g.MeanViscosity, g.StdViscosity, formatCV(g.ViscosityCVPercent))
	}
	tw.Flush()
	fmt.Fprintf(w, "  stress CV %s: %s\n", formatCV(rep.StressCV), verdictColor(rep.StressVerdict).Sprint(rep.StressVerdict))
	fmt.Fprintf(w, "  viscosity CV %s: %s\n", formatCV(rep.ViscosityCV), verdictColor(rep.ViscosityVerdict).Sprint(rep.ViscosityVerdict))
}

func formatCV(cv float64) string {
	if math.IsNaN(cv) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", cv)
}
