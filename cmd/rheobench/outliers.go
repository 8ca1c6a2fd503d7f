package main

//
// Residual outlier review
//

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
)

// prompter asks the operator to accept or adjust an outlier threshold.
type prompter interface {
	Confirm(message string) (bool, error)
	Multiplier(current float64) (float64, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Confirm(message string) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: true}, &ok)
	return ok, err
}

func (surveyPrompter) Multiplier(current float64) (float64, error) {
	var answer string
	prompt := &survey.Input{
		Message: "New threshold multiplier:",
		Default: strconv.FormatFloat(current, 'g', -1, 64),
		Help:    "Points with |residual| above multiplier × residual std are removed",
	}
	err := survey.AskOne(prompt, &answer, survey.WithValidator(func(ans interface{}) error {
		v, err := strconv.ParseFloat(ans.(string), 64)
		if err != nil || !(v > 0) {
			return fmt.Errorf("enter a positive number")
		}
		return nil
	}))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(answer, 64)
}

// reviewOutliers flags residual outliers and, when interactive, lets the
// operator adjust the multiplier until the flagged set is accepted.
func reviewOutliers(w io.Writer, p prompter, fit *rheobench.ModelFitResult, points []rheobench.ProcessedPoint,
	multiplier float64, interactive bool) (*rheobench.ResidualReport, error) {
	curve := rheobench.PointsCurve(points)
	for {
		rep, err := rheobench.FlagResidualOutliers(fit, curve.ShearRate, curve.Stress, multiplier)
		if err != nil {
			return nil, err
		}
		printResiduals(w, rep, points)
		if !interactive {
			return rep, nil
		}

		ok, err := p.Confirm(fmt.Sprintf("Remove %d of %d points?", len(rep.Flagged), len(points)))
		if err != nil {
			return nil, err
		}
		if ok {
			return rep, nil
		}
		if multiplier, err = p.Multiplier(rep.Multiplier); err != nil {
			return nil, err
		}
	}
}

func outliersSubcommand(a *app) *cobra.Command {
	var (
		multiplier  float64
		interactive bool
		results     string
	)
	cmd := &cobra.Command{
		Use:   "outliers SETS.json...",
		Short: "Flag points far from the best model and refit without them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("multiplier") {
				multiplier = a.cfg.Outliers.Multiplier
			}
			if !cmd.Flags().Changed("interactive") {
				interactive = a.cfg.Outliers.Interactive
			}

			sets, err := loadAllSets(args)
			if err != nil {
				return err
			}
			points, err := a.processAll(sets, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := a.cfg.FitOptions(a.logger)

			curve := rheobench.PointsCurve(points)
			report, err := rheobench.FitModels(curve.ShearRate, curve.Stress, opts)
			if err != nil {
				return err
			}
			printFit(out, report)

			rep, err := reviewOutliers(out, a.prompt, report.Best, points, multiplier, interactive)
			if err != nil {
				return err
			}
			if len(rep.Flagged) == 0 {
				return nil
			}

			kept := rep.Keep(points)
			a.logger.Info("outliers removed", "removed", len(rep.Flagged), "kept", len(kept))
			curve = rheobench.PointsCurve(kept)
			refit, err := rheobench.FitModels(curve.ShearRate, curve.Stress, opts)
			if err != nil {
				return err
			}
			printFit(out, refit)

			if results == "" {
				return nil
			}
			return writeFile(results, func(f *os.File) error {
				return artifact.WriteResults(f, kept)
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&multiplier, "multiplier", rheobench.DefaultOutlierMultiplier, "residual threshold in standard deviations")
	f.BoolVarP(&interactive, "interactive", "i", false, "confirm or adjust the threshold before removing points")
	f.StringVar(&results, "results", "", "write the retained points as CSV")
	return cmd
}
