package main

//
// Model fitting on processed measurement sets
//

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
)

func fitSubcommand(a *app) *cobra.Command {
	var (
		model       string
		results     string
		calibration calibrationSource
	)
	cmd := &cobra.Command{
		Use:   "fit SETS.json...",
		Short: "Fit the rheological models to the wall flow curve of measurement sets",
		Long: `Processes every measurement set (flow curve, then Rabinowitsch or an
external calibration), pools the points and fits Newtonian, Power Law,
Bingham, Herschel-Bulkley and Casson, selecting the best by R².`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := loadAllSets(args)
			if err != nil {
				return err
			}
			cal, err := calibration.load(cmd.Context(), a)
			if err != nil {
				return err
			}
			points, err := a.processAll(sets, cal)
			if err != nil {
				return err
			}
			curve := rheobench.PointsCurve(points)
			out := cmd.OutOrStdout()
			opts := a.cfg.FitOptions(a.logger)

			if model != "" {
				m, err := rheobench.ParseModel(model)
				if err != nil {
					return err
				}
				res, err := rheobench.FitModel(m, curve.ShearRate, curve.Stress, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: R² = %.6f  %s\n", m, res.RSquared, formatParams(res))
			} else {
				report, err := rheobench.FitModels(curve.ShearRate, curve.Stress, opts)
				if report != nil {
					printFit(out, report)
				}
				if err != nil {
					return err
				}
			}

			if results == "" {
				return nil
			}
			return writeFile(results, func(f *os.File) error {
				return artifact.WriteResults(f, points)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&model, "model", "m", "", "fit only this model")
	f.StringVar(&results, "results", "", "write the per-point results as CSV")
	f.StringVar(&calibration.path, "calibration", "", "calibration record replacing the Rabinowitsch correction")
	f.BoolVar(&calibration.latest, "latest-calibration", false, "use the newest calibration in the session store")
	return cmd
}
