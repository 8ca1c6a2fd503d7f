package main

//
// Standalone Bagley and Mooney corrections
//

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
)

func bagleySubcommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bagley SETS.json...",
		Short: "Entrance-pressure correction over capillaries of one diameter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := loadAllSets(args)
			if err != nil {
				return err
			}
			res, err := rheobench.BagleyCorrect(sets, rheobench.CorrectionOptions{
				Targets: a.cfg.Grid.Targets,
				Logger:  a.logger,
			})
			if res != nil {
				printBagley(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return err
			}
			return writeCurve(out, res.Curve)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the corrected curve as CSV")
	return cmd
}

func mooneySubcommand(a *app) *cobra.Command {
	var (
		out     string
		targets []float64
	)
	cmd := &cobra.Command{
		Use:   "mooney SETS.json...",
		Short: "Wall-slip correction over capillaries of one length",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := loadAllSets(args)
			if err != nil {
				return err
			}
			res, err := rheobench.MooneyCorrect(sets, rheobench.MooneyOptions{
				CorrectionOptions: rheobench.CorrectionOptions{
					Targets: a.cfg.Grid.Targets,
					Logger:  a.logger,
				},
				StressTargets: targets,
			})
			if res != nil {
				printMooney(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return err
			}
			return writeCurve(out, res.Curve)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the corrected curve as CSV")
	cmd.Flags().Float64SliceVar(&targets, "stress", nil, "wall-stress targets in Pa (default: geometric grid over the overlap)")
	return cmd
}

func writeCurve(path string, curve rheobench.CorrectedCurve) error {
	if path == "" {
		return nil
	}
	return writeFile(path, func(f *os.File) error {
		return artifact.WriteCurve(f, curve)
	})
}
