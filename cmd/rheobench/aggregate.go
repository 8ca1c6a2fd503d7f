package main

//
// Replicate reproducibility
//

import (
	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
)

func aggregateSubcommand(a *app) *cobra.Command {
	var perSet bool
	cmd := &cobra.Command{
		Use:   "aggregate REPLICATE.json...",
		Short: "Band replicate measurements by shear rate and report their reproducibility",
		Long: `Each file is one replicate; with --per-set every measurement set is its
own replicate. Points are binned by log10 of the wall shear rate, bands are
filtered with Tukey fences and the stress and viscosity CVs are classified.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var replicates [][]rheobench.ProcessedPoint
			for _, path := range args {
				sets, err := loadSets(path)
				if err != nil {
					return err
				}
				if !perSet {
					points, err := a.processAll(sets, nil)
					if err != nil {
						return err
					}
					replicates = append(replicates, points)
					continue
				}
				for _, ds := range sets {
					points, err := a.processAll([]rheobench.CapillaryDataset{ds}, nil)
					if err != nil {
						return err
					}
					replicates = append(replicates, points)
				}
			}

			rep, err := rheobench.Aggregate(replicates, a.cfg.AggregateOptions())
			if err != nil {
				return err
			}
			printReproducibility(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&perSet, "per-set", false, "treat every measurement set as a replicate")
	return cmd
}
