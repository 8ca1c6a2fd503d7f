package main

//
// CSV import
//

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/ingest"
)

func convertSubcommand(a *app) *cobra.Command {
	var (
		header     ingest.Header
		transducer string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "convert FILE.csv",
		Short: "Convert a rheometer CSV export into a JSON measurement set",
		Long: `Reads a CSV export in either the historical layout (pressao_bar, massa_g,
tempo_s, ponto) or the current one (pressure_pa, mass_kg, duration_s,
sequence), converts it to SI units and writes a measurement set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mapping *ingest.LinearMap
			if transducer != "" {
				m, err := ingest.ParseLinearMap(transducer)
				if err != nil {
					return err
				}
				mapping = m
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			ds, schema, err := ingest.ReadCSV(f, header, mapping)
			if err != nil {
				return err
			}
			a.logger.Info("measurement set imported",
				"file", args[0],
				"schema", schema.Version,
				"dataset", ds.ID,
				"points", len(ds.Points))

			sets := []rheobench.CapillaryDataset{ds}
			if out == "" {
				return ingest.WriteSets(cmd.OutOrStdout(), sets)
			}
			return writeFile(out, func(f *os.File) error {
				return ingest.WriteSets(f, sets)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&header.ID, "id", "", "dataset ID (default: random UUID)")
	f.Float64Var(&header.DiameterMM, "diameter", 0, "capillary diameter in mm")
	f.Float64Var(&header.LengthMM, "length", 0, "capillary length in mm")
	f.Float64Var(&header.DensityGCM, "density", 0, "fluid density in g/cm³")
	f.StringVar(&transducer, "transducer", "", "raw pressure mapping rawLow,rawHigh,pressureLow,pressureHigh")
	f.StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.MarkFlagRequired("diameter")
	cmd.MarkFlagRequired("length")
	cmd.MarkFlagRequired("density")
	return cmd
}
