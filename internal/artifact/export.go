package artifact

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/alexshd/rheobench"
)

// ResultColumns is the header of the tabular results export.
var ResultColumns = []string{
	"source",
	"sequence",
	"diameter_mm",
	"length_mm",
	"pressure_pa",
	"mass_kg",
	"duration_s",
	"tau_wall_pa",
	"shear_rate_apparent",
	"viscosity_apparent_pa_s",
	"shear_rate_wall",
	"viscosity_pa_s",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// WriteResults writes one row per retained point.
func WriteResults(w io.Writer, points []rheobench.ProcessedPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			p.Source,
			strconv.Itoa(p.Sequence),
			formatFloat(p.Geometry.Diameter),
			formatFloat(p.Geometry.Length),
			formatFloat(p.Pressure),
			formatFloat(p.Mass),
			formatFloat(p.Duration),
			formatFloat(p.Stress),
			formatFloat(p.ApparentShearRate),
			formatFloat(p.ApparentViscosity),
			formatFloat(p.ShearRate),
			formatFloat(p.Viscosity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCurve writes a corrected curve with its viscosity column.
func WriteCurve(w io.Writer, curve rheobench.CorrectedCurve) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"shear_rate_wall", "tau_wall_pa", "viscosity_pa_s"}); err != nil {
		return err
	}
	visc := curve.Viscosity()
	for i := range curve.ShearRate {
		if err := cw.Write([]string{
			formatFloat(curve.ShearRate[i]),
			formatFloat(curve.Stress[i]),
			formatFloat(visc[i]),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
