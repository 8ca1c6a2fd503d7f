// Package ingest translates external measurement files into the core's
// CapillaryDataset shape. Every unit conversion and column-name variant is
// resolved here, so the numerical core only ever sees SI values.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexshd/rheobench"
)

// ErrUnknownSchema is returned when a header matches no known schema.
var ErrUnknownSchema = errors.New("unrecognised measurement columns")

// Schema describes one historical layout of a tabular measurement file.
// Scale factors convert column values to Pa, kg and s.
type Schema struct {
	Version  int
	Pressure string
	Mass     string
	Duration string
	// Sequence is optional; rows are numbered 1..n when the column is absent.
	Sequence string

	PressureScale float64
	MassScale     float64
	DurationScale float64
}

var (
	// SchemaV1 is the original acquisition export: bar, grams, seconds.
	SchemaV1 = Schema{
		Version:       1,
		Pressure:      "pressao_bar",
		Mass:          "massa_g",
		Duration:      "tempo_s",
		Sequence:      "ponto",
		PressureScale: 1e5,
		MassScale:     1e-3,
		DurationScale: 1,
	}

	// SchemaV2 is the SI export.
	SchemaV2 = Schema{
		Version:       2,
		Pressure:      "pressure_pa",
		Mass:          "mass_kg",
		Duration:      "duration_s",
		Sequence:      "sequence",
		PressureScale: 1,
		MassScale:     1,
		DurationScale: 1,
	}
)

// Schemas lists the known layouts, newest first.
var Schemas = []Schema{SchemaV2, SchemaV1}

// columns maps the schema's fields to positions in header, -1 when absent.
func (s Schema) columns(header []string) (pressure, mass, duration, sequence int, ok bool) {
	index := map[string]int{}
	for i, h := range header {
		index[normalizeColumn(h)] = i
	}
	find := func(name string) int {
		if i, ok := index[name]; ok && name != "" {
			return i
		}
		return -1
	}
	pressure, mass, duration, sequence = find(s.Pressure), find(s.Mass), find(s.Duration), find(s.Sequence)
	return pressure, mass, duration, sequence, pressure >= 0 && mass >= 0 && duration >= 0
}

// DetectSchema returns the first schema whose required columns all appear in header.
func DetectSchema(header []string) (Schema, error) {
	for _, s := range Schemas {
		if _, _, _, _, ok := s.columns(header); ok {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("%w: %s", ErrUnknownSchema, strings.Join(header, ","))
}

func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// ReadCSV reads the trials of one capillary from a comma-separated file with
// a header row. The schema is detected from the header; values are converted
// to SI. A non-nil mapping converts the pressure column from raw
// transducer readings before the schema scale is applied.
func ReadCSV(r io.Reader, header Header, mapping *LinearMap) (rheobench.CapillaryDataset, Schema, error) {
	ds, err := header.Dataset()
	if err != nil {
		return rheobench.CapillaryDataset{}, Schema{}, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cols, err := cr.Read()
	if err != nil {
		return rheobench.CapillaryDataset{}, Schema{}, fmt.Errorf("reading header: %w", err)
	}
	schema, err := DetectSchema(cols)
	if err != nil {
		return rheobench.CapillaryDataset{}, Schema{}, err
	}
	pi, mi, di, si, _ := schema.columns(cols)

	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rheobench.CapillaryDataset{}, schema, fmt.Errorf("row %d: %w", row, err)
		}

		field := func(i int, name string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return 0, fmt.Errorf("row %d column %s: %w", row, name, err)
			}
			return v, nil
		}
		pressure, err := field(pi, schema.Pressure)
		if err != nil {
			return rheobench.CapillaryDataset{}, schema, err
		}
		mass, err := field(mi, schema.Mass)
		if err != nil {
			return rheobench.CapillaryDataset{}, schema, err
		}
		duration, err := field(di, schema.Duration)
		if err != nil {
			return rheobench.CapillaryDataset{}, schema, err
		}
		seq := row
		if si >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(rec[si]))
			if err != nil {
				return rheobench.CapillaryDataset{}, schema, fmt.Errorf("row %d column %s: %w", row, schema.Sequence, err)
			}
			seq = n
		}

		if mapping != nil {
			pressure = mapping.Map(pressure)
		}
		ds.Points = append(ds.Points, rheobench.MeasurementPoint{
			Pressure: pressure * schema.PressureScale,
			Mass:     mass * schema.MassScale,
			Duration: duration * schema.DurationScale,
			Sequence: seq,
		})
	}

	return ds, schema, nil
}

// WriteCSV writes ds in the SchemaV2 layout.
func WriteCSV(w io.Writer, ds rheobench.CapillaryDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{SchemaV2.Sequence, SchemaV2.Pressure, SchemaV2.Mass, SchemaV2.Duration}); err != nil {
		return err
	}
	for _, p := range ds.Points {
		rec := []string{
			strconv.Itoa(p.Sequence),
			strconv.FormatFloat(p.Pressure, 'g', -1, 64),
			strconv.FormatFloat(p.Mass, 'g', -1, 64),
			strconv.FormatFloat(p.Duration, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
