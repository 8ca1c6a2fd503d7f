package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/alexshd/rheobench"
)

// Header is the capillary description that accompanies a measurement set.
// Density is in g/cm³, the unit operators enter it in.
type Header struct {
	ID         string  `json:"id,omitempty"`
	DiameterMM float64 `json:"capillary_diameter_mm"`
	LengthMM   float64 `json:"capillary_length_mm"`
	DensityGCM float64 `json:"fluid_density_g_cm3"`
}

// Dataset returns an empty dataset for the header with density in kg/m³.
// A missing ID is replaced by a random UUID.
func (h Header) Dataset() (rheobench.CapillaryDataset, error) {
	g := rheobench.CapillaryGeometry{Diameter: h.DiameterMM, Length: h.LengthMM}
	if err := g.Validate(); err != nil {
		return rheobench.CapillaryDataset{}, err
	}
	if !(h.DensityGCM > 0) {
		return rheobench.CapillaryDataset{}, fmt.Errorf("%w: %g g/cm³", rheobench.ErrInvalidDensity, h.DensityGCM)
	}
	id := h.ID
	if id == "" {
		id = uuid.NewString()
	}
	return rheobench.CapillaryDataset{
		ID:       id,
		Geometry: g,
		Density:  h.DensityGCM * 1000,
	}, nil
}

// Record is one trial in a measurement set, in SI units.
type Record struct {
	Pressure float64 `json:"pressure"`
	Mass     float64 `json:"mass"`
	Duration float64 `json:"duration"`
	Sequence int     `json:"sequence_index"`
}

// MeasurementSet is the JSON exchange form of one capillary's trials.
type MeasurementSet struct {
	Header
	Records []Record `json:"records"`
}

// Dataset converts the set to the core shape.
func (m MeasurementSet) Dataset() (rheobench.CapillaryDataset, error) {
	ds, err := m.Header.Dataset()
	if err != nil {
		return ds, err
	}
	ds.Points = make([]rheobench.MeasurementPoint, len(m.Records))
	for i, r := range m.Records {
		ds.Points[i] = rheobench.MeasurementPoint{
			Pressure: r.Pressure,
			Mass:     r.Mass,
			Duration: r.Duration,
			Sequence: r.Sequence,
		}
	}
	return ds, nil
}

// FromDataset is the inverse of MeasurementSet.Dataset.
func FromDataset(ds rheobench.CapillaryDataset) MeasurementSet {
	m := MeasurementSet{
		Header: Header{
			ID:         ds.ID,
			DiameterMM: ds.Geometry.Diameter,
			LengthMM:   ds.Geometry.Length,
			DensityGCM: ds.Density / 1000,
		},
		Records: make([]Record, len(ds.Points)),
	}
	for i, p := range ds.Points {
		m.Records[i] = Record{Pressure: p.Pressure, Mass: p.Mass, Duration: p.Duration, Sequence: p.Sequence}
	}
	return m
}

// ReadSets decodes a JSON document holding either one measurement set or an
// array of them.
func ReadSets(r io.Reader) ([]rheobench.CapillaryDataset, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding measurement sets: %w", err)
	}

	var sets []MeasurementSet
	if err := json.Unmarshal(raw, &sets); err != nil {
		var one MeasurementSet
		if err1 := json.Unmarshal(raw, &one); err1 != nil {
			return nil, fmt.Errorf("decoding measurement sets: %w", errors.Join(err, err1))
		}
		sets = []MeasurementSet{one}
	}

	out := make([]rheobench.CapillaryDataset, 0, len(sets))
	for i, s := range sets {
		ds, err := s.Dataset()
		if err != nil {
			return nil, fmt.Errorf("set %d (%q): %w", i, s.ID, err)
		}
		out = append(out, ds)
	}
	return out, nil
}

// WriteSets encodes datasets as an indented JSON array of measurement sets.
func WriteSets(w io.Writer, datasets []rheobench.CapillaryDataset) error {
	sets := make([]MeasurementSet, len(datasets))
	for i, ds := range datasets {
		sets[i] = FromDataset(ds)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sets)
}
