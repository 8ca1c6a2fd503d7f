package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LinearMap converts a raw transducer reading to pressure through two
// calibration points: RawLow reads PressureLow and RawHigh reads PressureHigh.
// The pressure is in the unit of the file's pressure column.
type LinearMap struct {
	RawLow       float64
	RawHigh      float64
	PressureLow  float64
	PressureHigh float64
}

// Validate rejects a map whose two raw readings coincide.
func (m LinearMap) Validate() error {
	if m.RawHigh == m.RawLow {
		return errors.New("transducer map needs two distinct raw readings")
	}
	return nil
}

// Map returns the pressure for a raw reading, extrapolating outside the
// calibration points.
func (m LinearMap) Map(raw float64) float64 {
	slope := (m.PressureHigh - m.PressureLow) / (m.RawHigh - m.RawLow)
	return m.PressureLow + slope*(raw-m.RawLow)
}

// ParseLinearMap parses "rawLow,rawHigh,pressureLow,pressureHigh".
func ParseLinearMap(s string) (*LinearMap, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("transducer map %q: want rawLow,rawHigh,pressureLow,pressureHigh", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("transducer map %q: %w", s, err)
		}
		v[i] = f
	}
	m := &LinearMap{RawLow: v[0], RawHigh: v[1], PressureLow: v[2], PressureHigh: v[3]}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
