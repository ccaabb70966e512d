// Package statistics computes the quality statistics recorded for every
// anonymized test sample.
package statistics

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// Header lists the result log columns produced by Snapshot.Fields
var Header = []string{
	"Granularity",
	"GranularityCategoricalAttributes",
	"Entropy",
	"Discernibility",
	"MaximalEquivalenceClassSize",
	"AverageEquivalenceClassSize",
	"MinimalEquivalenceClassSize",
	"NumberOfSuppressedRecords",
	"LocationAndLimits",
	"ClassificationAccuracy",
}

// Snapshot is the immutable set of quality statistics of one anonymized dataset
type Snapshot struct {
	Granularity                      float64 `yaml:"granularity"`
	GranularityCategoricalAttributes float64 `yaml:"granularityCategoricalAttributes"`
	Entropy                          float64 `yaml:"entropy"`
	Discernibility                   float64 `yaml:"discernibility"`
	MaximalEquivalenceClassSize      float64 `yaml:"maximalEquivalenceClassSize"`
	AverageEquivalenceClassSize      float64 `yaml:"averageEquivalenceClassSize"`
	MinimalEquivalenceClassSize      float64 `yaml:"minimalEquivalenceClassSize"`
	NumberOfSuppressedRecords        float64 `yaml:"numberOfSuppressedRecords"`
	LocationAndLimits                string  `yaml:"locationAndLimits"`
	ClassificationAccuracy           float64 `yaml:"classificationAccuracy"`
}

// Fields formats the statistics in Header order
func (s Snapshot) Fields() []string {
	return []string{
		formatDouble(s.Granularity),
		formatDouble(s.GranularityCategoricalAttributes),
		formatDouble(s.Entropy),
		formatDouble(s.Discernibility),
		formatDouble(s.MaximalEquivalenceClassSize),
		formatDouble(s.AverageEquivalenceClassSize),
		formatDouble(s.MinimalEquivalenceClassSize),
		formatDouble(s.NumberOfSuppressedRecords),
		s.LocationAndLimits,
		formatDouble(s.ClassificationAccuracy),
	}
}

// String joins Fields with the log delimiter
func (s Snapshot) String() string {
	return strings.Join(s.Fields(), ";")
}

// Encode writes the snapshot in the .statistics file format
func (s Snapshot) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(encoded(s)); err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	return enc.Close()
}

// Decode reads a snapshot written by Encode
func Decode(r io.Reader) (Snapshot, error) {
	var e encodedSnapshot
	if err := yaml.NewDecoder(r).Decode(&e); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode statistics: %w", err)
	}
	return e.snapshot()
}

// encodedSnapshot stores floats as strings so NaN survives the round trip
type encodedSnapshot struct {
	Granularity                      string `yaml:"granularity"`
	GranularityCategoricalAttributes string `yaml:"granularityCategoricalAttributes"`
	Entropy                          string `yaml:"entropy"`
	Discernibility                   string `yaml:"discernibility"`
	MaximalEquivalenceClassSize      string `yaml:"maximalEquivalenceClassSize"`
	AverageEquivalenceClassSize      string `yaml:"averageEquivalenceClassSize"`
	MinimalEquivalenceClassSize      string `yaml:"minimalEquivalenceClassSize"`
	NumberOfSuppressedRecords        string `yaml:"numberOfSuppressedRecords"`
	LocationAndLimits                string `yaml:"locationAndLimits"`
	ClassificationAccuracy           string `yaml:"classificationAccuracy"`
}

func encoded(s Snapshot) encodedSnapshot {
	f := func(v float64) string { return fmt.Sprintf("%g", v) }
	return encodedSnapshot{
		Granularity:                      f(s.Granularity),
		GranularityCategoricalAttributes: f(s.GranularityCategoricalAttributes),
		Entropy:                          f(s.Entropy),
		Discernibility:                   f(s.Discernibility),
		MaximalEquivalenceClassSize:      f(s.MaximalEquivalenceClassSize),
		AverageEquivalenceClassSize:      f(s.AverageEquivalenceClassSize),
		MinimalEquivalenceClassSize:      f(s.MinimalEquivalenceClassSize),
		NumberOfSuppressedRecords:        f(s.NumberOfSuppressedRecords),
		LocationAndLimits:                s.LocationAndLimits,
		ClassificationAccuracy:           f(s.ClassificationAccuracy),
	}
}

func (e encodedSnapshot) snapshot() (Snapshot, error) {
	var s Snapshot
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"granularity", e.Granularity, &s.Granularity},
		{"granularityCategoricalAttributes", e.GranularityCategoricalAttributes, &s.GranularityCategoricalAttributes},
		{"entropy", e.Entropy, &s.Entropy},
		{"discernibility", e.Discernibility, &s.Discernibility},
		{"maximalEquivalenceClassSize", e.MaximalEquivalenceClassSize, &s.MaximalEquivalenceClassSize},
		{"averageEquivalenceClassSize", e.AverageEquivalenceClassSize, &s.AverageEquivalenceClassSize},
		{"minimalEquivalenceClassSize", e.MinimalEquivalenceClassSize, &s.MinimalEquivalenceClassSize},
		{"numberOfSuppressedRecords", e.NumberOfSuppressedRecords, &s.NumberOfSuppressedRecords},
		{"classificationAccuracy", e.ClassificationAccuracy, &s.ClassificationAccuracy},
	}
	for _, f := range fields {
		if f.raw == "" {
			return Snapshot{}, fmt.Errorf("missing statistics field %s", f.name)
		}
		if _, err := fmt.Sscan(f.raw, f.dst); err != nil {
			if strings.EqualFold(f.raw, "NaN") {
				*f.dst = math.NaN()
				continue
			}
			return Snapshot{}, fmt.Errorf("invalid statistics field %s: %w", f.name, err)
		}
	}
	s.LocationAndLimits = e.LocationAndLimits
	return s, nil
}

func formatDouble(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", v)
}
