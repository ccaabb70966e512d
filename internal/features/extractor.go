// Package features turns an anonymized dataset into the numeric vector the
// membership classifier is trained on.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

// Type names a feature extraction strategy
type Type string

const (
	TypeNaive       Type = "NAIVE"
	TypeHistogram   Type = "HISTOGRAM"
	TypeEnsemble    Type = "ENSEMBLE"
	TypeCorrelation Type = "CORRELATION"
)

// HistogramBins is the number of equal-width bins used for numeric attributes
const HistogramBins = 10

var (
	// ErrUnknownFeatureType is returned for feature type names without an extractor
	ErrUnknownFeatureType = errors.New("unknown feature type")

	// ErrDegenerateRange is returned when a numeric attribute has min equal to max
	ErrDegenerateRange = errors.New("attribute min and max are equal")
)

// Feature is an extracted feature whose vector is materialized on demand.
// Vectors are read only after every sample of a job has been extracted, so
// that codes first seen in a later sample still get a slot in earlier ones.
type Feature interface {
	Vector() []float64
}

// Vector is a feature with a fixed layout
type Vector []float64

// Vector implements Feature
func (v Vector) Vector() []float64 {
	return v
}

// Extractor computes a feature. The dictionary is owned by the calling
// job and may gain new codes during extraction.
type Extractor interface {
	Extract(d *dataset.Dataset, attributes []string, dict *Dictionary) (Feature, error)
}

// New returns the extractor for a feature type name
func New(name string) (Extractor, error) {
	switch Type(strings.ToUpper(name)) {
	case TypeNaive:
		return Naive{}, nil
	case TypeHistogram:
		return Histogram{Bins: HistogramBins}, nil
	case TypeEnsemble:
		return Ensemble{Parts: []Extractor{Naive{}, Histogram{Bins: HistogramBins}}}, nil
	case TypeCorrelation:
		return nil, fmt.Errorf("%w: %s is not implemented", ErrUnknownFeatureType, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeatureType, name)
	}
}

// considered returns the included attributes named in attributes, in definition order
func considered(d *dataset.Dataset, attributes []string) []*dataset.Attribute {
	var out []*dataset.Attribute
	for _, a := range d.Definition().Included() {
		if slices.Contains(attributes, a.Name) {
			out = append(out, a)
		}
	}
	return out
}

// Naive emits three values per attribute, attributes sorted by name.
// Categorical: least frequent code, most frequent code, distinct count.
// Numeric: mean, median, sample variance.
type Naive struct{}

// Extract implements Extractor
func (Naive) Extract(d *dataset.Dataset, attributes []string, dict *Dictionary) (Feature, error) {
	attrs := considered(d, attributes)
	slices.SortFunc(attrs, func(a, b *dataset.Attribute) int {
		return strings.Compare(a.Name, b.Name)
	})

	out := make([]float64, 0, 3*len(attrs))
	for _, a := range attrs {
		col := d.Column(a.Name)
		if a.IsCategorical() {
			out = append(out, frequencies(d, a, col, dict)...)
			continue
		}
		out = append(out, moments(d, a, col)...)
	}
	return Vector(out), nil
}

func frequencies(d *dataset.Dataset, a *dataset.Attribute, col int, dict *Dictionary) []float64 {
	counts := make(map[string]int)
	var order []string
	for row := 0; row < d.NumRows(); row++ {
		v := d.Value(row, col)
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	if len(order) == 0 {
		return []float64{0, 0, 0}
	}

	// ties resolve to the value seen first
	least, most := order[0], order[0]
	for _, v := range order {
		dict.Probe(a.Name, v)
		if counts[v] < counts[least] {
			least = v
		}
		if counts[v] > counts[most] {
			most = v
		}
	}
	return []float64{
		float64(dict.Probe(a.Name, least)),
		float64(dict.Probe(a.Name, most)),
		float64(len(counts)),
	}
}

func moments(d *dataset.Dataset, a *dataset.Attribute, col int) []float64 {
	var values []float64
	for row := 0; row < d.NumRows(); row++ {
		if d.IsSuppressed(row) {
			continue
		}
		if v, ok := a.Numeric(d.Value(row, col)); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return []float64{0, 0, 0}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	if len(values) > 1 {
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(values) - 1)
	}

	return []float64{mean, Median(values), variance}
}

// Median returns the median of values; values is reordered
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

// Histogram emits equal-width bin counts for numeric attributes followed by
// per-code frequencies for categorical attributes, each group in definition order.
// Categorical vectors are sized by the dictionary when the vector is read.
type Histogram struct {
	Bins int
}

type histogram struct {
	numeric []float64
	names   []string
	counts  []map[int]float64
	dict    *Dictionary
}

func (h *histogram) Vector() []float64 {
	out := slices.Clone(h.numeric)
	for i, name := range h.names {
		vec := make([]float64, h.dict.Size(name))
		for code, n := range h.counts[i] {
			vec[code] = n
		}
		out = append(out, vec...)
	}
	return out
}

// Extract implements Extractor
func (h Histogram) Extract(d *dataset.Dataset, attributes []string, dict *Dictionary) (Feature, error) {
	bins := h.Bins
	if bins <= 0 {
		bins = HistogramBins
	}

	f := &histogram{dict: dict}
	for _, a := range considered(d, attributes) {
		if a.IsCategorical() {
			col := d.Column(a.Name)
			counts := make(map[int]float64)
			for row := 0; row < d.NumRows(); row++ {
				counts[dict.Probe(a.Name, d.Value(row, col))]++
			}
			f.names = append(f.names, a.Name)
			f.counts = append(f.counts, counts)
			continue
		}
		freqs, err := binCounts(d, a, bins)
		if err != nil {
			return nil, err
		}
		f.numeric = append(f.numeric, freqs...)
	}
	return f, nil
}

func binCounts(d *dataset.Dataset, a *dataset.Attribute, bins int) ([]float64, error) {
	if a.Min == nil || a.Max == nil {
		return nil, fmt.Errorf("attribute %s needs min and max for histogram features", a.Name)
	}
	lo, hi := *a.Min, *a.Max
	if math.Abs(hi-lo) < 1e-6 {
		return nil, fmt.Errorf("%w: %s", ErrDegenerateRange, a.Name)
	}

	width := (hi - lo) / float64(bins)
	freqs := make([]float64, bins)
	col := d.Column(a.Name)
	for row := 0; row < d.NumRows(); row++ {
		if d.IsSuppressed(row) {
			continue
		}
		v, ok := a.Numeric(d.Value(row, col))
		if !ok {
			continue
		}
		bin := int((v - lo) / width)
		bin = max(0, min(bin, bins-1))
		freqs[bin]++
	}
	return freqs, nil
}

// Ensemble concatenates the vectors of its parts
type Ensemble struct {
	Parts []Extractor
}

type ensemble []Feature

func (e ensemble) Vector() []float64 {
	var out []float64
	for _, f := range e {
		out = append(out, f.Vector()...)
	}
	return out
}

// Extract implements Extractor
func (e Ensemble) Extract(d *dataset.Dataset, attributes []string, dict *Dictionary) (Feature, error) {
	parts := make(ensemble, 0, len(e.Parts))
	for _, p := range e.Parts {
		f, err := p.Extract(d, attributes, dict)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	return parts, nil
}
