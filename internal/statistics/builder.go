package statistics

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

const keySeparator = "\x1f"

// Compute derives the quality statistics of anon, an anonymized copy of raw with identical row order
func Compute(ctx *Context, raw, anon *dataset.Dataset) (Snapshot, error) {
	if raw.NumRows() != anon.NumRows() {
		return Snapshot{}, fmt.Errorf("raw dataset has %d rows, anonymized dataset has %d", raw.NumRows(), anon.NumRows())
	}

	classes := equivalenceClasses(ctx.qis, anon)
	suppressed := anon.SuppressedCount()
	n := float64(anon.NumRows())

	s := Snapshot{
		NumberOfSuppressedRecords: float64(suppressed),
		ClassificationAccuracy:    -1,
	}

	if len(classes) > 0 {
		minSize, maxSize, total := math.MaxInt, 0, 0
		for _, size := range classes {
			minSize = min(minSize, size)
			maxSize = max(maxSize, size)
			total += size
		}
		s.MinimalEquivalenceClassSize = float64(minSize)
		s.MaximalEquivalenceClassSize = float64(maxSize)
		s.AverageEquivalenceClassSize = float64(total) / float64(len(classes))
	}

	discernibility := float64(suppressed) * n
	for _, size := range classes {
		discernibility += float64(size) * float64(size)
	}
	s.Discernibility = discernibility

	s.Granularity = granularity(ctx.qis, raw, anon)
	s.GranularityCategoricalAttributes = granularity(ctx.categorical, raw, anon)
	s.Entropy = conditionalEntropy(ctx.qis, raw, anon)

	location, err := locationAndLimits(ctx.continuous, raw, anon)
	if err != nil {
		return Snapshot{}, err
	}
	s.LocationAndLimits = location

	if ctx.HasClassification() {
		s.ClassificationAccuracy = classificationAccuracy(ctx, raw, anon)
	}

	return s, nil
}

func rowKey(attrs []*dataset.Attribute, d *dataset.Dataset, row int) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = d.Value(row, d.Column(a.Name))
	}
	return strings.Join(parts, keySeparator)
}

func equivalenceClasses(qis []*dataset.Attribute, anon *dataset.Dataset) map[string]int {
	classes := make(map[string]int)
	for row := 0; row < anon.NumRows(); row++ {
		if anon.IsSuppressed(row) {
			continue
		}
		classes[rowKey(qis, anon, row)]++
	}
	return classes
}

// granularity is the mean relative generalization level over attrs and records
func granularity(attrs []*dataset.Attribute, raw, anon *dataset.Dataset) float64 {
	if len(attrs) == 0 || anon.NumRows() == 0 {
		return math.NaN()
	}

	total := 0.0
	for _, a := range attrs {
		col := anon.Column(a.Name)
		depth := float64(a.Depth())
		for row := 0; row < anon.NumRows(); row++ {
			if anon.IsSuppressed(row) {
				total++
				continue
			}
			total += float64(a.Level(raw.Value(row, col), anon.Value(row, col))) / depth
		}
	}
	return total / float64(len(attrs)*anon.NumRows())
}

// conditionalEntropy sums H(raw value | anonymized value) in bits over attrs
func conditionalEntropy(attrs []*dataset.Attribute, raw, anon *dataset.Dataset) float64 {
	n := float64(anon.NumRows())
	if n == 0 {
		return 0
	}

	total := 0.0
	for _, a := range attrs {
		col := anon.Column(a.Name)
		joint := make(map[string]map[string]int)
		for row := 0; row < anon.NumRows(); row++ {
			g := anon.Value(row, col)
			if joint[g] == nil {
				joint[g] = make(map[string]int)
			}
			joint[g][raw.Value(row, col)]++
		}
		for _, counts := range joint {
			groupSize := 0
			for _, c := range counts {
				groupSize += c
			}
			for _, c := range counts {
				p := float64(c) / float64(groupSize)
				total -= float64(c) / n * math.Log2(p)
			}
		}
	}
	return total
}

type summary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"aMean"`
	Median float64 `json:"median"`
}

type limits struct {
	Raw        *summary `json:"raw,omitempty"`
	Anonymized *summary `json:"anonymized,omitempty"`
}

func summarize(values []float64) *summary {
	if len(values) == 0 {
		return nil
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return &summary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / float64(len(sorted)),
		Median: median,
	}
}

func locationAndLimits(attrs []*dataset.Attribute, raw, anon *dataset.Dataset) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}

	out := make(map[string]limits, len(attrs))
	for _, a := range attrs {
		col := anon.Column(a.Name)
		var rawValues, anonValues []float64
		for row := 0; row < anon.NumRows(); row++ {
			if v, ok := a.Numeric(raw.Value(row, col)); ok {
				rawValues = append(rawValues, v)
			}
			if anon.IsSuppressed(row) {
				continue
			}
			if v, ok := a.Numeric(anon.Value(row, col)); ok {
				anonValues = append(anonValues, v)
			}
		}
		out[a.Name] = limits{Raw: summarize(rawValues), Anonymized: summarize(anonValues)}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode location and limits: %w", err)
	}
	return string(data), nil
}

// classificationAccuracy predicts the target attribute from the anonymized
// feature attributes by majority vote per feature combination and scores it
// against the raw target values.
func classificationAccuracy(ctx *Context, raw, anon *dataset.Dataset) float64 {
	targetCol := anon.Column(ctx.target)
	featureCols := make([]int, len(ctx.features))
	for i, f := range ctx.features {
		featureCols[i] = anon.Column(f)
	}

	key := func(row int) string {
		parts := make([]string, len(featureCols))
		for i, col := range featureCols {
			parts[i] = anon.Value(row, col)
		}
		return strings.Join(parts, keySeparator)
	}

	votes := make(map[string]map[string]int)
	for row := 0; row < anon.NumRows(); row++ {
		if anon.IsSuppressed(row) {
			continue
		}
		k := key(row)
		if votes[k] == nil {
			votes[k] = make(map[string]int)
		}
		votes[k][anon.Value(row, targetCol)]++
	}

	majority := make(map[string]string, len(votes))
	for k, counts := range votes {
		best, bestCount := "", -1
		for value, c := range counts {
			if c > bestCount || (c == bestCount && value < best) {
				best, bestCount = value, c
			}
		}
		majority[k] = best
	}

	correct, total := 0, 0
	for row := 0; row < anon.NumRows(); row++ {
		if anon.IsSuppressed(row) {
			continue
		}
		total++
		if majority[key(row)] == raw.Value(row, targetCol) {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
