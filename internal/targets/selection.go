// Package targets selects the records whose membership is attacked and
// scores how far each record lies from the quasi-identifier centroid.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

var (
	// ErrNoQuasiIdentifiers is returned when distances cannot be computed
	ErrNoQuasiIdentifiers = errors.New("target selection needs at least one quasi-identifier")

	// ErrTargetCount is returned when more targets are requested than records exist
	ErrTargetCount = errors.New("invalid target count")
)

// Ranked is a record id with its normalized centroid distance
type Ranked struct {
	ID       int
	Distance float64
}

// Selection holds the centroid distance of every record of a population
type Selection struct {
	distances []float64
	lo, hi    float64
}

// New computes centroid distances over the quasi-identifiers of d. Numeric
// attributes are min-max normalized, categorical values are replaced by their
// relative frequency and the centroid takes the highest frequency.
func New(d *dataset.Dataset) (*Selection, error) {
	qis := d.Definition().QuasiIdentifiers()
	if len(qis) == 0 {
		return nil, ErrNoQuasiIdentifiers
	}

	rows := d.NumRows()
	vectors := make([][]float64, rows)
	for i := range vectors {
		vectors[i] = make([]float64, len(qis))
	}

	centroid := make([]float64, len(qis))
	for j, qi := range qis {
		col := d.Column(qi.Name)
		if qi.IsCategorical() {
			counts := make(map[string]int)
			for row := 0; row < rows; row++ {
				counts[d.Value(row, col)]++
			}
			for row := 0; row < rows; row++ {
				vectors[row][j] = float64(counts[d.Value(row, col)]) / float64(rows)
				centroid[j] = math.Max(centroid[j], vectors[row][j])
			}
			continue
		}

		values := make([]float64, rows)
		lo, hi := math.Inf(1), math.Inf(-1)
		for row := 0; row < rows; row++ {
			v, ok := qi.Numeric(d.Value(row, col))
			if !ok {
				v = math.NaN()
			}
			values[row] = v
			if ok {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
		for row, v := range values {
			norm := 0.0
			if !math.IsNaN(v) && hi > lo {
				norm = (v - lo) / (hi - lo)
			}
			vectors[row][j] = norm
			centroid[j] += norm
		}
		if rows > 0 {
			centroid[j] /= float64(rows)
		}
	}

	s := &Selection{
		distances: make([]float64, rows),
		lo:        math.Inf(1),
		hi:        math.Inf(-1),
	}
	for row, vec := range vectors {
		sum := 0.0
		for j, v := range vec {
			sum += (v - centroid[j]) * (v - centroid[j])
		}
		s.distances[row] = math.Sqrt(sum)
		s.lo = math.Min(s.lo, s.distances[row])
		s.hi = math.Max(s.hi, s.distances[row])
	}
	return s, nil
}

// Len returns the population size
func (s *Selection) Len() int {
	return len(s.distances)
}

// Distance returns the normalized distance of a record, 0 when all distances are equal
func (s *Selection) Distance(id int) float64 {
	if id < 0 || id >= len(s.distances) || s.hi <= s.lo {
		return 0
	}
	return (s.distances[id] - s.lo) / (s.hi - s.lo)
}

// Ranking returns all records ordered by descending distance, ties by id
func (s *Selection) Ranking() []Ranked {
	out := make([]Ranked, len(s.distances))
	for i := range s.distances {
		out[i] = Ranked{ID: i, Distance: s.Distance(i)}
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		switch {
		case a.Distance > b.Distance:
			return -1
		case a.Distance < b.Distance:
			return 1
		}
		return 0
	})
	return out
}

// Select picks targets according to the target type; the result is sorted ascending
func (s *Selection) Select(r *rand.Rand, targetType string, count int, importFile string) ([]int, error) {
	if targetType == config.TargetImport {
		return Import(importFile, s.Len())
	}
	if count <= 0 || count > s.Len() {
		return nil, fmt.Errorf("%w: %d of %d records", ErrTargetCount, count, s.Len())
	}

	var ids []int
	switch targetType {
	case config.TargetRandom:
		ids = r.Perm(s.Len())[:count]
	case config.TargetOutlier:
		for _, rk := range s.Ranking()[:count] {
			ids = append(ids, rk.ID)
		}
	case config.TargetAverage:
		ranking := s.Ranking()
		slices.Reverse(ranking)
		for _, rk := range ranking[:count] {
			ids = append(ids, rk.ID)
		}
	default:
		return nil, fmt.Errorf("unknown target type %q", targetType)
	}

	slices.Sort(ids)
	return ids, nil
}

// Import reads one record id per line; a trailing ';' and blank lines are ignored
func Import(path string, population int) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets import file: %w", err)
	}
	defer f.Close()

	seen := make(map[int]struct{})
	var ids []int
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		field, _, _ := strings.Cut(text, ";")
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("failed to parse target id on line %d: %w", line, err)
		}
		if id < 0 || id >= population {
			return nil, fmt.Errorf("%w: id %d on line %d outside population of %d", ErrTargetCount, id, line, population)
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets import file: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: import file %s is empty", ErrTargetCount, path)
	}

	slices.Sort(ids)
	return ids, nil
}

// WriteRanking writes "id; distance;" lines in ranking order
func WriteRanking(w io.Writer, ranking []Ranked) error {
	bw := bufio.NewWriter(w)
	for _, rk := range ranking {
		if _, err := fmt.Fprintf(bw, "%d; %s;\n", rk.ID, strconv.FormatFloat(rk.Distance, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
