// Package sampling draws the cohort, background and per-iteration record id
// sets used by the membership inference experiment.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

var (
	// ErrEmptySample is returned when a target is inserted into an empty set
	ErrEmptySample = errors.New("sample must not be empty")

	// ErrSampleConfig is returned when requested sample sizes do not fit the population
	ErrSampleConfig = errors.New("invalid sample configuration")
)

// IDSet is an immutable, ascending, duplicate-free set of record ids
type IDSet []int

// NewIDSet builds a set from arbitrary ids
func NewIDSet(ids ...int) IDSet {
	s := slices.Clone(ids)
	slices.Sort(s)
	return IDSet(slices.Compact(s))
}

// Len returns the cardinality
func (s IDSet) Len() int {
	return len(s)
}

// Contains reports membership
func (s IDSet) Contains(id int) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Intersect counts the ids present in both sets
func (s IDSet) Intersect(other IDSet) int {
	n, i, j := 0, 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			n++
			i++
			j++
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// SharedCount returns round(cohortSize*overlap), the number of ids cohort and background share
func SharedCount(cohortSize int, overlap float64) int {
	return int(math.Round(float64(cohortSize) * overlap))
}

// SampleWithOverlap shuffles the ids [0, populationSize) and takes the first
// cohortSize as cohort and a window of backgroundSize starting at
// cohortSize-SharedCount as background.
func SampleWithOverlap(r *rand.Rand, populationSize, cohortSize, backgroundSize int, overlap float64) (IDSet, IDSet, error) {
	if overlap < 0 || overlap > 1 {
		return nil, nil, fmt.Errorf("%w: overlap %.3f outside [0, 1]", ErrSampleConfig, overlap)
	}
	if cohortSize <= 0 || backgroundSize <= 0 {
		return nil, nil, fmt.Errorf("%w: cohort (%d) and background (%d) sizes must be positive", ErrSampleConfig, cohortSize, backgroundSize)
	}
	if cohortSize > populationSize {
		return nil, nil, fmt.Errorf("%w: cohort size %d exceeds population %d", ErrSampleConfig, cohortSize, populationSize)
	}

	shared := SharedCount(cohortSize, overlap)
	distinct := cohortSize - shared
	if backgroundSize+distinct > populationSize {
		return nil, nil, fmt.Errorf("%w: background size %d plus %d distinct cohort ids exceeds population %d",
			ErrSampleConfig, backgroundSize, distinct, populationSize)
	}
	if backgroundSize < shared {
		return nil, nil, fmt.Errorf("%w: background size %d smaller than %d shared ids", ErrSampleConfig, backgroundSize, shared)
	}

	perm := r.Perm(populationSize)
	cohort := NewIDSet(perm[:cohortSize]...)
	background := NewIDSet(perm[distinct : distinct+backgroundSize]...)

	return cohort, background, nil
}

// SubSample returns a uniformly random subset of size min(n, |s|)
func SubSample(r *rand.Rand, s IDSet, n int) IDSet {
	if n >= len(s) {
		return slices.Clone(s)
	}
	if n <= 0 {
		return IDSet{}
	}

	shuffled := slices.Clone(s)
	r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return NewIDSet(shuffled[:n]...)
}

// RemoveTarget returns a copy of s without id
func RemoveTarget(s IDSet, id int) IDSet {
	out := make(IDSet, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// WithTarget returns a copy of s where one uniformly chosen member is replaced
// by id. The input must not be empty. A set already holding id is returned unchanged.
func WithTarget(r *rand.Rand, s IDSet, id int) (IDSet, error) {
	if len(s) == 0 {
		return nil, ErrEmptySample
	}
	if s.Contains(id) {
		return slices.Clone(s), nil
	}

	victim := r.IntN(len(s))
	out := make([]int, 0, len(s))
	for i, v := range s {
		if i != victim {
			out = append(out, v)
		}
	}
	out = append(out, id)
	return NewIDSet(out...), nil
}
