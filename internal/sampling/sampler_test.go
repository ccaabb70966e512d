package sampling

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestSampleWithOverlap_Properties(t *testing.T) {
	r := newRand(1)

	tests := []struct {
		name       string
		population int
		cohort     int
		background int
		overlap    float64
	}{
		{name: "half overlap", population: 100, cohort: 10, background: 10, overlap: 0.5},
		{name: "no overlap", population: 100, cohort: 30, background: 40, overlap: 0},
		{name: "full overlap", population: 50, cohort: 20, background: 30, overlap: 1},
		{name: "rounding up", population: 200, cohort: 7, background: 20, overlap: 0.5},
		{name: "whole population", population: 20, cohort: 20, background: 20, overlap: 1},
		{name: "tight fit", population: 25, cohort: 10, background: 20, overlap: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				cohort, background, err := SampleWithOverlap(r, tt.population, tt.cohort, tt.background, tt.overlap)
				require.NoError(t, err)
				assert.Equal(t, tt.cohort, cohort.Len())
				assert.Equal(t, tt.background, background.Len())
				assert.Equal(t, SharedCount(tt.cohort, tt.overlap), cohort.Intersect(background))
				for _, id := range append(cohort, background...) {
					assert.True(t, id >= 0 && id < tt.population)
				}
			}
		})
	}
}

func TestSampleWithOverlap_Scenario(t *testing.T) {
	cohort, background, err := SampleWithOverlap(newRand(7), 100, 10, 10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 5, cohort.Intersect(background))
}

func TestSampleWithOverlap_ConfigErrors(t *testing.T) {
	r := newRand(3)

	tests := []struct {
		name       string
		population int
		cohort     int
		background int
		overlap    float64
	}{
		{name: "background plus distinct too large", population: 20, cohort: 10, background: 16, overlap: 0.5},
		{name: "cohort exceeds population", population: 5, cohort: 10, background: 2, overlap: 1},
		{name: "overlap out of range", population: 100, cohort: 10, background: 10, overlap: 1.5},
		{name: "background smaller than shared", population: 100, cohort: 10, background: 3, overlap: 0.5},
		{name: "zero cohort", population: 100, cohort: 0, background: 3, overlap: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SampleWithOverlap(r, tt.population, tt.cohort, tt.background, tt.overlap)
			assert.ErrorIs(t, err, ErrSampleConfig)
		})
	}
}

func TestSubSample(t *testing.T) {
	r := newRand(11)
	set := NewIDSet(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	for i := 0; i < 2; i++ {
		assert.Equal(t, set, SubSample(r, set, 20))
	}

	sub := SubSample(r, set, 4)
	assert.Equal(t, 4, sub.Len())
	for _, id := range sub {
		assert.True(t, set.Contains(id))
	}

	assert.Empty(t, SubSample(r, set, 0))
}

func TestRemoveTarget(t *testing.T) {
	set := NewIDSet(1, 2, 3)

	out := RemoveTarget(set, 2)
	assert.False(t, out.Contains(2))
	assert.Equal(t, 2, out.Len())
	assert.True(t, set.Contains(2), "input must not be mutated")

	same := RemoveTarget(set, 9)
	assert.Equal(t, set, same)
}

func TestWithTarget(t *testing.T) {
	r := newRand(5)
	set := NewIDSet(10, 20, 30, 40)

	for i := 0; i < 20; i++ {
		out, err := WithTarget(r, set, 99)
		require.NoError(t, err)
		assert.True(t, out.Contains(99))
		assert.Equal(t, set.Len(), out.Len())
		assert.Equal(t, set.Len()-1, out.Intersect(set))
	}

	already, err := WithTarget(r, set, 20)
	require.NoError(t, err)
	assert.Equal(t, set, already)

	_, err = WithTarget(r, IDSet{}, 1)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestNewIDSet_SortsAndDeduplicates(t *testing.T) {
	assert.Equal(t, IDSet{1, 2, 5}, NewIDSet(5, 1, 2, 5))
}
