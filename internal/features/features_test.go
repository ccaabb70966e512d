package features

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

func ptr(v float64) *float64 { return &v }

func sample(t *testing.T, csv string) *dataset.Dataset {
	t.Helper()
	def, err := dataset.NewDefinition(&config.DataConfig{
		DataSetName: "people",
		DataCsvFile: "people.csv",
		AttributeConfigs: []config.AttributeConfig{
			{Name: "sex", DataType: config.DataTypeCategorical, Type: config.AttributeQuasiIdentifying, Include: true,
				PossibleEntries: []string{"m", "f"}},
			{Name: "age", DataType: config.DataTypeContinuous, Type: config.AttributeQuasiIdentifying, Include: true,
				Min: ptr(0), Max: ptr(100)},
			{Name: "zip", DataType: config.DataTypeCategorical, Type: config.AttributeInsensitive, Include: false},
		},
	})
	require.NoError(t, err)

	d, err := dataset.Read(strings.NewReader(csv), def)
	require.NoError(t, err)
	return d
}

const people = "sex;age;zip\nm;20;1\nm;30;2\nf;45;3\nm;95;4\n"

func TestDictionary(t *testing.T) {
	d := NewDictionary(nil)
	assert.Equal(t, 0, d.Probe("sex", "m"))
	assert.Equal(t, 1, d.Probe("sex", "f"))
	assert.Equal(t, 0, d.Probe("sex", "m"))
	assert.Equal(t, 2, d.Size("sex"))
	assert.Equal(t, 0, d.Size("unknown"))

	clone := d.Clone()
	clone.Probe("sex", "x")
	assert.Equal(t, 3, clone.Size("sex"))
	assert.Equal(t, 2, d.Size("sex"), "clone must not share codes with its source")
}

func TestNewDictionary_Prefilled(t *testing.T) {
	d := sample(t, people)
	dict := NewDictionary(d.Definition())

	// m, f and the suppression value
	assert.Equal(t, 3, dict.Size("sex"))
	assert.Equal(t, 0, dict.Probe("sex", "m"))
	assert.Equal(t, 0, dict.Size("zip"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "NAIVE"},
		{name: "histogram"},
		{name: "ENSEMBLE"},
		{name: "CORRELATION", wantErr: true},
		{name: "FANCY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFeatureType)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestNaive(t *testing.T) {
	d := sample(t, people)
	dict := NewDictionary(d.Definition())

	f, err := Naive{}.Extract(d, []string{"sex", "age", "zip"}, dict)
	require.NoError(t, err)

	// age first (sorted by name): mean, median, variance; then sex; zip is excluded
	vec := f.Vector()
	require.Len(t, vec, 6)
	assert.InDelta(t, 47.5, vec[0], 1e-9)
	assert.InDelta(t, 37.5, vec[1], 1e-9)
	assert.InDelta(t, 1108.333333, vec[2], 1e-6)
	assert.Equal(t, []float64{1, 0, 2}, vec[3:])
}

func TestHistogram(t *testing.T) {
	d := sample(t, people)
	dict := NewDictionary(d.Definition())

	f, err := Histogram{Bins: 10}.Extract(d, []string{"sex", "age"}, dict)
	require.NoError(t, err)

	vec := f.Vector()
	require.Len(t, vec, 10+3)
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 0, 0, 0, 0, 1}, vec[:10])
	assert.Equal(t, []float64{3, 1, 0}, vec[10:])
}

func TestHistogram_GrowsWithDictionary(t *testing.T) {
	first := sample(t, people)
	second := sample(t, "sex;age;zip\nx;20;1\n")
	dict := NewDictionary(first.Definition())

	f1, err := Histogram{}.Extract(first, []string{"sex"}, dict)
	require.NoError(t, err)
	f2, err := Histogram{}.Extract(second, []string{"sex"}, dict)
	require.NoError(t, err)

	assert.Len(t, f1.Vector(), 4)
	assert.Len(t, f2.Vector(), 4)
}

func TestHistogram_DegenerateRange(t *testing.T) {
	def, err := dataset.NewDefinition(&config.DataConfig{
		DataSetName: "flat",
		AttributeConfigs: []config.AttributeConfig{
			{Name: "age", DataType: config.DataTypeContinuous, Type: config.AttributeQuasiIdentifying, Include: true,
				Min: ptr(5), Max: ptr(5)},
		},
	})
	require.NoError(t, err)
	d, err := dataset.Read(strings.NewReader("age\n5\n"), def)
	require.NoError(t, err)

	_, err = Histogram{}.Extract(d, []string{"age"}, NewDictionary(def))
	assert.ErrorIs(t, err, ErrDegenerateRange)
}

func TestEnsemble(t *testing.T) {
	d := sample(t, people)
	e, err := New("ENSEMBLE")
	require.NoError(t, err)

	f, err := e.Extract(d, []string{"sex", "age"}, NewDictionary(d.Definition()))
	require.NoError(t, err)
	assert.Len(t, f.Vector(), 6+13)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(Median(nil)))
}
