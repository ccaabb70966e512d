package statistics

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

func fixture(t *testing.T) (*dataset.Definition, *dataset.Dataset) {
	t.Helper()
	def, err := dataset.NewDefinition(&config.DataConfig{
		DataSetName: "people",
		DataCsvFile: "people.csv",
		AttributeConfigs: []config.AttributeConfig{
			{Name: "age", DataType: config.DataTypeContinuous, Type: config.AttributeQuasiIdentifying, Include: true,
				Hierarchy: [][]string{{"21", "20-30", "*"}, {"25", "20-30", "*"}, {"33", "30-40", "*"}, {"37", "30-40", "*"}}},
			{Name: "sex", DataType: config.DataTypeCategorical, Type: config.AttributeQuasiIdentifying, Include: true},
			{Name: "disease", DataType: config.DataTypeCategorical, Type: config.AttributeSensitive, Include: true},
		},
	})
	require.NoError(t, err)

	raw, err := dataset.Read(strings.NewReader("age;sex;disease\n21;m;flu\n25;m;flu\n33;f;cold\n37;f;flu\n"), def)
	require.NoError(t, err)
	return def, raw
}

func TestCompute(t *testing.T) {
	def, raw := fixture(t)
	ctx, err := NewContext(def, nil)
	require.NoError(t, err)

	anon := raw.Clone()
	ageCol := anon.Column("age")
	anon.SetValue(0, ageCol, "20-30")
	anon.SetValue(1, ageCol, "20-30")
	anon.SetValue(2, ageCol, "30-40")
	anon.Suppress(3)

	s, err := Compute(ctx, raw, anon)
	require.NoError(t, err)

	assert.Equal(t, 1.0, s.NumberOfSuppressedRecords)
	assert.Equal(t, 2.0, s.MaximalEquivalenceClassSize)
	assert.Equal(t, 1.0, s.MinimalEquivalenceClassSize)
	assert.Equal(t, 1.5, s.AverageEquivalenceClassSize)
	// 2^2 + 1^2 + 1 suppressed * 4 records
	assert.Equal(t, 9.0, s.Discernibility)
	assert.Equal(t, -1.0, s.ClassificationAccuracy)

	// age: three rows at level 1 of 2 plus one suppressed; sex: one suppressed
	assert.InDelta(t, (0.5*3+1+1)/8, s.Granularity, 1e-9)
	assert.InDelta(t, 0.25, s.GranularityCategoricalAttributes, 1e-9)
	assert.Greater(t, s.Entropy, 0.0)
	assert.Contains(t, s.LocationAndLimits, `"age"`)
	assert.Contains(t, s.LocationAndLimits, `"aMean"`)
}

func TestCompute_ClassificationAccuracy(t *testing.T) {
	def, raw := fixture(t)
	ctx, err := NewContext(def, &config.StatisticsConfig{FeatureAttributes: []string{"sex"}, TargetAttribute: "disease"})
	require.NoError(t, err)

	s, err := Compute(ctx, raw, raw.Clone())
	require.NoError(t, err)
	// m -> flu for both; f -> tie between cold and flu resolves to cold
	assert.InDelta(t, 0.75, s.ClassificationAccuracy, 1e-9)
}

func TestCompute_RowMismatch(t *testing.T) {
	def, raw := fixture(t)
	ctx, err := NewContext(def, nil)
	require.NoError(t, err)

	sub, err := raw.Subset([]int{0})
	require.NoError(t, err)
	_, err = Compute(ctx, raw, sub)
	assert.Error(t, err)
}

func TestNewContext_UnknownStatisticsAttribute(t *testing.T) {
	def, _ := fixture(t)
	_, err := NewContext(def, &config.StatisticsConfig{FeatureAttributes: []string{"zip"}, TargetAttribute: "disease"})
	assert.Error(t, err)
}

func TestSnapshot_EncodeDecode(t *testing.T) {
	original := Snapshot{
		Granularity:                      0.25,
		GranularityCategoricalAttributes: math.NaN(),
		Entropy:                          1.5,
		Discernibility:                   42,
		MaximalEquivalenceClassSize:      5,
		AverageEquivalenceClassSize:      3.5,
		MinimalEquivalenceClassSize:      2,
		NumberOfSuppressedRecords:        1,
		LocationAndLimits:                `{"age":{}}`,
		ClassificationAccuracy:           -1,
	}

	var buf bytes.Buffer
	require.NoError(t, original.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(decoded.GranularityCategoricalAttributes))
	assert.Equal(t, original.String(), decoded.String())
}

func TestSnapshot_Fields(t *testing.T) {
	s := Snapshot{Granularity: 0.5, GranularityCategoricalAttributes: math.NaN(), LocationAndLimits: "{}"}
	fields := s.Fields()

	require.Len(t, fields, len(Header))
	assert.Equal(t, "0.500", fields[0])
	assert.Equal(t, "NaN", fields[1])
	assert.Equal(t, "0.000", fields[2])
	assert.Equal(t, "{}", fields[8])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader("granularity: abc\n"))
	assert.Error(t, err)
}
