package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

func testDefinition(t *testing.T) *Definition {
	t.Helper()
	low, high := 0.0, 100.0
	def, err := NewDefinition(&config.DataConfig{
		DataSetName: "people",
		DataCsvFile: "people.csv",
		AttributeConfigs: []config.AttributeConfig{
			{Name: "age", DataType: config.DataTypeContinuous, Type: config.AttributeQuasiIdentifying, Include: true, Min: &low, Max: &high,
				Hierarchy: [][]string{{"25", "20-30", "*"}, {"35", "30-40", "*"}, {"45", "40-50", "*"}}},
			{Name: "sex", DataType: config.DataTypeCategorical, Type: config.AttributeQuasiIdentifying, Include: true, PossibleEntries: []string{"m", "f"}},
			{Name: "disease", DataType: config.DataTypeCategorical, Type: config.AttributeSensitive, Include: true},
		},
	})
	require.NoError(t, err)
	return def
}

const sampleCSV = "age;sex;disease\n25;m;flu\n35;f;cold\n45;m;flu\n"

func TestNewDefinition_UnsupportedType(t *testing.T) {
	_, err := NewDefinition(&config.DataConfig{
		AttributeConfigs: []config.AttributeConfig{
			{Name: "grade", DataType: config.DataTypeOrdinal, Type: config.AttributeQuasiIdentifying},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAttributeType)
}

func TestDefinition_Roles(t *testing.T) {
	def := testDefinition(t)

	assert.Len(t, def.QuasiIdentifiers(), 2)
	assert.Len(t, def.Sensitive(), 1)
	assert.Len(t, def.Included(), 3)

	age, ok := def.Attribute("age")
	require.True(t, ok)
	assert.Equal(t, 2, age.Depth())
	assert.Equal(t, 2, age.MaxLevel)

	sex, _ := def.Attribute("sex")
	assert.Equal(t, 1, sex.Depth())
	assert.ElementsMatch(t, []string{"m", "f", "*"}, sex.Values())
}

func TestAttribute_Generalize(t *testing.T) {
	def := testDefinition(t)
	age, _ := def.Attribute("age")
	sex, _ := def.Attribute("sex")

	tests := []struct {
		name  string
		attr  *Attribute
		value string
		level int
		want  string
	}{
		{name: "level zero keeps value", attr: age, value: "25", level: 0, want: "25"},
		{name: "first level interval", attr: age, value: "35", level: 1, want: "30-40"},
		{name: "top level", attr: age, value: "45", level: 2, want: "*"},
		{name: "unknown value", attr: age, value: "99", level: 1, want: "*"},
		{name: "no hierarchy", attr: sex, value: "m", level: 1, want: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.attr.Generalize(tt.value, tt.level))
		})
	}

	assert.Equal(t, 1, age.Level("35", "30-40"))
	assert.Equal(t, 0, age.Level("35", "35"))
	assert.Equal(t, 1, sex.Level("m", "*"))
}

func TestAttribute_Numeric(t *testing.T) {
	def := testDefinition(t)
	age, _ := def.Attribute("age")

	tests := []struct {
		value  string
		want   float64
		wantOK bool
	}{
		{value: "42", want: 42, wantOK: true},
		{value: "-3.5", want: -3.5, wantOK: true},
		{value: "20-30", want: 25, wantOK: true},
		{value: "1.5-2.5", want: 2, wantOK: true},
		{value: "[20, 30[", want: 25, wantOK: true},
		{value: "[-10, -5[", want: -7.5, wantOK: true},
		{value: "-10--5", want: -7.5, wantOK: true},
		{value: "[-10, 10[", want: 0, wantOK: true},
		{value: "*", wantOK: false},
		{value: "unknown", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v, ok := age.Numeric(tt.value)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
		})
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	def := testDefinition(t)

	d, err := Read(strings.NewReader(sampleCSV), def)
	require.NoError(t, err)
	require.Equal(t, 3, d.NumRows())

	d.Suppress(1)
	// fully generalized but kept: the same cells as a suppressed record
	d.SetValue(2, 0, "*")
	d.SetValue(2, 1, "*")

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "age;sex;disease;"+SuppressedColumn+"\n"))

	loaded, err := Read(&buf, def)
	require.NoError(t, err)
	assert.Equal(t, d.Header(), loaded.Header())
	require.Equal(t, d.NumRows(), loaded.NumRows())
	for row := 0; row < d.NumRows(); row++ {
		assert.Equal(t, d.Row(row), loaded.Row(row))
		assert.Equal(t, d.IsSuppressed(row), loaded.IsSuppressed(row))
	}
	assert.True(t, loaded.IsSuppressed(1))
	assert.False(t, loaded.IsSuppressed(2))
	assert.Equal(t, 1, loaded.SuppressedCount())
	assert.Equal(t, "cold", loaded.Value(1, loaded.Column("disease")))
}

func TestRead_SuppressionFlags(t *testing.T) {
	def := testDefinition(t)

	tests := []struct {
		name       string
		csv        string
		suppressed []bool
		wantErr    string
	}{
		{
			name:       "raw input has no flags",
			csv:        "age;sex;disease\n*;*;flu\n25;m;cold\n",
			suppressed: []bool{false, false},
		},
		{
			name:       "flag column",
			csv:        "age;sex;disease;" + SuppressedColumn + "\n*;*;flu;1\n*;*;cold;0\n",
			suppressed: []bool{true, false},
		},
		{
			name:    "invalid flag",
			csv:     "age;sex;disease;" + SuppressedColumn + "\n*;*;flu;yes\n",
			wantErr: "invalid suppression flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Read(strings.NewReader(tt.csv), def)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"age", "sex", "disease"}, d.Header())
			for row, want := range tt.suppressed {
				assert.Equal(t, want, d.IsSuppressed(row))
			}
		})
	}
}

func TestRead_MissingAttribute(t *testing.T) {
	def := testDefinition(t)
	_, err := Read(strings.NewReader("age;sex\n1;m\n"), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disease")
}

func TestSubsetAndClone(t *testing.T) {
	def := testDefinition(t)
	d, err := Read(strings.NewReader(sampleCSV), def)
	require.NoError(t, err)

	sub, err := d.Subset([]int{2, 0})
	require.NoError(t, err)
	require.Equal(t, 2, sub.NumRows())
	assert.Equal(t, "25", sub.Value(0, 0))
	assert.Equal(t, "45", sub.Value(1, 0))

	sub.SetValue(0, 0, "*")
	assert.Equal(t, "25", d.Value(0, 0))

	clone := d.Clone()
	clone.Suppress(0)
	assert.False(t, d.IsSuppressed(0))
	assert.Equal(t, "m", d.Value(0, 1))

	_, err = d.Subset([]int{7})
	assert.Error(t, err)
}
