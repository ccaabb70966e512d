package anonymization

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

func people(t *testing.T) *dataset.Dataset {
	t.Helper()
	def, err := dataset.NewDefinition(&config.DataConfig{
		DataSetName: "people",
		DataCsvFile: "people.csv",
		AttributeConfigs: []config.AttributeConfig{
			{Name: "age", DataType: config.DataTypeContinuous, Type: config.AttributeQuasiIdentifying, Include: true,
				Hierarchy: [][]string{
					{"21", "20-30", "*"}, {"25", "20-30", "*"}, {"27", "20-30", "*"},
					{"33", "30-40", "*"}, {"35", "30-40", "*"}, {"37", "30-40", "*"},
				}},
			{Name: "sex", DataType: config.DataTypeCategorical, Type: config.AttributeQuasiIdentifying, Include: true},
			{Name: "disease", DataType: config.DataTypeCategorical, Type: config.AttributeSensitive, Include: true},
		},
	})
	require.NoError(t, err)

	d, err := dataset.Read(strings.NewReader(
		"age;sex;disease\n21;m;flu\n25;m;cold\n27;m;flu\n33;f;cold\n35;f;flu\n37;f;asthma\n"), def)
	require.NoError(t, err)
	return d
}

func method(t *testing.T, algorithm string, suppression float64, models ...config.PrivacyModelConfig) *Method {
	t.Helper()
	m, err := NewMethod(&config.AnonymizationConfig{
		Name:                   "test",
		PrivacyModelList:       models,
		SuppressionLimit:       &suppression,
		AnonymizationAlgorithm: algorithm,
	})
	require.NoError(t, err)
	return m
}

func TestParsePrivacyModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PrivacyModelConfig
		want    ConstraintType
		wantErr error
	}{
		{name: "k-anonymity", cfg: config.PrivacyModelConfig{Type: "k-Anonymity", K: 5}, want: MinClassSize},
		{name: "distinct l-diversity", cfg: config.PrivacyModelConfig{Type: "DistinctLDiversity", L: 2, Attribute: "disease"}, want: MinDistinctSensitive},
		{name: "t-closeness", cfg: config.PrivacyModelConfig{Type: "EqualDistanceTCloseness", T: 0.2, Attribute: "disease"}, want: MaxEqualDistance},
		{name: "differential privacy", cfg: config.PrivacyModelConfig{Type: "EDDifferentialPrivacy", Epsilon: 1, Delta: 1e-5}, want: DifferentialPrivacy},
		{name: "unknown tag", cfg: config.PrivacyModelConfig{Type: "Magic"}, wantErr: ErrUnknownPrivacyModel},
		{name: "bad k", cfg: config.PrivacyModelConfig{Type: "k-Anonymity"}, wantErr: ErrInvalidPrivacyModel},
		{name: "l-diversity without attribute", cfg: config.PrivacyModelConfig{Type: "DistinctLDiversity", L: 2}, wantErr: ErrInvalidPrivacyModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := ParsePrivacyModel(tt.cfg)
			if err == nil {
				var constraints []Constraint
				constraints, err = model.Constraints()
				if err == nil {
					require.Len(t, constraints, 1)
					assert.Equal(t, tt.want, constraints[0].Type)
				}
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewMethod(t *testing.T) {
	m := method(t, "", 0.1,
		config.PrivacyModelConfig{Type: "k-Anonymity", K: 3},
		config.PrivacyModelConfig{Type: "DistinctLDiversity", L: 2, Attribute: "disease"},
	)

	assert.Equal(t, config.AlgorithmOptimal, m.Algorithm)
	assert.Len(t, m.Models, 2)
	assert.Len(t, m.Constraints, 2)
	assert.Equal(t, 0.1, m.SuppressionLimit)
}

func classSizes(d *dataset.Dataset) map[string]int {
	sizes := map[string]int{}
	for row := 0; row < d.NumRows(); row++ {
		if d.IsSuppressed(row) {
			continue
		}
		sizes[d.Value(row, 0)+"|"+d.Value(row, 1)]++
	}
	return sizes
}

func TestGeneralizer_KAnonymity(t *testing.T) {
	for _, algorithm := range []string{config.AlgorithmOptimal, config.AlgorithmBestEffortBottomUp, config.AlgorithmBestEffortTopDown} {
		t.Run(algorithm, func(t *testing.T) {
			raw := people(t)
			m := method(t, algorithm, 0, config.PrivacyModelConfig{Type: "k-Anonymity", K: 3})

			anon, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
			require.NoError(t, err)
			require.Equal(t, raw.NumRows(), anon.NumRows())
			assert.Equal(t, 0, anon.SuppressedCount())
			for class, size := range classSizes(anon) {
				assert.GreaterOrEqual(t, size, 3, class)
			}
			assert.Equal(t, "21", raw.Value(0, 0), "raw input must not be modified")
		})
	}
}

func TestGeneralizer_OptimalPrefersLowLoss(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 0, config.PrivacyModelConfig{Type: "k-Anonymity", K: 3})

	anon, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
	require.NoError(t, err)
	// age decade plus sex already yields classes of three
	assert.Equal(t, "20-30", anon.Value(0, 0))
	assert.Equal(t, "m", anon.Value(0, 1))
}

func TestGeneralizer_LDiversitySuppression(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 1,
		config.PrivacyModelConfig{Type: "DistinctLDiversity", L: 3, Attribute: "disease"},
	)

	anon, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
	require.NoError(t, err)

	col := anon.Column("disease")
	groups := map[string]map[string]bool{}
	for row := 0; row < anon.NumRows(); row++ {
		if anon.IsSuppressed(row) {
			continue
		}
		key := anon.Value(row, 0) + "|" + anon.Value(row, 1)
		if groups[key] == nil {
			groups[key] = map[string]bool{}
		}
		groups[key][anon.Value(row, col)] = true
	}
	for key, values := range groups {
		assert.GreaterOrEqual(t, len(values), 3, key)
	}
}

func TestGeneralizer_Infeasible(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 0, config.PrivacyModelConfig{Type: "k-Anonymity", K: 10})

	_, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestGeneralizer_UnsupportedConstraint(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 0, config.PrivacyModelConfig{Type: "EDDifferentialPrivacy", Epsilon: 1, Delta: 0.001})

	_, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
	assert.ErrorIs(t, err, ErrUnsupportedConstraint)
}

func TestGeneralizer_CanceledContext(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 0, config.PrivacyModelConfig{Type: "k-Anonymity", K: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGeneralizer().Anonymize(ctx, raw, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneralizer_FullGeneralizationSurvivesWrite(t *testing.T) {
	raw := people(t)
	m := method(t, config.AlgorithmOptimal, 0, config.PrivacyModelConfig{Type: "k-Anonymity", K: raw.NumRows()})

	anon, err := NewGeneralizer().Anonymize(context.Background(), raw, m)
	require.NoError(t, err)
	require.Equal(t, []string{"*", "*"}, anon.Row(0)[:2])
	require.Zero(t, anon.SuppressedCount())

	var buf bytes.Buffer
	require.NoError(t, anon.Write(&buf))

	reloaded, err := dataset.Read(&buf, raw.Definition())
	require.NoError(t, err)
	assert.Zero(t, reloaded.SuppressedCount())
	for row := 0; row < anon.NumRows(); row++ {
		assert.Equal(t, anon.Row(row), reloaded.Row(row))
	}
}
