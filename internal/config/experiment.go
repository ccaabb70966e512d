package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Attribute data types
const (
	DataTypeCategorical = "categorical"
	DataTypeContinuous  = "continuous"
	DataTypeDate        = "date"
	DataTypeOrdinal     = "ordinal"
)

// Attribute roles
const (
	AttributeQuasiIdentifying = "QUASI_IDENTIFYING_ATTRIBUTE"
	AttributeSensitive        = "SENSITIVE_ATTRIBUTE"
	AttributeInsensitive      = "INSENSITIVE_ATTRIBUTE"
	AttributeIdentifying      = "IDENTIFYING_ATTRIBUTE"
)

// Anonymization search algorithms
const (
	AlgorithmOptimal            = "OPTIMAL"
	AlgorithmBestEffortBottomUp = "BEST_EFFORT_BOTTOM_UP"
	AlgorithmBestEffortTopDown  = "BEST_EFFORT_TOP_DOWN"
	AlgorithmBestEffortGenetic  = "BEST_EFFORT_GENETIC"
)

// Target selection strategies
const (
	TargetRandom  = "RANDOM"
	TargetOutlier = "OUTLIER"
	TargetAverage = "AVERAGE"
	TargetImport  = "IMPORT"
)

// Attack attribute sets
const (
	AttackAllQIs        = "ALL_QIS"
	AttackAllAttributes = "ALL_ATTRIBUTES"
)

// Classifier types
const (
	ClassifierKNN = "KNN"
	ClassifierLR  = "LR"
	ClassifierRF  = "RF"
)

const defaultThreadCount = 32

var (
	// ErrInvalidExperimentConfig is returned when an experiment config fails validation
	ErrInvalidExperimentConfig = errors.New("invalid experiment config")

	experimentValidate = validator.New()
)

// DataConfig describes the raw dataset and its attribute schema
type DataConfig struct {
	DataSetName      string            `yaml:"dataSetName" validate:"required"`
	DataCsvFile      string            `yaml:"dataCsvFile" validate:"required"`
	AttributeConfigs []AttributeConfig `yaml:"attributeConfigs" validate:"required,min=1,dive"`
}

// AttributeConfig describes a single column of the dataset
type AttributeConfig struct {
	Name            string     `yaml:"name" validate:"required"`
	DataType        string     `yaml:"dataType" validate:"required"`
	Type            string     `yaml:"type" validate:"required,oneof=QUASI_IDENTIFYING_ATTRIBUTE SENSITIVE_ATTRIBUTE INSENSITIVE_ATTRIBUTE IDENTIFYING_ATTRIBUTE"`
	Include         bool       `yaml:"include"`
	PossibleEntries []string   `yaml:"possibleEntries,omitempty"`
	Min             *float64   `yaml:"min,omitempty"`
	Max             *float64   `yaml:"max,omitempty"`
	MinLevelToUse   *int       `yaml:"minLevelToUse,omitempty"`
	MaxLevelToUse   *int       `yaml:"maxLevelToUse,omitempty"`
	Hierarchy       [][]string `yaml:"hierarchy,omitempty"`
	PathToHierarchy string     `yaml:"pathToHierarchy,omitempty"`
	DateFormat      string     `yaml:"dateFormat,omitempty"`
}

// AnonymizationConfig describes one anonymization method under assessment
type AnonymizationConfig struct {
	Name                            string               `yaml:"name" validate:"required"`
	PrivacyModelList                []PrivacyModelConfig `yaml:"privacyModelList" validate:"required,min=1,dive"`
	SuppressionLimit                *float64             `yaml:"suppressionLimit,omitempty" validate:"omitempty,gte=0,lte=1"`
	AnonymizationAlgorithm          string               `yaml:"anonymizationAlgorithm,omitempty" validate:"omitempty,oneof=OPTIMAL BEST_EFFORT_BOTTOM_UP BEST_EFFORT_TOP_DOWN BEST_EFFORT_GENETIC"`
	HeuristicSearchTimeLimit        int                  `yaml:"heuristicSearchTimeLimit,omitempty" validate:"gte=0"`
	HeuristicSearchStepLimit        int                  `yaml:"heuristicSearchStepLimit,omitempty" validate:"gte=0"`
	DifferentialPrivacySearchBudget float64              `yaml:"differentialPrivacySearchBudget,omitempty" validate:"gte=0"`
	LocalGeneralization             bool                 `yaml:"localGeneralization"`
	LocalGeneralizationIterations   int                  `yaml:"localGeneralizationIterations,omitempty" validate:"gte=0"`
	QualityModel                    string               `yaml:"qualityModel,omitempty"`
}

// PrivacyModelConfig is a single privacy model entry of an anonymization config
type PrivacyModelConfig struct {
	Type      string  `yaml:"type" validate:"required"`
	K         int     `yaml:"k,omitempty"`
	L         float64 `yaml:"l,omitempty"`
	C         float64 `yaml:"c,omitempty"`
	T         float64 `yaml:"t,omitempty"`
	D         float64 `yaml:"d,omitempty"`
	B         float64 `yaml:"b,omitempty"`
	Epsilon   float64 `yaml:"epsilon,omitempty"`
	Delta     float64 `yaml:"delta,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Attribute string  `yaml:"attribute,omitempty"`
}

// RiskAssessmentConfig describes the membership inference experiment
type RiskAssessmentConfig struct {
	Name                   string   `yaml:"name" validate:"required"`
	AttributesForAttack    string   `yaml:"attributesForAttack,omitempty" validate:"omitempty,oneof=ALL_QIS ALL_ATTRIBUTES"`
	FeatureTypes           []string `yaml:"featureTypes" validate:"required,min=1"`
	ClassifierType         string   `yaml:"classifierType" validate:"required,oneof=KNN LR RF"`
	TargetCount            int      `yaml:"targetCount" validate:"gte=0"`
	TargetType             string   `yaml:"targetType" validate:"required,oneof=RANDOM OUTLIER AVERAGE IMPORT"`
	TargetImportFile       string   `yaml:"targetImportFile,omitempty"`
	RunCount               int      `yaml:"runCount" validate:"gt=0"`
	RunTrainingCount       int      `yaml:"runTrainingCount" validate:"gt=0"`
	RunTestCount           int      `yaml:"runTestCount" validate:"gt=0"`
	SizeSampleTraining     int      `yaml:"sizeSampleTraining" validate:"gt=0"`
	SizeSampleTest         int      `yaml:"sizeSampleTest" validate:"gt=0"`
	SizeBackground         int      `yaml:"sizeBackground,omitempty" validate:"gte=0"`
	SizeCohort             int      `yaml:"sizeCohort,omitempty" validate:"gte=0"`
	SizeBackgroundFraction float64  `yaml:"sizeBackgroundFraction,omitempty" validate:"gte=0,lte=1"`
	SizeCohortFraction     float64  `yaml:"sizeCohortFraction,omitempty" validate:"gte=0,lte=1"`
	Overlap                float64  `yaml:"overlap" validate:"gte=0,lte=1"`
	ThreadCount            int      `yaml:"threadCount,omitempty" validate:"gte=0"`
	UseCheckpointData      bool     `yaml:"useCheckpointData"`
	PathToCheckpointData   string   `yaml:"pathToCheckpointData,omitempty"`
	PathToStatisticsConfig string   `yaml:"pathToStatisticsConfig,omitempty"`
	Seed                   uint64   `yaml:"seed,omitempty"`
}

// StatisticsConfig selects the attributes used for the classification accuracy statistic
type StatisticsConfig struct {
	FeatureAttributes []string `yaml:"featureAttributes" validate:"required,min=1"`
	TargetAttribute   string   `yaml:"targetAttribute" validate:"required"`
}

// SeriesConfig lists the combinations of configs to assess in one series
type SeriesConfig struct {
	Name              string              `yaml:"name" validate:"required"`
	CombinationConfig []CombinationConfig `yaml:"combinationConfig" validate:"required,min=1,dive"`
}

// CombinationConfig is a cartesian product of config paths
type CombinationConfig struct {
	PathsToRiskAssessmentConfig []string `yaml:"pathsToRiskAssessmentConfig" validate:"required,min=1"`
	PathsToDataConfig           []string `yaml:"pathsToDataConfig" validate:"required,min=1"`
	PathsToAnonymizationConfig  []string `yaml:"pathsToAnonymizationConfig" validate:"required,min=1"`
}

// LoadDataConfig reads and validates a data config
func LoadDataConfig(path string) (*DataConfig, error) {
	cfg, err := loadYAML[DataConfig](path)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadAnonymizationConfig reads, defaults and validates an anonymization config
func LoadAnonymizationConfig(path string) (*AnonymizationConfig, error) {
	cfg, err := loadYAML[AnonymizationConfig](path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// LoadRiskAssessmentConfig reads, defaults and validates a risk assessment config
func LoadRiskAssessmentConfig(path string) (*RiskAssessmentConfig, error) {
	cfg, err := loadYAML[RiskAssessmentConfig](path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// LoadStatisticsConfig reads and validates a statistics config
func LoadStatisticsConfig(path string) (*StatisticsConfig, error) {
	cfg, err := loadYAML[StatisticsConfig](path)
	if err != nil {
		return nil, err
	}
	if err := experimentValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExperimentConfig, err)
	}
	return cfg, nil
}

// LoadSeriesConfig reads and validates a series config
func LoadSeriesConfig(path string) (*SeriesConfig, error) {
	cfg, err := loadYAML[SeriesConfig](path)
	if err != nil {
		return nil, err
	}
	if err := experimentValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExperimentConfig, err)
	}
	return cfg, nil
}

// WriteYAML marshals v into path, creating parent directories
func WriteYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func loadYAML[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Validate checks the data config schema
func (c *DataConfig) Validate() error {
	if err := experimentValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExperimentConfig, err)
	}

	seen := make(map[string]struct{}, len(c.AttributeConfigs))
	for _, attr := range c.AttributeConfigs {
		if _, ok := seen[attr.Name]; ok {
			return fmt.Errorf("%w: duplicate attribute %q", ErrInvalidExperimentConfig, attr.Name)
		}
		seen[attr.Name] = struct{}{}
	}

	return nil
}

// IncludedAttributes returns the attribute configs marked for inclusion, in config order
func (c *DataConfig) IncludedAttributes() []AttributeConfig {
	var included []AttributeConfig
	for _, attr := range c.AttributeConfigs {
		if attr.Include {
			included = append(included, attr)
		}
	}
	return included
}

// ApplyDefaults fills unset anonymization settings
func (c *AnonymizationConfig) ApplyDefaults() {
	if c.SuppressionLimit == nil {
		limit := 1.0
		c.SuppressionLimit = &limit
	}
	if c.AnonymizationAlgorithm == "" {
		c.AnonymizationAlgorithm = AlgorithmOptimal
	}
	if c.DifferentialPrivacySearchBudget == 0 {
		c.DifferentialPrivacySearchBudget = 0.1
	}
	if c.LocalGeneralizationIterations == 0 {
		c.LocalGeneralizationIterations = 100
	}
}

// Suppression returns the configured suppression limit
func (c *AnonymizationConfig) Suppression() float64 {
	if c.SuppressionLimit == nil {
		return 1
	}
	return *c.SuppressionLimit
}

// Validate checks the anonymization config
func (c *AnonymizationConfig) Validate() error {
	if err := experimentValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExperimentConfig, err)
	}
	return nil
}

// ApplyDefaults fills unset risk assessment settings
func (c *RiskAssessmentConfig) ApplyDefaults() {
	if c.ThreadCount == 0 {
		c.ThreadCount = defaultThreadCount
	}
	if c.AttributesForAttack == "" {
		c.AttributesForAttack = AttackAllQIs
	}
}

// Validate checks the risk assessment config including cross-field rules
func (c *RiskAssessmentConfig) Validate() error {
	if err := experimentValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExperimentConfig, err)
	}

	if c.ClassifierType == ClassifierRF {
		return fmt.Errorf("%w: classifier type %s is not supported", ErrInvalidExperimentConfig, c.ClassifierType)
	}

	if c.TargetType == TargetImport {
		if c.TargetImportFile == "" {
			return fmt.Errorf("%w: targetImportFile is required for target type %s", ErrInvalidExperimentConfig, TargetImport)
		}
	} else if c.TargetCount <= 0 {
		return fmt.Errorf("%w: targetCount must be greater than 0", ErrInvalidExperimentConfig)
	}

	if c.SizeCohort <= 0 && c.SizeCohortFraction <= 0 {
		return fmt.Errorf("%w: one of sizeCohort or sizeCohortFraction is required", ErrInvalidExperimentConfig)
	}

	if c.SizeBackground <= 0 && c.SizeBackgroundFraction <= 0 {
		return fmt.Errorf("%w: one of sizeBackground or sizeBackgroundFraction is required", ErrInvalidExperimentConfig)
	}

	if c.UseCheckpointData && c.PathToCheckpointData == "" {
		return fmt.Errorf("%w: pathToCheckpointData is required when useCheckpointData is set", ErrInvalidExperimentConfig)
	}

	return nil
}
