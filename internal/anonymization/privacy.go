// Package anonymization resolves anonymization configs into methods and
// provides the built-in generalization and suppression anonymizer.
package anonymization

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

// Kind is the tag of a privacy model
type Kind string

// Supported privacy model kinds
const (
	KindKAnonymity                     Kind = "k-Anonymity"
	KindDistinctLDiversity             Kind = "DistinctLDiversity"
	KindEntropyLDiversity              Kind = "EntropyLDiversity"
	KindRecursiveCLDiversity           Kind = "RecursiveCLDiversity"
	KindHierarchicalDistanceTCloseness Kind = "HierarchicalDistanceTCloseness"
	KindEqualDistanceTCloseness        Kind = "EqualDistanceTCloseness"
	KindDDisclosurePrivacy             Kind = "DDisclosurePrivacy"
	KindEnhancedBLikeness              Kind = "EnhancedBLikeness"
	KindEDDifferentialPrivacy          Kind = "EDDifferentialPrivacy"
	KindAverageReidentificationRisk    Kind = "AverageReidentificationRisk"
	KindPopulationUniqueness           Kind = "PopulationUniqueness"
)

// ConstraintType enumerates the checks a method imposes on equivalence classes or the whole dataset
type ConstraintType int

const (
	MinClassSize ConstraintType = iota
	MinDistinctSensitive
	MinSensitiveEntropy
	RecursiveDiversity
	MaxHierarchicalDistance
	MaxEqualDistance
	MaxDisclosure
	MaxBLikeness
	DifferentialPrivacy
	MaxAverageRisk
	MaxUniqueness
)

var constraintNames = map[ConstraintType]string{
	MinClassSize:            "min-class-size",
	MinDistinctSensitive:    "min-distinct-sensitive",
	MinSensitiveEntropy:     "min-sensitive-entropy",
	RecursiveDiversity:      "recursive-diversity",
	MaxHierarchicalDistance: "max-hierarchical-distance",
	MaxEqualDistance:        "max-equal-distance",
	MaxDisclosure:           "max-disclosure",
	MaxBLikeness:            "max-b-likeness",
	DifferentialPrivacy:     "differential-privacy",
	MaxAverageRisk:          "max-average-risk",
	MaxUniqueness:           "max-uniqueness",
}

func (t ConstraintType) String() string {
	if name, ok := constraintNames[t]; ok {
		return name
	}
	return fmt.Sprintf("constraint(%d)", int(t))
}

// Constraint is one resolved requirement of a privacy model
type Constraint struct {
	Type      ConstraintType
	Attribute string
	Value     float64
	Secondary float64
}

var (
	// ErrUnknownPrivacyModel is returned for privacy model tags without a mapping
	ErrUnknownPrivacyModel = errors.New("unknown privacy model")

	// ErrInvalidPrivacyModel is returned when model parameters are out of range
	ErrInvalidPrivacyModel = errors.New("invalid privacy model parameters")
)

// PrivacyModel is the tagged variant parsed from configuration
type PrivacyModel struct {
	Kind   Kind
	Config config.PrivacyModelConfig
}

// constraintMapping is the single place privacy model kinds become constraints
var constraintMapping = map[Kind]func(c config.PrivacyModelConfig) ([]Constraint, error){
	KindKAnonymity: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.K < 1 {
			return nil, fmt.Errorf("%w: k must be at least 1", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MinClassSize, Value: float64(c.K)}}, nil
	},
	KindDistinctLDiversity: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.L < 1 || c.Attribute == "" {
			return nil, fmt.Errorf("%w: distinct l-diversity needs l >= 1 and an attribute", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MinDistinctSensitive, Attribute: c.Attribute, Value: c.L}}, nil
	},
	KindEntropyLDiversity: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.L < 1 || c.Attribute == "" {
			return nil, fmt.Errorf("%w: entropy l-diversity needs l >= 1 and an attribute", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MinSensitiveEntropy, Attribute: c.Attribute, Value: c.L}}, nil
	},
	KindRecursiveCLDiversity: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.L < 1 || c.C <= 0 || c.Attribute == "" {
			return nil, fmt.Errorf("%w: recursive (c,l)-diversity needs c > 0, l >= 1 and an attribute", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: RecursiveDiversity, Attribute: c.Attribute, Value: c.L, Secondary: c.C}}, nil
	},
	KindHierarchicalDistanceTCloseness: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		return closeness(MaxHierarchicalDistance, c)
	},
	KindEqualDistanceTCloseness: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		return closeness(MaxEqualDistance, c)
	},
	KindDDisclosurePrivacy: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.D <= 0 || c.Attribute == "" {
			return nil, fmt.Errorf("%w: d-disclosure privacy needs d > 0 and an attribute", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MaxDisclosure, Attribute: c.Attribute, Value: c.D}}, nil
	},
	KindEnhancedBLikeness: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.B <= 0 || c.Attribute == "" {
			return nil, fmt.Errorf("%w: enhanced b-likeness needs b > 0 and an attribute", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MaxBLikeness, Attribute: c.Attribute, Value: c.B}}, nil
	},
	KindEDDifferentialPrivacy: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.Epsilon <= 0 || c.Delta < 0 || c.Delta >= 1 {
			return nil, fmt.Errorf("%w: (e,d)-differential privacy needs epsilon > 0 and delta in [0, 1)", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: DifferentialPrivacy, Value: c.Epsilon, Secondary: c.Delta}}, nil
	},
	KindAverageReidentificationRisk: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.Threshold <= 0 || c.Threshold > 1 {
			return nil, fmt.Errorf("%w: average re-identification risk needs a threshold in (0, 1]", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MaxAverageRisk, Value: c.Threshold}}, nil
	},
	KindPopulationUniqueness: func(c config.PrivacyModelConfig) ([]Constraint, error) {
		if c.Threshold <= 0 || c.Threshold > 1 {
			return nil, fmt.Errorf("%w: population uniqueness needs a threshold in (0, 1]", ErrInvalidPrivacyModel)
		}
		return []Constraint{{Type: MaxUniqueness, Value: c.Threshold}}, nil
	},
}

func closeness(t ConstraintType, c config.PrivacyModelConfig) ([]Constraint, error) {
	if c.T <= 0 || c.T > 1 || c.Attribute == "" {
		return nil, fmt.Errorf("%w: t-closeness needs t in (0, 1] and an attribute", ErrInvalidPrivacyModel)
	}
	return []Constraint{{Type: t, Attribute: c.Attribute, Value: c.T}}, nil
}

// ParsePrivacyModel tags a privacy model config
func ParsePrivacyModel(c config.PrivacyModelConfig) (PrivacyModel, error) {
	kind := Kind(c.Type)
	if _, ok := constraintMapping[kind]; !ok {
		return PrivacyModel{}, fmt.Errorf("%w: %q", ErrUnknownPrivacyModel, c.Type)
	}
	return PrivacyModel{Kind: kind, Config: c}, nil
}

// Constraints resolves the model through the constraint mapping
func (m PrivacyModel) Constraints() ([]Constraint, error) {
	resolve, ok := constraintMapping[m.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrivacyModel, m.Kind)
	}
	constraints, err := resolve(m.Config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	return constraints, nil
}

// Method is the fully resolved, immutable anonymization method shared by all workers
type Method struct {
	Name                          string
	Models                        []PrivacyModel
	Constraints                   []Constraint
	SuppressionLimit              float64
	Algorithm                     string
	StepLimit                     int
	TimeLimit                     time.Duration
	LocalGeneralization           bool
	LocalGeneralizationIterations int
}

// NewMethod parses every privacy model of cfg and concatenates their constraints
func NewMethod(cfg *config.AnonymizationConfig) (*Method, error) {
	m := &Method{
		Name:                          cfg.Name,
		SuppressionLimit:              cfg.Suppression(),
		Algorithm:                     cfg.AnonymizationAlgorithm,
		StepLimit:                     cfg.HeuristicSearchStepLimit,
		TimeLimit:                     time.Duration(cfg.HeuristicSearchTimeLimit) * time.Millisecond,
		LocalGeneralization:           cfg.LocalGeneralization,
		LocalGeneralizationIterations: cfg.LocalGeneralizationIterations,
	}
	if m.Algorithm == "" {
		m.Algorithm = config.AlgorithmOptimal
	}

	for _, pc := range cfg.PrivacyModelList {
		model, err := ParsePrivacyModel(pc)
		if err != nil {
			return nil, err
		}
		constraints, err := model.Constraints()
		if err != nil {
			return nil, err
		}
		m.Models = append(m.Models, model)
		m.Constraints = append(m.Constraints, constraints...)
	}

	return m, nil
}
