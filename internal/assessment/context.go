package assessment

import (
	"fmt"

	"github.com/cuongbtq/phantom-risk/internal/anonymization"
	"github.com/cuongbtq/phantom-risk/internal/classifier"
	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/features"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
)

// Classifier is the per-job membership model: Train any number of times,
// Compile exactly once, then Predict.
type Classifier interface {
	Train(s classifier.Sample, label bool) error
	Compile() error
	Predict(samples ...classifier.Sample) ([]classifier.Prediction, error)
}

// ClassifierFactory creates a fresh classifier of the configured kind
type ClassifierFactory func(kind string) (Classifier, error)

// NewModel is the default ClassifierFactory
func NewModel(kind string) (Classifier, error) {
	return classifier.New(kind)
}

// jobContext is the read-only state every worker shares by reference.
// It is built once in NewEngine and never mutated afterwards.
type jobContext struct {
	definition     *dataset.Definition
	method         *anonymization.Method
	dictionary     *features.Dictionary
	statistics     *statistics.Context
	extractor      features.Extractor
	classifierType string
	attributes     []string
	trainingCount  int
	testCount      int
	trainingSize   int
	testSize       int
}

// attackAttributes resolves the attribute names the attacker extracts features from
func attackAttributes(def *dataset.Definition, attack string) ([]string, error) {
	var attrs []*dataset.Attribute
	switch attack {
	case "", config.AttackAllQIs:
		attrs = def.QuasiIdentifiers()
	case config.AttackAllAttributes:
		attrs = def.Included()
	default:
		return nil, fmt.Errorf("unknown attributes for attack: %q", attack)
	}

	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	return names, nil
}
