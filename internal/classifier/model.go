// Package classifier implements the per-job membership classifier.
// A Model is stateful and not safe for concurrent use: train any number of
// samples, compile exactly once, then predict.
package classifier

import (
	"errors"
	"fmt"
	"strings"
)

// Supported classifier types
const (
	TypeKNN = "KNN"
	TypeLR  = "LR"
	TypeRF  = "RF"
)

var (
	// ErrClassifierState is returned when the train/compile/predict order is violated
	ErrClassifierState = errors.New("classifier used out of order")

	// ErrUnsupportedClassifier is returned for classifier types without an implementation
	ErrUnsupportedClassifier = errors.New("unsupported classifier type")

	// ErrFeatureSize is returned when samples of one model have different lengths
	ErrFeatureSize = errors.New("inconsistent feature size")
)

// Sample is a feature vector that may be materialized lazily
type Sample interface {
	Vector() []float64
}

// Prediction is the predicted membership label and the model's confidence in it
type Prediction struct {
	Label      bool
	Confidence float64
}

type predictor interface {
	predict(x []float64) Prediction
}

type fitFunc func(x [][]float64, y []bool) predictor

// Model enforces the train, compile, predict lifecycle around a learning algorithm
type Model struct {
	kind      string
	fit       fitFunc
	samples   []Sample
	labels    []bool
	compiled  bool
	size      int
	predictor predictor
}

// New creates an untrained model of the given type
func New(kind string) (*Model, error) {
	var fit fitFunc
	switch strings.ToUpper(kind) {
	case TypeKNN:
		fit = func(x [][]float64, y []bool) predictor { return fitKNN(x, y, DefaultNeighbours) }
	case TypeLR:
		fit = func(x [][]float64, y []bool) predictor { return fitLogistic(x, y) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedClassifier, kind)
	}
	return &Model{kind: strings.ToUpper(kind), fit: fit}, nil
}

// Kind returns the classifier type
func (m *Model) Kind() string {
	return m.kind
}

// Train adds a labeled sample; label is true when the target was included
func (m *Model) Train(s Sample, label bool) error {
	if m.compiled {
		return fmt.Errorf("%w: train called after compile", ErrClassifierState)
	}
	m.samples = append(m.samples, s)
	m.labels = append(m.labels, label)
	return nil
}

// Compile materializes the training vectors and fits the model. It must be called exactly once.
func (m *Model) Compile() error {
	if m.compiled {
		return fmt.Errorf("%w: compile called twice", ErrClassifierState)
	}
	if len(m.samples) == 0 {
		return fmt.Errorf("%w: no training data", ErrClassifierState)
	}

	x := make([][]float64, len(m.samples))
	for i, s := range m.samples {
		x[i] = s.Vector()
		if i == 0 {
			m.size = len(x[i])
		} else if len(x[i]) != m.size {
			return fmt.Errorf("%w: %d and %d", ErrFeatureSize, m.size, len(x[i]))
		}
	}

	m.predictor = m.fit(x, m.labels)
	m.compiled = true
	m.samples = nil
	return nil
}

// Predict classifies every sample in order
func (m *Model) Predict(samples ...Sample) ([]Prediction, error) {
	if !m.compiled {
		return nil, fmt.Errorf("%w: predict called before compile", ErrClassifierState)
	}

	out := make([]Prediction, len(samples))
	for i, s := range samples {
		x := s.Vector()
		if len(x) != m.size {
			return nil, fmt.Errorf("%w: trained on %d, got %d", ErrFeatureSize, m.size, len(x))
		}
		out[i] = m.predictor.predict(x)
	}
	return out, nil
}
