package anonymization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

// Anonymizer transforms a raw dataset owned by the caller into an anonymized copy.
// Implementations must be safe for concurrent use as long as every call gets its own dataset.
type Anonymizer interface {
	Anonymize(ctx context.Context, raw *dataset.Dataset, method *Method) (*dataset.Dataset, error)
}

var (
	// ErrInfeasible is returned when no generalization satisfies the method within the suppression limit
	ErrInfeasible = errors.New("no feasible anonymization found")

	// ErrUnsupportedConstraint is returned for constraints the generalizer cannot enforce
	ErrUnsupportedConstraint = errors.New("constraint not supported by the generalizer")
)

var supportedConstraints = map[ConstraintType]bool{
	MinClassSize:         true,
	MinDistinctSensitive: true,
	MinSensitiveEntropy:  true,
	MaxAverageRisk:       true,
}

// Generalizer is a full-domain generalization anonymizer with record suppression.
// It searches the lattice of per-attribute hierarchy levels for the node with
// the lowest information loss that satisfies every constraint once violating
// equivalence classes are suppressed.
type Generalizer struct{}

// NewGeneralizer creates the built-in anonymizer
func NewGeneralizer() *Generalizer {
	return &Generalizer{}
}

type node []int

func (n node) key() string {
	return fmt.Sprint([]int(n))
}

type evaluation struct {
	node       node
	loss       float64
	feasible   bool
	suppressed []bool
}

type search struct {
	ctx      context.Context
	raw      *dataset.Dataset
	method   *Method
	qis      []*dataset.Attribute
	qiCols   []int
	lower    node
	upper    node
	deadline time.Time
	steps    int
	seen     map[string]*evaluation
	best     *evaluation
}

// Anonymize generalizes and suppresses a copy of raw according to method
func (g *Generalizer) Anonymize(ctx context.Context, raw *dataset.Dataset, method *Method) (*dataset.Dataset, error) {
	for _, c := range method.Constraints {
		if !supportedConstraints[c.Type] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedConstraint, c.Type)
		}
		if c.Attribute != "" && raw.Column(c.Attribute) < 0 {
			return nil, fmt.Errorf("constraint %s references unknown attribute %s", c.Type, c.Attribute)
		}
	}

	qis := raw.Definition().QuasiIdentifiers()
	s := &search{
		ctx:    ctx,
		raw:    raw,
		method: method,
		qis:    qis,
		qiCols: make([]int, len(qis)),
		lower:  make(node, len(qis)),
		upper:  make(node, len(qis)),
		seen:   make(map[string]*evaluation),
	}
	for i, qi := range qis {
		s.qiCols[i] = raw.Column(qi.Name)
		s.lower[i] = qi.MinLevel
		s.upper[i] = qi.MaxLevel
	}
	if method.TimeLimit > 0 {
		s.deadline = time.Now().Add(method.TimeLimit)
	}

	var err error
	switch method.Algorithm {
	case config.AlgorithmBestEffortTopDown:
		err = s.climb(s.upper, s.predecessors)
	case config.AlgorithmBestEffortBottomUp, config.AlgorithmBestEffortGenetic:
		err = s.climb(s.lower, s.successors)
	default:
		err = s.exhaustive()
	}
	if err != nil && s.best == nil {
		return nil, err
	}
	if s.best == nil {
		return nil, ErrInfeasible
	}

	return s.apply(s.best), nil
}

// exceeded reports whether the search must stop
func (s *search) exceeded() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if s.method.StepLimit > 0 && s.steps >= s.method.StepLimit {
		return fmt.Errorf("%w: step limit %d reached", ErrInfeasible, s.method.StepLimit)
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return fmt.Errorf("%w: time limit %s reached", ErrInfeasible, s.method.TimeLimit)
	}
	return nil
}

func (s *search) exhaustive() error {
	current := append(node(nil), s.lower...)
	for {
		if err := s.exceeded(); err != nil {
			return err
		}
		s.evaluate(current)

		// odometer increment over [lower, upper]
		i := 0
		for ; i < len(current); i++ {
			if current[i] < s.upper[i] {
				current[i]++
				break
			}
			current[i] = s.lower[i]
		}
		if i == len(current) {
			return nil
		}
	}
}

// climb greedily moves to the neighbour with the lowest loss until no neighbour improves it
func (s *search) climb(start node, neighbours func(node) []node) error {
	current := s.evaluate(start)
	for {
		var next *evaluation
		for _, n := range neighbours(current.node) {
			if err := s.exceeded(); err != nil {
				return err
			}
			e := s.evaluate(n)
			if next == nil || better(e, next) {
				next = e
			}
		}
		if next == nil || !better(next, current) {
			return nil
		}
		current = next
	}
}

func better(a, b *evaluation) bool {
	if a.feasible != b.feasible {
		return a.feasible
	}
	return a.loss < b.loss
}

func (s *search) successors(n node) []node {
	var out []node
	for i := range n {
		if n[i] < s.upper[i] {
			next := append(node(nil), n...)
			next[i]++
			out = append(out, next)
		}
	}
	return out
}

func (s *search) predecessors(n node) []node {
	var out []node
	for i := range n {
		if n[i] > s.lower[i] {
			next := append(node(nil), n...)
			next[i]--
			out = append(out, next)
		}
	}
	return out
}

func (s *search) evaluate(n node) *evaluation {
	if e, ok := s.seen[n.key()]; ok {
		return e
	}
	s.steps++

	rows := s.raw.NumRows()
	classes := make(map[string][]int)
	parts := make([]string, len(s.qis))
	for row := 0; row < rows; row++ {
		for i, qi := range s.qis {
			parts[i] = qi.Generalize(s.raw.Value(row, s.qiCols[i]), n[i])
		}
		k := strings.Join(parts, "\x1f")
		classes[k] = append(classes[k], row)
	}

	suppressed := make([]bool, rows)
	suppressedCount := 0
	kept := 0
	for _, members := range classes {
		if s.classSatisfies(members) {
			kept++
			continue
		}
		for _, row := range members {
			suppressed[row] = true
		}
		suppressedCount += len(members)
	}

	feasible := float64(suppressedCount) <= s.method.SuppressionLimit*float64(rows)
	remaining := rows - suppressedCount
	for _, c := range s.method.Constraints {
		if c.Type == MaxAverageRisk && remaining > 0 && float64(kept)/float64(remaining) > c.Value {
			feasible = false
		}
	}

	generalization := 0.0
	for i, qi := range s.qis {
		generalization += float64(n[i]) / float64(qi.Depth())
	}
	if len(s.qis) > 0 {
		generalization /= float64(len(s.qis))
	}
	share := 0.0
	if rows > 0 {
		share = float64(suppressedCount) / float64(rows)
	}

	e := &evaluation{
		node:       append(node(nil), n...),
		loss:       generalization*(1-share) + share,
		feasible:   feasible,
		suppressed: suppressed,
	}
	s.seen[n.key()] = e
	if e.feasible && (s.best == nil || e.loss < s.best.loss) {
		s.best = e
	}
	return e
}

func (s *search) classSatisfies(members []int) bool {
	for _, c := range s.method.Constraints {
		switch c.Type {
		case MinClassSize:
			if float64(len(members)) < c.Value {
				return false
			}
		case MinDistinctSensitive:
			if float64(len(s.sensitiveCounts(c.Attribute, members))) < c.Value {
				return false
			}
		case MinSensitiveEntropy:
			entropy := 0.0
			for _, count := range s.sensitiveCounts(c.Attribute, members) {
				p := float64(count) / float64(len(members))
				entropy -= p * math.Log(p)
			}
			if entropy < math.Log(c.Value) {
				return false
			}
		}
	}
	return true
}

func (s *search) sensitiveCounts(attribute string, members []int) map[string]int {
	col := s.raw.Column(attribute)
	counts := make(map[string]int)
	for _, row := range members {
		counts[s.raw.Value(row, col)]++
	}
	return counts
}

func (s *search) apply(e *evaluation) *dataset.Dataset {
	out := s.raw.Clone()
	for row := 0; row < out.NumRows(); row++ {
		if e.suppressed[row] {
			out.Suppress(row)
			continue
		}
		for i, qi := range s.qis {
			out.SetValue(row, s.qiCols[i], qi.Generalize(s.raw.Value(row, s.qiCols[i]), e.node[i]))
		}
	}
	return out
}
