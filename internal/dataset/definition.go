package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

// Suppressed is the value written for fully generalized or suppressed cells
const Suppressed = "*"

// ErrUnsupportedAttributeType is returned for data types the engine cannot process
var ErrUnsupportedAttributeType = errors.New("unsupported attribute data type")

// Attribute is the resolved schema of one column
type Attribute struct {
	Name          string
	DataType      string
	Role          string
	Include       bool
	Entries       []string
	Min, Max      *float64
	MinLevel      int
	MaxLevel      int
	DateFormat    string
	hierarchy     [][]string
	hierarchyRows map[string]int
}

// Definition is the immutable schema shared by every copy of a dataset
type Definition struct {
	attributes []*Attribute
	byName     map[string]*Attribute
}

// NewDefinition resolves the attribute configs, loading hierarchies from disk where referenced
func NewDefinition(cfg *config.DataConfig) (*Definition, error) {
	def := &Definition{byName: make(map[string]*Attribute, len(cfg.AttributeConfigs))}

	for _, ac := range cfg.AttributeConfigs {
		switch ac.DataType {
		case config.DataTypeCategorical, config.DataTypeContinuous, config.DataTypeDate:
		default:
			return nil, fmt.Errorf("%w: %q for attribute %s", ErrUnsupportedAttributeType, ac.DataType, ac.Name)
		}

		hierarchy := ac.Hierarchy
		if len(hierarchy) == 0 && ac.PathToHierarchy != "" {
			loaded, err := readHierarchy(ac.PathToHierarchy)
			if err != nil {
				return nil, fmt.Errorf("failed to load hierarchy for %s: %w", ac.Name, err)
			}
			hierarchy = loaded
		}

		attr := &Attribute{
			Name:       ac.Name,
			DataType:   ac.DataType,
			Role:       ac.Type,
			Include:    ac.Include,
			Entries:    ac.PossibleEntries,
			Min:        ac.Min,
			Max:        ac.Max,
			DateFormat: ac.DateFormat,
			hierarchy:  hierarchy,
		}
		if attr.DateFormat == "" {
			attr.DateFormat = "2006-01-02"
		}

		attr.hierarchyRows = make(map[string]int, len(hierarchy))
		for i, row := range hierarchy {
			if len(row) > 0 {
				attr.hierarchyRows[row[0]] = i
			}
		}

		attr.MaxLevel = attr.Depth()
		if ac.MaxLevelToUse != nil && *ac.MaxLevelToUse < attr.MaxLevel {
			attr.MaxLevel = *ac.MaxLevelToUse
		}
		if ac.MinLevelToUse != nil {
			attr.MinLevel = min(*ac.MinLevelToUse, attr.MaxLevel)
		}

		def.attributes = append(def.attributes, attr)
		def.byName[attr.Name] = attr
	}

	return def, nil
}

// Attributes returns the attributes in config order
func (d *Definition) Attributes() []*Attribute {
	return d.attributes
}

// Attribute looks up an attribute by name
func (d *Definition) Attribute(name string) (*Attribute, bool) {
	a, ok := d.byName[name]
	return a, ok
}

// QuasiIdentifiers returns the included quasi-identifying attributes
func (d *Definition) QuasiIdentifiers() []*Attribute {
	var qis []*Attribute
	for _, a := range d.attributes {
		if a.Include && a.Role == config.AttributeQuasiIdentifying {
			qis = append(qis, a)
		}
	}
	return qis
}

// Included returns every attribute marked for inclusion
func (d *Definition) Included() []*Attribute {
	var included []*Attribute
	for _, a := range d.attributes {
		if a.Include {
			included = append(included, a)
		}
	}
	return included
}

// Sensitive returns the included sensitive attributes
func (d *Definition) Sensitive() []*Attribute {
	var sensitive []*Attribute
	for _, a := range d.attributes {
		if a.Include && a.Role == config.AttributeSensitive {
			sensitive = append(sensitive, a)
		}
	}
	return sensitive
}

// IsCategorical reports whether values are compared as opaque codes
func (a *Attribute) IsCategorical() bool {
	return a.DataType == config.DataTypeCategorical
}

// Hierarchy returns the generalization hierarchy rows (nil when none was configured)
func (a *Attribute) Hierarchy() [][]string {
	return a.hierarchy
}

// Depth is the number of generalization steps available. Attributes without
// a hierarchy can only be generalized to the suppression value.
func (a *Attribute) Depth() int {
	if len(a.hierarchy) == 0 || len(a.hierarchy[0]) < 2 {
		return 1
	}
	return len(a.hierarchy[0]) - 1
}

// Generalize maps a raw value to its representation at the given level
func (a *Attribute) Generalize(value string, level int) string {
	if level <= 0 {
		return value
	}
	if len(a.hierarchy) == 0 {
		return Suppressed
	}
	row, ok := a.hierarchyRows[value]
	if !ok {
		return Suppressed
	}
	levels := a.hierarchy[row]
	if level >= len(levels) {
		return Suppressed
	}
	return levels[level]
}

// Level returns the generalization level a stored value sits at, relative to the raw value
func (a *Attribute) Level(raw, value string) int {
	if value == raw {
		return 0
	}
	if row, ok := a.hierarchyRows[raw]; ok {
		for level, v := range a.hierarchy[row] {
			if v == value {
				return level
			}
		}
	}
	return a.Depth()
}

// Values returns every value that may appear in the column: configured entries plus hierarchy cells
func (a *Attribute) Values() []string {
	seen := make(map[string]struct{})
	var values []string
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	for _, v := range a.Entries {
		add(v)
	}
	for _, row := range a.hierarchy {
		for _, v := range row {
			add(v)
		}
	}
	add(Suppressed)
	return values
}

func readHierarchy(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
