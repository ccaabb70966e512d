package features

import (
	"maps"

	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

// Dictionary assigns stable integer codes to attribute values.
// It is not safe for concurrent use: the engine builds one base dictionary
// at startup and every job works on its own Clone.
type Dictionary struct {
	codes map[string]map[string]int
}

// NewDictionary builds a dictionary pre-filled with every value the
// definition can produce (configured entries, hierarchy cells, suppression)
func NewDictionary(def *dataset.Definition) *Dictionary {
	d := &Dictionary{codes: make(map[string]map[string]int)}
	if def == nil {
		return d
	}
	for _, a := range def.Included() {
		d.ProbeAll(a.Name, a.Values())
	}
	return d
}

// Probe returns the code of value, assigning the next free code on first sight
func (d *Dictionary) Probe(attribute, value string) int {
	values, ok := d.codes[attribute]
	if !ok {
		values = make(map[string]int)
		d.codes[attribute] = values
	}
	code, ok := values[value]
	if !ok {
		code = len(values)
		values[value] = code
	}
	return code
}

// ProbeAll registers every value in order
func (d *Dictionary) ProbeAll(attribute string, values []string) {
	for _, v := range values {
		d.Probe(attribute, v)
	}
}

// Size returns the number of codes assigned for attribute
func (d *Dictionary) Size(attribute string) int {
	return len(d.codes[attribute])
}

// Clone returns a deep copy
func (d *Dictionary) Clone() *Dictionary {
	out := &Dictionary{codes: make(map[string]map[string]int, len(d.codes))}
	for attr, values := range d.codes {
		out.codes[attr] = maps.Clone(values)
	}
	return out
}
