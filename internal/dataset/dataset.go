package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

// Dataset is a row-major table of string cells bound to a shared Definition.
// A Dataset is owned by one goroutine at a time; use Clone or Subset to hand out copies.
type Dataset struct {
	def        *Definition
	header     []string
	columns    map[string]int
	rows       [][]string
	suppressed []bool
}

// New builds a dataset from a header and rows, copying neither
func New(def *Definition, header []string, rows [][]string) (*Dataset, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[h] = i
	}
	for _, a := range def.Attributes() {
		if _, ok := columns[a.Name]; !ok {
			return nil, fmt.Errorf("attribute %s missing from header", a.Name)
		}
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i, len(row), len(header))
		}
	}

	return &Dataset{
		def:        def,
		header:     header,
		columns:    columns,
		rows:       rows,
		suppressed: make([]bool, len(rows)),
	}, nil
}

// Load reads a ';'-delimited CSV file with a header row
func Load(path string, def *Definition) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	d, err := Read(f, def)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return d, nil
}

// SuppressedColumn is the trailing column Write adds to carry the suppression flags
const SuppressedColumn = "__suppressed"

// Read parses a ';'-delimited CSV stream. A trailing SuppressedColumn, as
// written by Write, is stripped and restores the suppression flags; without it
// no record is suppressed.
func Read(r io.Reader, def *Definition) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header, rows := records[0], records[1:]
	last := len(header) - 1
	flagged := last >= 0 && header[last] == SuppressedColumn

	var flags []string
	if flagged {
		header = header[:last]
		flags = make([]string, len(rows))
		for i, row := range rows {
			if len(row) != last+1 {
				return nil, fmt.Errorf("row %d has %d fields, expected %d", i, len(row), last+1)
			}
			flags[i] = row[last]
			rows[i] = row[:last]
		}
	}

	d, err := New(def, header, rows)
	if err != nil {
		return nil, err
	}

	for i, flag := range flags {
		switch flag {
		case "1":
			d.suppressed[i] = true
		case "0":
		default:
			return nil, fmt.Errorf("row %d has invalid suppression flag %q", i, flag)
		}
	}
	return d, nil
}

// Write serializes the dataset as ';'-delimited CSV with a header row and a
// trailing SuppressedColumn
func (d *Dataset) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(append(slices.Clone(d.header), SuppressedColumn)); err != nil {
		return err
	}

	record := make([]string, len(d.header)+1)
	for i, row := range d.rows {
		copy(record, row)
		record[len(d.header)] = "0"
		if d.suppressed[i] {
			record[len(d.header)] = "1"
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Definition returns the shared schema
func (d *Dataset) Definition() *Definition {
	return d.def
}

// Header returns the column names
func (d *Dataset) Header() []string {
	return d.header
}

// NumRows returns the number of records
func (d *Dataset) NumRows() int {
	return len(d.rows)
}

// Column returns the index of the named column or -1
func (d *Dataset) Column(name string) int {
	if i, ok := d.columns[name]; ok {
		return i
	}
	return -1
}

// Value returns a single cell
func (d *Dataset) Value(row, column int) string {
	return d.rows[row][column]
}

// SetValue overwrites a single cell
func (d *Dataset) SetValue(row, column int, value string) {
	d.rows[row][column] = value
}

// Row returns the cells of a record. The slice must not be modified.
func (d *Dataset) Row(row int) []string {
	return d.rows[row]
}

// IsSuppressed reports whether the record was removed by the anonymizer
func (d *Dataset) IsSuppressed(row int) bool {
	return d.suppressed[row]
}

// Suppress marks a record as suppressed and blanks its quasi-identifiers
func (d *Dataset) Suppress(row int) {
	d.suppressed[row] = true
	for _, qi := range d.def.QuasiIdentifiers() {
		d.rows[row][d.columns[qi.Name]] = Suppressed
	}
}

// SuppressedCount returns the number of suppressed records
func (d *Dataset) SuppressedCount() int {
	n := 0
	for _, s := range d.suppressed {
		if s {
			n++
		}
	}
	return n
}

// Clone returns a deep copy sharing only the definition
func (d *Dataset) Clone() *Dataset {
	rows := make([][]string, len(d.rows))
	for i, row := range d.rows {
		rows[i] = slices.Clone(row)
	}
	return &Dataset{
		def:        d.def,
		header:     d.header,
		columns:    d.columns,
		rows:       rows,
		suppressed: slices.Clone(d.suppressed),
	}
}

// Subset copies the records with the given ids, in ascending id order
func (d *Dataset) Subset(ids []int) (*Dataset, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	rows := make([][]string, 0, len(sorted))
	for _, id := range sorted {
		if id < 0 || id >= len(d.rows) {
			return nil, fmt.Errorf("record id %d out of range [0, %d)", id, len(d.rows))
		}
		rows = append(rows, slices.Clone(d.rows[id]))
	}

	return &Dataset{
		def:        d.def,
		header:     d.header,
		columns:    d.columns,
		rows:       rows,
		suppressed: make([]bool, len(rows)),
	}, nil
}

// a minus sign is a sign only at the start or after a non-digit, so "20-30" stays a range
var numberPattern = regexp.MustCompile(`(?:^|[^\d.])(-?\d+(?:\.\d+)?)`)

// Numeric interprets a cell of a continuous or date attribute as a number.
// Generalized intervals are mapped to their midpoint; suppressed cells report false.
func (a *Attribute) Numeric(value string) (float64, bool) {
	if value == Suppressed || value == "" {
		return 0, false
	}

	if a.DataType == config.DataTypeDate {
		if t, err := time.Parse(a.DateFormat, value); err == nil {
			return float64(t.Unix()), true
		}
	}

	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v, true
	}

	matches := numberPattern.FindAllStringSubmatch(value, 2)
	if len(matches) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	mid := sum / float64(len(matches))
	if math.IsNaN(mid) {
		return 0, false
	}
	return mid, true
}
