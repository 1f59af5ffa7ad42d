// Package breeding reads the breeding attempt metadata table (main.csv).
package breeding

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nilomr/majorvocal/internal/errors"
)

// Column names with a meaning to the pipeline. Other columns are carried
// through untouched.
const (
	ColumnPNum           = "pnum"
	ColumnLayDate        = "lay_date"
	ColumnNVocalisations = "n_vocalisations"
)

// DateLayout is the layout lay dates are written with.
const DateLayout = "2006-01-02"

// layDateLayouts are tried in order when parsing lay_date.
var layDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"20060102",
}

// Attempt is one breeding attempt (one row of the table).
type Attempt struct {
	PNum           string
	LayDate        *time.Time // nil when lay_date is empty or the column is absent
	NVocalisations *int       // nil when n_vocalisations is empty or the column is absent
	Values         []string   // raw values aligned with Table.Columns
}

// Table holds the breeding attempts in file order.
type Table struct {
	Columns  []string // every column except pnum, in header order
	Attempts []Attempt
	index    map[string]int
}

// Load reads the table at path.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error opening breeding table: %w", err)).
			Component("breeding").
			Category(errors.CategoryFileIO).
			Context("operation", "open_breeding_table").
			Build()
	}
	defer file.Close()

	return Read(file)
}

// Read parses a breeding table. The header must contain a pnum column and
// pnum values must be unique.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, parseError(fmt.Errorf("error reading breeding table header: %w", err), 1)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	pnumCol := -1
	for i, name := range header {
		if name == ColumnPNum {
			pnumCol = i
			break
		}
	}
	if pnumCol < 0 {
		return nil, parseError(fmt.Errorf("breeding table has no %q column", ColumnPNum), 1)
	}

	t := &Table{index: make(map[string]int)}
	for i, name := range header {
		if i != pnumCol {
			t.Columns = append(t.Columns, name)
		}
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, parseError(fmt.Errorf("error reading breeding table: %w", err), line)
		}

		attempt, err := parseRow(header, pnumCol, row)
		if err != nil {
			return nil, parseError(err, line)
		}
		if _, dup := t.index[attempt.PNum]; dup {
			return nil, parseError(fmt.Errorf("duplicate pnum %q", attempt.PNum), line)
		}

		t.index[attempt.PNum] = len(t.Attempts)
		t.Attempts = append(t.Attempts, attempt)
	}

	return t, nil
}

func parseRow(header []string, pnumCol int, row []string) (Attempt, error) {
	a := Attempt{
		PNum:   strings.TrimSpace(row[pnumCol]),
		Values: make([]string, 0, len(row)-1),
	}
	if a.PNum == "" {
		return Attempt{}, fmt.Errorf("empty pnum")
	}

	for i, raw := range row {
		if i == pnumCol {
			continue
		}
		value := strings.TrimSpace(raw)
		a.Values = append(a.Values, value)

		switch header[i] {
		case ColumnLayDate:
			d, err := ParseLayDate(value)
			if err != nil {
				return Attempt{}, fmt.Errorf("pnum %s: %w", a.PNum, err)
			}
			a.LayDate = d
		case ColumnNVocalisations:
			n, err := parseCount(value)
			if err != nil {
				return Attempt{}, fmt.Errorf("pnum %s: %w", a.PNum, err)
			}
			a.NVocalisations = n
		}
	}

	return a, nil
}

// ParseLayDate parses a lay date in any accepted layout. Empty and NA values
// give nil.
func ParseLayDate(value string) (*time.Time, error) {
	if isMissing(value) {
		return nil, nil
	}
	for _, layout := range layDateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
			return &day, nil
		}
	}
	return nil, fmt.Errorf("unrecognised lay_date %q", value)
}

// parseCount accepts integers and integral floats such as "12.0".
func parseCount(value string) (*int, error) {
	if isMissing(value) {
		return nil, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f != math.Trunc(f) {
		return nil, fmt.Errorf("n_vocalisations %q is not an integer", value)
	}
	n := int(f)
	return &n, nil
}

func isMissing(value string) bool {
	switch strings.ToLower(value) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

func parseError(err error, line int) error {
	return errors.New(err).
		Component("breeding").
		Category(errors.CategoryFileParsing).
		Context("operation", "parse_breeding_table").
		Context("line", line).
		Build()
}

// Lookup returns the attempt with the given pnum.
func (t *Table) Lookup(pnum string) (Attempt, bool) {
	i, ok := t.index[pnum]
	if !ok {
		return Attempt{}, false
	}
	return t.Attempts[i], true
}

// Eligible returns, in file order, the pnums with at least one manually
// annotated vocalisation. Only these nests are sent to the classifier.
func (t *Table) Eligible() []string {
	var out []string
	for _, a := range t.Attempts {
		if a.NVocalisations != nil && *a.NVocalisations > 0 {
			out = append(out, a.PNum)
		}
	}
	return out
}

// Value returns the raw value of column for attempt a, with lay_date
// rewritten in DateLayout.
func (t *Table) Value(a Attempt, column int) string {
	if t.Columns[column] == ColumnLayDate && a.LayDate != nil {
		return a.LayDate.Format(DateLayout)
	}
	if column < len(a.Values) {
		return a.Values[column]
	}
	return ""
}
