// Package dataset holds the active tabular dataset and the column-typed frame
// it is stored in.
package dataset

import (
	"math"
	"time"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Kind is the logical type of a column.
type Kind int

const (
	Numeric Kind = iota
	Text
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case Datetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Column is one named, typed column. Exactly one of the value slices is
// populated, according to Kind. Missing values are NaN for Numeric, "" for
// Text and the zero time for Datetime.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Times   []time.Time
}

// NumericColumn builds a numeric column; NaN marks missing values.
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: values}
}

// TextColumn builds a text column; "" marks missing values.
func TextColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: Text, Strings: values}
}

// DatetimeColumn builds a datetime column; the zero time marks missing values.
func DatetimeColumn(name string, values []time.Time) *Column {
	return &Column{Name: name, Kind: Datetime, Times: values}
}

// Len returns the number of rows.
func (c *Column) Len() int {
	switch c.Kind {
	case Text:
		return len(c.Strings)
	case Datetime:
		return len(c.Times)
	default:
		return len(c.Floats)
	}
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case Text:
		return c.Strings[i] == ""
	case Datetime:
		return c.Times[i].IsZero()
	default:
		return math.IsNaN(c.Floats[i])
	}
}

// MissingCount returns the number of missing rows.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Value returns row i as float64, string or time.Time, or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case Text:
		return c.Strings[i]
	case Datetime:
		return c.Times[i]
	default:
		return c.Floats[i]
	}
}

// Float returns row i as a number: the value for Numeric, Unix seconds for
// Datetime and NaN for Text or missing rows.
func (c *Column) Float(i int) float64 {
	switch c.Kind {
	case Numeric:
		return c.Floats[i]
	case Datetime:
		if c.Times[i].IsZero() {
			return math.NaN()
		}
		return float64(c.Times[i].Unix())
	default:
		return math.NaN()
	}
}

// take returns a copy of the column restricted to rows.
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Text:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	case Datetime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	default:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	}
	return out
}

// Frame is an immutable table of equally long columns with unique names.
// Operations that change the table return a new Frame.
type Frame struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// NewFrame validates and assembles columns into a Frame.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c.Name == "" {
			return nil, errors.NewDataError("dataset.NewFrame", "column name must not be empty")
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewColumnError("dataset.NewFrame", "duplicate column name", c.Name, nil)
		}
		f.index[c.Name] = i
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, errors.NewDimensionError("dataset.NewFrame", f.nrows, c.Len(), 0)
		}
	}
	return f, nil
}

// MustFrame is NewFrame for fixtures; it panics on error.
func MustFrame(cols ...*Column) *Frame {
	f, err := NewFrame(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) NumRows() int { return f.nrows }
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. Callers must not mutate them.
func (f *Frame) Columns() []*Column {
	return f.cols
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Value returns the cell at row, column name; nil when missing or absent.
func (f *Frame) Value(row int, name string) any {
	c, ok := f.Column(name)
	if !ok {
		return nil
	}
	return c.Value(row)
}

// Row returns the named cells of one row, in the order given.
func (f *Frame) Row(row int, names []string) []any {
	out := make([]any, len(names))
	for j, n := range names {
		out[j] = f.Value(row, n)
	}
	return out
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	kept := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	out := MustFrame(kept...)
	out.nrows = f.nrows
	return out
}

// Take returns a frame with only the given rows, in that order.
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(rows)
	}
	out := MustFrame(cols...)
	out.nrows = len(rows)
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	n = min(n, f.nrows)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.Take(rows)
}

// WithColumn returns a frame with col appended, or replacing the column of
// the same name.
func (f *Frame) WithColumn(col *Column) (*Frame, error) {
	cols := make([]*Column, 0, len(f.cols)+1)
	replaced := false
	for _, c := range f.cols {
		if c.Name == col.Name {
			cols = append(cols, col)
			replaced = true
			continue
		}
		cols = append(cols, c)
	}
	if !replaced {
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

// Records returns every row as a map keyed by column name.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.nrows)
	for i := range out {
		rec := make(map[string]any, len(f.cols))
		for _, c := range f.cols {
			rec[c.Name] = c.Value(i)
		}
		out[i] = rec
	}
	return out
}
