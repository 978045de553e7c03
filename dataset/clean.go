package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// FillStrategy selects how Clean fills missing cells.
type FillStrategy string

const (
	FillNone   FillStrategy = ""
	FillMean   FillStrategy = "mean"
	FillMedian FillStrategy = "median"
	FillMode   FillStrategy = "mode"
	FillDrop   FillStrategy = "drop"
)

// CleanOptions configures Clean.
type CleanOptions struct {
	DropDuplicates bool
	// DropColumnsAbove removes columns whose missing fraction exceeds it;
	// zero disables the check.
	DropColumnsAbove float64
	Fill             FillStrategy
}

// Clean applies the cleaning options and returns a new frame. Mean and median
// fill apply to numeric columns; text and datetime columns use the mode.
func Clean(f *Frame, opts CleanOptions) (*Frame, error) {
	out := f
	if opts.DropColumnsAbove > 0 && f.NumRows() > 0 {
		var drop []string
		for _, c := range f.Columns() {
			if float64(c.MissingCount())/float64(f.NumRows()) > opts.DropColumnsAbove {
				drop = append(drop, c.Name)
			}
		}
		out = out.Drop(drop...)
	}
	if opts.DropDuplicates {
		out = dropDuplicates(out)
	}

	switch opts.Fill {
	case FillNone:
	case FillDrop:
		out = dropMissingRows(out)
	case FillMean, FillMedian, FillMode:
		cols := make([]*Column, out.NumCols())
		for i, c := range out.Columns() {
			cols[i] = fillColumn(c, opts.Fill)
		}
		var err error
		if out, err = NewFrame(cols...); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewValidationError("fill", "unknown fill strategy", string(opts.Fill))
	}
	if out.NumCols() == 0 {
		return nil, errors.NewDataError("dataset.Clean", "cleaning removed every column")
	}
	return out, nil
}

func rowKey(f *Frame, i int) string {
	var b strings.Builder
	for _, c := range f.Columns() {
		b.WriteString(formatCell(c, i))
		b.WriteByte(0)
	}
	return b.String()
}

func dropDuplicates(f *Frame) *Frame {
	seen := make(map[string]bool, f.NumRows())
	rows := make([]int, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		k := rowKey(f, i)
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, i)
	}
	return f.Take(rows)
}

func dropMissingRows(f *Frame) *Frame {
	rows := make([]int, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		complete := true
		for _, c := range f.Columns() {
			if c.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// presentFloats returns the non-missing values of a numeric column.
func presentFloats(c *Column) []float64 {
	out := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v := c.Float(i); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func fillColumn(c *Column, strategy FillStrategy) *Column {
	if c.MissingCount() == 0 {
		return c
	}
	out := c.take(allRows(c.Len()))
	switch c.Kind {
	case Numeric:
		vals := presentFloats(c)
		if len(vals) == 0 {
			return out
		}
		var fill float64
		switch strategy {
		case FillMedian:
			sort.Float64s(vals)
			fill = stat.Quantile(0.5, stat.Empirical, vals, nil)
		case FillMode:
			fill, _ = stat.Mode(vals, nil)
		default:
			fill = stat.Mean(vals, nil)
		}
		for i, v := range out.Floats {
			if math.IsNaN(v) {
				out.Floats[i] = fill
			}
		}
	case Text:
		top := topValues(c, 1)
		if len(top) == 0 {
			return out
		}
		for i, v := range out.Strings {
			if v == "" {
				out.Strings[i] = top[0].Value
			}
		}
	case Datetime:
		vals := presentFloats(c)
		if len(vals) == 0 {
			return out
		}
		fill, _ := stat.Mode(vals, nil)
		for i, v := range out.Times {
			if v.IsZero() {
				out.Times[i] = time.Unix(int64(fill), 0).UTC()
			}
		}
	}
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// OutlierMethod selects the rule used by RemoveOutliers.
type OutlierMethod string

const (
	// OutlierIQR drops values outside [q1 - k*IQR, q3 + k*IQR].
	OutlierIQR OutlierMethod = "iqr"
	// OutlierZScore drops values with |z| > k.
	OutlierZScore OutlierMethod = "zscore"
)

// RemoveOutliers drops rows holding an outlier in any of the given numeric
// columns (every numeric column when columns is empty). Missing cells are
// never outliers. k defaults to 1.5 for IQR and 3 for z-score.
func RemoveOutliers(f *Frame, columns []string, method OutlierMethod, k float64) (*Frame, int, error) {
	if len(columns) == 0 {
		for _, c := range f.Columns() {
			if c.Kind == Numeric {
				columns = append(columns, c.Name)
			}
		}
	}
	if k <= 0 {
		k = 1.5
		if method == OutlierZScore {
			k = 3
		}
	}

	outlier := make([]bool, f.NumRows())
	for _, name := range columns {
		c, ok := f.Column(name)
		if !ok {
			return nil, 0, errors.NewColumnError("dataset.RemoveOutliers", "column not found", name, f.Names())
		}
		if c.Kind != Numeric {
			return nil, 0, errors.NewColumnError("dataset.RemoveOutliers", "column is not numeric", name, nil)
		}
		vals := presentFloats(c)
		if len(vals) < 4 {
			continue
		}
		var lo, hi float64
		switch method {
		case OutlierZScore:
			mean, std := stat.MeanStdDev(vals, nil)
			lo, hi = mean-k*std, mean+k*std
		case OutlierIQR:
			sort.Float64s(vals)
			q1 := stat.Quantile(0.25, stat.LinInterp, vals, nil)
			q3 := stat.Quantile(0.75, stat.LinInterp, vals, nil)
			lo, hi = q1-k*(q3-q1), q3+k*(q3-q1)
		default:
			return nil, 0, errors.NewValidationError("method", "unknown outlier method", string(method))
		}
		for i, v := range c.Floats {
			if !math.IsNaN(v) && (v < lo || v > hi) {
				outlier[i] = true
			}
		}
	}

	rows := make([]int, 0, f.NumRows())
	for i, o := range outlier {
		if !o {
			rows = append(rows, i)
		}
	}
	return f.Take(rows), f.NumRows() - len(rows), nil
}

// FeatureOp is a binary or unary column operation used by AddFeature.
type FeatureOp string

const (
	OpSum     FeatureOp = "sum"
	OpDiff    FeatureOp = "diff"
	OpProduct FeatureOp = "product"
	OpRatio   FeatureOp = "ratio"
	OpLog     FeatureOp = "log"
)

// FeatureSpec describes a derived numeric column. Right is ignored for OpLog.
type FeatureSpec struct {
	Name  string
	Op    FeatureOp
	Left  string
	Right string
}

// AddFeature derives a numeric column. Undefined results (division by zero,
// log of a non-positive value) are missing.
func AddFeature(f *Frame, spec FeatureSpec) (*Frame, error) {
	const op = "dataset.AddFeature"
	left, err := numericColumn(f, op, spec.Left)
	if err != nil {
		return nil, err
	}
	var right *Column
	if spec.Op != OpLog {
		if right, err = numericColumn(f, op, spec.Right); err != nil {
			return nil, err
		}
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s", spec.Left, spec.Op)
		if right != nil {
			name += "_" + spec.Right
		}
	}

	vals := make([]float64, f.NumRows())
	for i := range vals {
		a := left.Float(i)
		switch spec.Op {
		case OpSum:
			vals[i] = a + right.Float(i)
		case OpDiff:
			vals[i] = a - right.Float(i)
		case OpProduct:
			vals[i] = a * right.Float(i)
		case OpRatio:
			b := right.Float(i)
			if b == 0 {
				vals[i] = math.NaN()
			} else {
				vals[i] = a / b
			}
		case OpLog:
			if a <= 0 {
				vals[i] = math.NaN()
			} else {
				vals[i] = math.Log(a)
			}
		default:
			return nil, errors.NewValidationError("op", "unknown feature operation", string(spec.Op))
		}
	}
	return f.WithColumn(NumericColumn(name, vals))
}

func numericColumn(f *Frame, op, name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, errors.NewColumnError(op, "column not found", name, f.Names())
	}
	if c.Kind == Text {
		return nil, errors.NewColumnError(op, "column is not numeric", name, nil)
	}
	return c, nil
}

// Clean cleans the active dataset in place.
func (s *Store) Clean(opts CleanOptions) (Info, error) {
	return s.Replace("clean", func(f *Frame) (*Frame, error) {
		return Clean(f, opts)
	})
}

// RemoveOutliers removes outlier rows from the active dataset.
func (s *Store) RemoveOutliers(columns []string, method OutlierMethod, k float64) (Info, int, error) {
	var removed int
	info, err := s.Replace("remove_outliers", func(f *Frame) (*Frame, error) {
		out, n, err := RemoveOutliers(f, columns, method, k)
		removed = n
		return out, err
	})
	return info, removed, err
}

// AddFeature derives a column on the active dataset.
func (s *Store) AddFeature(spec FeatureSpec) (Info, error) {
	return s.Replace("feature_engineering", func(f *Frame) (*Frame, error) {
		return AddFeature(f, spec)
	})
}
