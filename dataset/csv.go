package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// missingTokens are cell values read as missing.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// DatetimeLayouts are the formats tried when inferring a Datetime column.
var DatetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadCSV parses a CSV document with a header row and infers each column's
// kind: Numeric when every present value parses as a float, Datetime when
// every present value parses with one of the supported layouts, Text
// otherwise. A column with no present values is Numeric.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.NewDataError("dataset.ReadCSV", "malformed csv"), err.Error())
	}
	if len(records) == 0 {
		return nil, errors.NewDataError("dataset.ReadCSV", "empty file")
	}
	header := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		return nil, errors.NewDataError("dataset.ReadCSV", "no data rows")
	}

	cols := make([]*Column, len(header))
	raw := make([]string, len(rows))
	for j, name := range header {
		for i, rec := range rows {
			raw[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = inferColumn(strings.TrimSpace(name), raw)
	}
	return NewFrame(cols...)
}

func inferColumn(name string, raw []string) *Column {
	if floats, ok := parseFloats(raw); ok {
		return NumericColumn(name, floats)
	}
	if times, ok := parseTimes(raw); ok {
		return DatetimeColumn(name, times)
	}
	values := make([]string, len(raw))
	for i, v := range raw {
		if !missingTokens[v] {
			values[i] = v
		}
	}
	return TextColumn(name, values)
}

func parseFloats(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if missingTokens[v] {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func parseTimes(raw []string) ([]time.Time, bool) {
	out := make([]time.Time, len(raw))
	layout := ""
	for i, v := range raw {
		if missingTokens[v] {
			continue
		}
		if layout == "" {
			for _, l := range DatetimeLayouts {
				if _, err := time.Parse(l, v); err == nil {
					layout = l
					break
				}
			}
			if layout == "" {
				return nil, false
			}
		}
		t, err := time.Parse(layout, v)
		if err != nil {
			return nil, false
		}
		out[i] = t
	}
	return out, layout != ""
}

// WriteCSV writes the frame with a header row. Missing cells are empty.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return errors.Wrap(err, "dataset.WriteCSV")
	}
	rec := make([]string, f.NumCols())
	for i := 0; i < f.NumRows(); i++ {
		for j, c := range f.cols {
			rec[j] = formatCell(c, i)
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "dataset.WriteCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "dataset.WriteCSV")
}

func formatCell(c *Column, i int) string {
	if c.IsMissing(i) {
		return ""
	}
	switch c.Kind {
	case Text:
		return c.Strings[i]
	case Datetime:
		return c.Times[i].Format(time.RFC3339)
	default:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	}
}
