package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NumericStats summarizes one numeric column over its present values.
type NumericStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// ValueCount is a distinct value and its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalStats summarizes one text column.
type CategoricalStats struct {
	Unique    int          `json:"unique"`
	TopValues []ValueCount `json:"top_values"`
}

// MissingStats is the missing count and percentage of one column.
type MissingStats struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Correlation is a Pearson correlation between two numeric columns.
type Correlation struct {
	Left  string  `json:"col1"`
	Right string  `json:"col2"`
	Value float64 `json:"correlation"`
}

// Quality is the rule-based data quality assessment.
type Quality struct {
	Score  int      `json:"quality_score"`
	Issues []string `json:"issues"`
}

// Analysis is the exploratory report of a frame.
type Analysis struct {
	Rows               int                           `json:"rows"`
	Columns            int                           `json:"columns"`
	DuplicateRows      int                           `json:"duplicate_rows"`
	Numeric            map[string]NumericStats       `json:"numeric_stats"`
	Categorical        map[string]CategoricalStats   `json:"categorical_stats"`
	Missing            map[string]MissingStats       `json:"missing_values"`
	CorrelationMatrix  map[string]map[string]float64 `json:"correlation_matrix,omitempty"`
	StrongCorrelations []Correlation                 `json:"strong_correlations"`
	Quality            Quality                       `json:"data_quality"`
	Insights           []string                      `json:"insights"`
	Recommendations    []string                      `json:"recommendations"`
}

const (
	strongCorrelation = 0.7
	topValueCount     = 5
)

// Analyze computes descriptive statistics, correlations, a quality score and
// rule-based insights.
func Analyze(f *Frame) *Analysis {
	a := &Analysis{
		Rows:          f.NumRows(),
		Columns:       f.NumCols(),
		DuplicateRows: f.NumRows() - dropDuplicates(f).NumRows(),
		Numeric:       make(map[string]NumericStats),
		Categorical:   make(map[string]CategoricalStats),
		Missing:       make(map[string]MissingStats),
	}

	var numericNames []string
	for _, c := range f.Columns() {
		miss := c.MissingCount()
		a.Missing[c.Name] = MissingStats{Count: miss, Percent: percent(miss, f.NumRows())}
		switch c.Kind {
		case Numeric:
			numericNames = append(numericNames, c.Name)
			a.Numeric[c.Name] = numericStats(presentFloats(c))
		case Text:
			top := topValues(c, 0)
			a.Categorical[c.Name] = CategoricalStats{Unique: len(top), TopValues: top[:min(topValueCount, len(top))]}
		}
	}

	a.correlations(f, numericNames)
	a.Quality = assessQuality(f, a)
	a.Recommendations = recommend(a)
	a.Insights = insights(a)
	return a
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func numericStats(vals []float64) NumericStats {
	s := NumericStats{Count: len(vals)}
	if len(vals) == 0 {
		return s
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	s.Median = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	s.Q25 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	s.Q75 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	if len(vals) > 2 && s.Std > 0 {
		s.Skewness = stat.Skew(vals, nil)
		s.Kurtosis = stat.ExKurtosis(vals, nil)
	}
	if math.IsNaN(s.Std) {
		s.Std = 0
	}
	return s
}

// topValues returns the distinct present values by descending count, ties
// by value; limit <= 0 returns all.
func topValues(c *Column, limit int) []ValueCount {
	counts := make(map[string]int)
	for _, v := range c.Strings {
		if v != "" {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// correlations uses rows where both columns are present.
func (a *Analysis) correlations(f *Frame, names []string) {
	if len(names) < 2 {
		return
	}
	a.CorrelationMatrix = make(map[string]map[string]float64, len(names))
	for _, n := range names {
		a.CorrelationMatrix[n] = map[string]float64{n: 1}
	}
	for i := 0; i < len(names); i++ {
		ci, _ := f.Column(names[i])
		for j := i + 1; j < len(names); j++ {
			cj, _ := f.Column(names[j])
			var xs, ys []float64
			for r := 0; r < f.NumRows(); r++ {
				x, y := ci.Floats[r], cj.Floats[r]
				if !math.IsNaN(x) && !math.IsNaN(y) {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			if len(xs) < 2 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) {
				continue
			}
			a.CorrelationMatrix[names[i]][names[j]] = r
			a.CorrelationMatrix[names[j]][names[i]] = r
			if math.Abs(r) > strongCorrelation {
				a.StrongCorrelations = append(a.StrongCorrelations, Correlation{Left: names[i], Right: names[j], Value: r})
			}
		}
	}
}

func assessQuality(f *Frame, a *Analysis) Quality {
	var issues []string
	var high []string
	for _, name := range f.Names() {
		if a.Missing[name].Percent > 50 {
			high = append(high, name)
		}
	}
	if len(high) > 0 {
		issues = append(issues, fmt.Sprintf("High missing values in: %v", high))
	}
	if a.DuplicateRows > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate rows found", a.DuplicateRows))
	}
	var constant []string
	for _, c := range f.Columns() {
		if distinct(c) == 1 {
			constant = append(constant, c.Name)
		}
	}
	if len(constant) > 0 {
		issues = append(issues, fmt.Sprintf("Constant columns: %v", constant))
	}
	for _, name := range f.Names() {
		if cs, ok := a.Categorical[name]; ok && float64(cs.Unique) > 0.9*float64(f.NumRows()) {
			issues = append(issues, fmt.Sprintf("High cardinality in %s", name))
		}
	}
	return Quality{Score: max(0, 100-len(issues)*10), Issues: issues}
}

func distinct(c *Column) int {
	seen := make(map[string]bool)
	for i := 0; i < c.Len(); i++ {
		if !c.IsMissing(i) {
			seen[formatCell(c, i)] = true
		}
	}
	return len(seen)
}

func recommend(a *Analysis) []string {
	var out []string
	maxMissing := 0.0
	for _, m := range a.Missing {
		maxMissing = math.Max(maxMissing, m.Percent)
	}
	if maxMissing > 5 {
		out = append(out, "Consider handling missing values before training models")
	}
	if a.DuplicateRows > 0 {
		out = append(out, "Remove duplicate rows to improve data quality")
	}
	if len(a.Numeric) > 0 {
		minRange, maxRange := math.Inf(1), 0.0
		for _, s := range a.Numeric {
			if s.Count == 0 {
				continue
			}
			minRange = math.Min(minRange, s.Max-s.Min)
			maxRange = math.Max(maxRange, s.Max-s.Min)
		}
		if !math.IsInf(minRange, 1) && maxRange > 100*minRange {
			out = append(out, "Consider feature scaling due to different value ranges")
		}
	}
	if len(a.Categorical) > 0 {
		out = append(out, "Categorical variables will need encoding for ML models")
	}
	return out
}

func insights(a *Analysis) []string {
	out := []string{fmt.Sprintf("Dataset has %d rows and %d columns", a.Rows, a.Columns)}
	total := 0
	for _, m := range a.Missing {
		total += m.Count
	}
	if total > 0 {
		out = append(out, fmt.Sprintf("Found %d missing values across the dataset", total))
	}
	names := make([]string, 0, len(a.Numeric))
	for n := range a.Numeric {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if s := a.Numeric[n]; math.Abs(s.Skewness) > 1 {
			out = append(out, fmt.Sprintf("Column '%s' is highly skewed (skewness %.2f)", n, s.Skewness))
		}
	}
	for _, c := range a.StrongCorrelations {
		out = append(out, fmt.Sprintf("Strong correlation (%.2f) between '%s' and '%s'", c.Value, c.Left, c.Right))
	}
	return out
}
