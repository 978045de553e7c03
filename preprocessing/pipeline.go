package preprocessing

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
)

// Task is the inferred learning problem.
type Task string

const (
	Classification Task = "classification"
	Regression     Task = "regression"
)

// maxClassificationCardinality is the distinct-value bound under which a
// numeric target is treated as class labels.
const maxClassificationCardinality = 10

// Prepared is a frame encoded into a numeric design matrix. Missing feature
// values are NaN; imputation and scaling happen in Split.
type Prepared struct {
	X            *mat.Dense
	Y            []float64
	Task         Task
	State        *State
	FeatureNames []string
}

// Split holds the train/test partition after imputation and scaling.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense
	TrainIndex    []int
	TestIndex     []int
}

// InferTask classifies a target column: text is always classification, a
// numeric column with fewer than 10 distinct values is classification, and
// anything else is regression.
func InferTask(c *dataset.Column) Task {
	if c.Kind == dataset.Text {
		return Classification
	}
	seen := make(map[float64]struct{})
	for i := 0; i < c.Len(); i++ {
		v := c.Float(i)
		if math.IsNaN(v) {
			continue
		}
		seen[v] = struct{}{}
		if len(seen) >= maxClassificationCardinality {
			return Regression
		}
	}
	return Classification
}

// Prepare separates the target from the features, encodes text columns,
// converts datetimes to Unix seconds and encodes a classification target.
// Rows whose target is missing are dropped.
func Prepare(f *dataset.Frame, target string) (*Prepared, error) {
	const op = "preprocessing.Prepare"
	if f == nil || f.NumRows() == 0 {
		return nil, errors.NewDataError(op, "dataset is empty")
	}
	tcol, ok := f.Column(target)
	if !ok {
		return nil, errors.NewColumnError(op, "target column not found", target, f.Names())
	}
	features := f.Drop(target)
	if features.NumCols() == 0 {
		return nil, errors.NewDataError(op, "no feature columns besides the target")
	}

	labelled := make([]int, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		if !tcol.IsMissing(i) {
			labelled = append(labelled, i)
		}
	}
	if len(labelled) == 0 {
		return nil, errors.NewColumnError(op, "target column has no values", target, nil)
	}
	if len(labelled) < f.NumRows() {
		log.GetLoggerWithName("preprocessing").Warn("dropping rows with missing target",
			log.TargetKey, target, log.MissingKey, f.NumRows()-len(labelled))
		f = f.Take(labelled)
		tcol, _ = f.Column(target)
		features = f.Drop(target)
	}

	state := &State{
		Target:       target,
		Task:         InferTask(tcol),
		FeatureNames: features.Names(),
		Encoders:     make(map[string]*LabelEncoder),
	}
	state.FeatureKinds = make([]dataset.Kind, features.NumCols())

	n, p := features.NumRows(), features.NumCols()
	X := mat.NewDense(n, p, nil)
	for j, c := range features.Columns() {
		state.FeatureKinds[j] = c.Kind
		if c.Kind == dataset.Text {
			enc := &LabelEncoder{}
			if err := enc.FitStrings(c.Strings); err != nil {
				// every value missing; the column encodes to NaN throughout
				enc = &LabelEncoder{}
			}
			state.Encoders[c.Name] = enc
		}
		for i := 0; i < n; i++ {
			X.Set(i, j, state.encodeCell(j, c.Value(i)))
		}
	}

	y := make([]float64, n)
	if state.Task == Classification {
		enc := &LabelEncoder{}
		var err error
		if tcol.Kind == dataset.Text {
			err = enc.FitStrings(tcol.Strings)
		} else {
			vals := make([]float64, n)
			for i := range vals {
				vals[i] = tcol.Float(i)
			}
			err = enc.FitFloats(vals)
		}
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		for i := 0; i < n; i++ {
			var raw any = tcol.Float(i)
			if tcol.Kind == dataset.Text {
				raw = tcol.Strings[i]
			}
			code, err := enc.Encode(raw)
			if err != nil {
				return nil, errors.Wrap(err, op)
			}
			y[i] = float64(code)
		}
		state.TargetEncoder = enc
	} else {
		for i := 0; i < n; i++ {
			y[i] = tcol.Float(i)
		}
	}

	return &Prepared{
		X:            X,
		Y:            y,
		Task:         state.Task,
		State:        state,
		FeatureNames: state.FeatureNames,
	}, nil
}

// Split shuffles rows with a fixed seed, holds out testSize of them, and fits
// the imputer and scaler on the training rows only.
func (p *Prepared) Split(testSize float64, seed uint64) (*Split, error) {
	const op = "preprocessing.Split"
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n, cols := p.X.Dims()
	nTest := int(math.Ceil(float64(n) * testSize))
	if n < 2 || nTest >= n {
		return nil, errors.NewDataError(op, "not enough labelled rows for a train/test split")
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)

	xtr, ytr := p.rows(trainIdx, cols)
	xte, yte := p.rows(testIdx, cols)

	imp := NewMeanImputer()
	filled, err := imp.FitTransform(xtr)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	scaler := NewStandardScalerDefault()
	scaledTrain, err := scaler.FitTransform(filled)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	filledTest, err := imp.Transform(xte)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	scaledTest, err := scaler.Transform(filledTest)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	p.State.Imputer = imp
	p.State.Scaler = scaler

	return &Split{
		XTrain:     mat.DenseCopyOf(scaledTrain),
		XTest:      mat.DenseCopyOf(scaledTest),
		YTrain:     ytr,
		YTest:      yte,
		TrainIndex: trainIdx,
		TestIndex:  testIdx,
	}, nil
}

func (p *Prepared) rows(idx []int, cols int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(len(idx), cols, nil)
	y := mat.NewVecDense(len(idx), nil)
	for k, i := range idx {
		X.SetRow(k, p.X.RawRowView(i))
		y.SetVec(k, p.Y[i])
	}
	return X, y
}
