// Package model_selection provides K-fold splitters, cross-validated
// scoring and randomized hyperparameter search.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Fold holds the row indices of one train/test split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter produces cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	NumSplits() int
}

// KFold assigns rows to NSplits consecutive folds, optionally after a seeded
// shuffle. The first n mod NSplits folds get one extra row.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a K-fold splitter.
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// NumSplits returns the number of folds.
func (kf *KFold) NumSplits() int { return kf.NSplits }

// Split returns NSplits folds over the rows of X.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	n, _ := X.Dims()
	if err := checkSplits("KFold.Split", kf.NSplits, n); err != nil {
		return nil, err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	assign := make([]int, n)
	start := 0
	for f := 0; f < kf.NSplits; f++ {
		size := n / kf.NSplits
		if f < n%kf.NSplits {
			size++
		}
		for _, i := range idx[start : start+size] {
			assign[i] = f
		}
		start += size
	}
	return buildFolds(assign, kf.NSplits), nil
}

// StratifiedKFold keeps the class proportions of y in every fold by dealing
// the rows of each class across folds in turn.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a stratified K-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// NumSplits returns the number of folds.
func (skf *StratifiedKFold) NumSplits() int { return skf.NSplits }

// Split returns NSplits stratified folds. y must be a column of labels.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	n, _ := X.Dims()
	if err := checkSplits("StratifiedKFold.Split", skf.NSplits, n); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "labels are required")
	}
	if r, _ := y.Dims(); r != n {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", n, r, 0)
	}

	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		byClass[y.At(i, 0)] = append(byClass[y.At(i, 0)], i)
	}
	labels := make([]float64, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	r := rand.New(rand.NewPCG(skf.Seed, skf.Seed))
	assign := make([]int, n)
	next := 0
	for _, l := range labels {
		rows := byClass[l]
		if skf.Shuffle {
			r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		}
		for _, i := range rows {
			assign[i] = next
			next = (next + 1) % skf.NSplits
		}
	}
	return buildFolds(assign, skf.NSplits), nil
}

func checkSplits(op string, k, n int) error {
	if k < 2 {
		return errors.NewValidationError("n_splits", "must be >= 2", k)
	}
	if k > n {
		return errors.NewValueError(op, "n_splits exceeds the number of samples")
	}
	return nil
}

// buildFolds turns a row→fold assignment into folds with ascending indices.
func buildFolds(assign []int, k int) []Fold {
	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].TestIndices = append(folds[j].TestIndices, i)
			} else {
				folds[j].TrainIndices = append(folds[j].TrainIndices, i)
			}
		}
	}
	return folds
}

// Subset copies the given rows of X and y.
func Subset(X, y mat.Matrix, rows []int) (*mat.Dense, *mat.Dense) {
	_, xc := X.Dims()
	_, yc := y.Dims()
	xs := mat.NewDense(len(rows), xc, nil)
	ys := mat.NewDense(len(rows), yc, nil)
	for i, r := range rows {
		for j := 0; j < xc; j++ {
			xs.Set(i, j, X.At(r, j))
		}
		for j := 0; j < yc; j++ {
			ys.Set(i, j, y.At(r, j))
		}
	}
	return xs, ys
}
