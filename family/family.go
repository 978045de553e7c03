// Package family groups the estimators into the Linear, Tree and Boosting
// model families and adapts them to a single train/predict/importance
// contract.
package family

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/linear"
	"github.com/YuminosukeSato/intelliml/model_selection"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/sklearn/boosting"
	"github.com/YuminosukeSato/intelliml/sklearn/linear_model"
	"github.com/YuminosukeSato/intelliml/sklearn/naive_bayes"
	"github.com/YuminosukeSato/intelliml/sklearn/neighbors"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

// Task aliases the preprocessing task so callers need one import.
type Task = preprocessing.Task

// Family is the closed set of model families.
type Family int

const (
	Linear Family = iota
	Tree
	Boosting
)

var familyNames = [...]string{"linear", "tree", "boosting"}

func (f Family) String() string {
	if f < 0 || int(f) >= len(familyNames) {
		return "unknown"
	}
	return familyNames[f]
}

// Families lists every family in declaration order.
func Families() []Family { return []Family{Linear, Tree, Boosting} }

// ParseFamily maps a family name to its Family.
func ParseFamily(s string) (Family, error) {
	for i, name := range familyNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Family(i), nil
		}
	}
	return 0, errors.NewColumnError("family.ParseFamily", "unknown model family", s, familyNames[:])
}

// ModelID names one concrete model.
type ModelID string

const (
	LinearRegression   ModelID = "linear_regression"
	Ridge              ModelID = "ridge"
	Lasso              ModelID = "lasso"
	ElasticNet         ModelID = "elasticnet"
	LogisticRegression ModelID = "logistic_regression"
	SVM                ModelID = "svm"
	KNN                ModelID = "knn"
	NaiveBayes         ModelID = "naive_bayes"
	DecisionTree       ModelID = "decision_tree"
	RandomForest       ModelID = "random_forest"
	ExtraTrees         ModelID = "extra_trees"
	XGBoost            ModelID = "xgboost"
	LightGBM           ModelID = "lightgbm"
	CatBoost           ModelID = "catboost"
	GradientBoosting   ModelID = "gradient_boosting"
)

type grid map[string]model_selection.Distribution

// spec describes one model. An empty display name marks a task the model
// does not support.
type spec struct {
	family     Family
	classifier string
	regressor  string
	build      func(task Task, seed uint64) model.Tunable
	grid       func(task Task) grid
}

func both(task Task, c, r model.Tunable) model.Tunable {
	if task == preprocessing.Classification {
		return c
	}
	return r
}

func boostingSpec(v boosting.Variant, name string) spec {
	return spec{
		family:     Boosting,
		classifier: name + " Classifier",
		regressor:  name + " Regressor",
		build: func(task Task, seed uint64) model.Tunable {
			return both(task,
				boosting.NewGBMClassifier(v, boosting.WithRandomState(seed)),
				boosting.NewGBMRegressor(v, boosting.WithRandomState(seed)))
		},
		grid: func(Task) grid {
			g := grid{
				"n_estimators":  model_selection.Choice{50, 100, 200},
				"learning_rate": model_selection.LogUniform{Low: 0.01, High: 0.3},
				"subsample":     model_selection.Uniform{Low: 0.6, High: 1},
			}
			if v == boosting.LightGBM {
				g["num_leaves"] = model_selection.IntRange{Low: 8, High: 64}
				g["min_child_samples"] = model_selection.IntRange{Low: 5, High: 30}
			} else {
				g["max_depth"] = model_selection.IntRange{Low: 2, High: 8}
			}
			return g
		},
	}
}

func forestGrid(Task) grid {
	return grid{
		"n_estimators":     model_selection.Choice{50, 100, 200},
		"max_depth":        model_selection.Choice{0, 5, 10, 20},
		"min_samples_leaf": model_selection.IntRange{Low: 1, High: 4},
	}
}

var specs = map[ModelID]spec{
	LinearRegression: {
		family:    Linear,
		regressor: "Linear Regression",
		build:     func(Task, uint64) model.Tunable { return linear.NewLinearRegression() },
	},
	Ridge: {
		family:    Linear,
		regressor: "Ridge Regression",
		build:     func(Task, uint64) model.Tunable { return linear.NewRidge() },
		grid:      func(Task) grid { return grid{"alpha": model_selection.LogUniform{Low: 1e-3, High: 100}} },
	},
	Lasso: {
		family:    Linear,
		regressor: "Lasso Regression",
		build:     func(Task, uint64) model.Tunable { return linear.NewLasso() },
		grid:      func(Task) grid { return grid{"alpha": model_selection.LogUniform{Low: 1e-3, High: 10}} },
	},
	ElasticNet: {
		family:    Linear,
		regressor: "ElasticNet Regression",
		build:     func(Task, uint64) model.Tunable { return linear.NewElasticNet() },
		grid: func(Task) grid {
			return grid{
				"alpha":    model_selection.LogUniform{Low: 1e-3, High: 10},
				"l1_ratio": model_selection.Uniform{Low: 0.1, High: 0.9},
			}
		},
	},
	LogisticRegression: {
		family:     Linear,
		classifier: "Logistic Regression",
		build:      func(Task, uint64) model.Tunable { return linear_model.NewLogisticRegression() },
		grid:       func(Task) grid { return grid{"C": model_selection.LogUniform{Low: 1e-2, High: 100}} },
	},
	SVM: {
		family:     Linear,
		classifier: "Linear SVM",
		build:      func(Task, uint64) model.Tunable { return linear_model.NewLinearSVC() },
		grid:       func(Task) grid { return grid{"C": model_selection.LogUniform{Low: 1e-2, High: 100}} },
	},
	KNN: {
		family:     Linear,
		classifier: "K-Nearest Neighbors Classifier",
		regressor:  "K-Nearest Neighbors Regressor",
		build: func(task Task, _ uint64) model.Tunable {
			return both(task, neighbors.NewKNeighborsClassifier(), neighbors.NewKNeighborsRegressor())
		},
		grid: func(Task) grid {
			return grid{
				"n_neighbors": model_selection.IntRange{Low: 1, High: 15},
				"weights":     model_selection.Choice{"uniform", "distance"},
			}
		},
	},
	NaiveBayes: {
		family:     Linear,
		classifier: "Gaussian Naive Bayes",
		build:      func(Task, uint64) model.Tunable { return naive_bayes.NewGaussianNB() },
		grid:       func(Task) grid { return grid{"var_smoothing": model_selection.LogUniform{Low: 1e-11, High: 1e-5}} },
	},
	DecisionTree: {
		family:     Tree,
		classifier: "Decision Tree Classifier",
		regressor:  "Decision Tree Regressor",
		build: func(task Task, seed uint64) model.Tunable {
			return both(task,
				tree.NewDecisionTreeClassifier(tree.WithRandomState(seed)),
				tree.NewDecisionTreeRegressor(tree.WithRandomState(seed)))
		},
		grid: func(task Task) grid {
			g := grid{
				"max_depth":        model_selection.IntRange{Low: 2, High: 12},
				"min_samples_leaf": model_selection.IntRange{Low: 1, High: 8},
			}
			if task == preprocessing.Classification {
				g["criterion"] = model_selection.Choice{tree.Gini, tree.Entropy}
			}
			return g
		},
	},
	RandomForest: {
		family:     Tree,
		classifier: "Random Forest Classifier",
		regressor:  "Random Forest Regressor",
		build: func(task Task, seed uint64) model.Tunable {
			return both(task,
				tree.NewRandomForestClassifier(tree.WithRandomState(seed)),
				tree.NewRandomForestRegressor(tree.WithRandomState(seed)))
		},
		grid: forestGrid,
	},
	ExtraTrees: {
		family:     Tree,
		classifier: "Extra Trees Classifier",
		regressor:  "Extra Trees Regressor",
		build: func(task Task, seed uint64) model.Tunable {
			return both(task,
				tree.NewExtraTreesClassifier(tree.WithRandomState(seed)),
				tree.NewExtraTreesRegressor(tree.WithRandomState(seed)))
		},
		grid: forestGrid,
	},
	XGBoost:          boostingSpec(boosting.XGBoost, "XGBoost"),
	LightGBM:         boostingSpec(boosting.LightGBM, "LightGBM"),
	CatBoost:         boostingSpec(boosting.CatBoost, "CatBoost"),
	GradientBoosting: boostingSpec(boosting.GradientBoosting, "Gradient Boosting"),
}

// Family returns the family of id, or false for an unknown id.
func (id ModelID) Family() (Family, bool) {
	s, ok := specs[id]
	return s.family, ok
}

// Supports reports whether id can be trained for task.
func (id ModelID) Supports(task Task) bool {
	s, ok := specs[id]
	if !ok {
		return false
	}
	if task == preprocessing.Classification {
		return s.classifier != ""
	}
	return s.regressor != ""
}

// DisplayName returns the human-readable name of id for task.
func (id ModelID) DisplayName(task Task) string {
	s := specs[id]
	if task == preprocessing.Classification {
		return s.classifier
	}
	return s.regressor
}

// Models lists the ids of a family in alphabetical order.
func Models(f Family) []ModelID {
	var ids []ModelID
	for id, s := range specs {
		if s.family == f {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Default returns the model used when a family is requested without a
// recognised model name.
func Default(f Family, task Task) ModelID {
	switch f {
	case Tree:
		return RandomForest
	case Boosting:
		return XGBoost
	}
	if task == preprocessing.Classification {
		return LogisticRegression
	}
	return LinearRegression
}

// New constructs an unfitted estimator for id and task.
func New(id ModelID, task Task, seed uint64) (model.Tunable, error) {
	s, ok := specs[id]
	if !ok {
		return nil, errors.NewValueError("family.New", "unknown model "+string(id))
	}
	if !id.Supports(task) {
		return nil, errors.NewValueError("family.New", string(id)+" does not support "+string(task))
	}
	return s.build(task, seed), nil
}

// Grid returns the tuning distributions of id; nil when it has none.
func Grid(id ModelID, task Task) map[string]model_selection.Distribution {
	s, ok := specs[id]
	if !ok || s.grid == nil {
		return nil
	}
	return s.grid(task)
}

// Resolution is the outcome of resolving a model identifier.
type Resolution struct {
	Family    Family
	Model     ModelID
	Requested string
	// Fallback is set when the requested model was unknown or does not
	// support the task and the family default was used instead.
	Fallback bool
}

// ResolveIdentifier interprets identifiers such as "xgboost", "tree",
// "linear_ridge" or "boosting_auto". A family with an unrecognised or
// inapplicable model resolves to the family default; an unknown family is a
// DataError.
func ResolveIdentifier(ident string, task Task) (Resolution, error) {
	s := strings.ToLower(strings.TrimSpace(ident))
	res := Resolution{Requested: ident}

	if f, ok := ModelID(s).Family(); ok {
		res.Family, res.Model = f, ModelID(s)
	} else {
		famName, rest, _ := strings.Cut(s, "_")
		f, err := ParseFamily(famName)
		if err != nil {
			return res, errors.NewColumnError("family.ResolveIdentifier", "unknown model family", ident, familyNames[:])
		}
		res.Family = f
		if mf, ok := ModelID(rest).Family(); ok && mf == f {
			res.Model = ModelID(rest)
		} else {
			res.Model = Default(f, task)
			res.Fallback = rest != "" && rest != "auto"
		}
	}
	if !res.Model.Supports(task) {
		res.Model = Default(res.Family, task)
		res.Fallback = true
	}
	return res, nil
}
