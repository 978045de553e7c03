package family

import (
	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/linear"
	"github.com/YuminosukeSato/intelliml/sklearn/boosting"
	"github.com/YuminosukeSato/intelliml/sklearn/linear_model"
	"github.com/YuminosukeSato/intelliml/sklearn/naive_bayes"
	"github.com/YuminosukeSato/intelliml/sklearn/neighbors"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

// Every estimator a ModelID can build travels through gob as model.Tunable.
func init() {
	model.Register(
		&linear.LinearRegression{}, &linear.Ridge{}, &linear.Lasso{}, &linear.ElasticNet{},
		&linear_model.LogisticRegression{}, &linear_model.LinearSVC{},
		&neighbors.KNeighborsClassifier{}, &neighbors.KNeighborsRegressor{},
		&naive_bayes.GaussianNB{},
		&tree.DecisionTreeClassifier{}, &tree.DecisionTreeRegressor{},
		&tree.RandomForestClassifier{}, &tree.RandomForestRegressor{},
		&tree.ExtraTreesClassifier{}, &tree.ExtraTreesRegressor{},
		&boosting.GBMClassifier{}, &boosting.GBMRegressor{},
	)
}
