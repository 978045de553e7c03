package log

// Model and component attributes.
const (
	// ModelNameKey is the display name of an estimator, e.g. "Random Forest Classifier".
	ModelNameKey = "model.name"

	// ModelIDKey is the enumerated model identifier, e.g. "random_forest".
	ModelIDKey = "model.id"

	// FamilyKey is the adapter family: linear, tree or boosting.
	FamilyKey = "model.family"

	OperationKey = "ml.operation"

	ComponentKey = "ml.component"

	PhaseKey = "ml.phase"

	TaskKey = "ml.task"
)

// Data attributes.
const (
	SamplesKey = "data.samples"

	FeaturesKey = "data.features"

	ColumnsKey = "data.columns"

	DatasetKey = "data.name"

	TargetKey = "data.target"

	MissingKey = "data.missing"
)

// Job attributes.
const (
	JobIDKey = "job.id"

	JobStatusKey = "job.status"

	CandidatesKey = "job.candidates"

	FailuresKey = "job.failures"
)

// Performance and metric attributes.
const (
	DurationMsKey = "perf.duration_ms"

	MetricNameKey = "metrics.name"

	ScoreKey = "metrics.score"

	CVMeanKey = "metrics.cv_mean"

	CVStdKey = "metrics.cv_std"

	TrialKey = "tuning.trial"

	RandomSeedKey = "config.random_seed"
)

// Explanation attributes.
const (
	MethodKey = "explain.method"

	FallbackKey = "explain.fallback"
)

// Well-known values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationPrepare   = "prepare"
	OperationTrainAll  = "train_all"
	OperationTune      = "tune"
	OperationExplain   = "explain"
	OperationExport    = "export"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
