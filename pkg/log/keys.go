package log

// Canonical field keys. Estimators and pipeline stages use these so log
// records stay queryable across the whole module.
const (
	LoggerNameKey = "logger"
	ModelNameKey  = "model"
	ComponentKey  = "component"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	ClassesKey    = "classes"
	FoldsKey      = "folds"
	CandidatesKey = "candidates"
	WorkersKey    = "workers"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
	ScoreKey      = "score"
	PathKey       = "path"
	RowsKey       = "rows"
	SkippedKey    = "skipped"
)

// Canonical values for OperationKey and PhaseKey.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationExplore   = "explore"
	OperationTune      = "tune"
	OperationEvaluate  = "evaluate"
	OperationLoad      = "load"

	PhaseTraining  = "training"
	PhaseInference = "inference"
	PhaseTuning    = "tuning"
)
