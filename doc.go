// Package intelliml is the core of a voice-driven AutoML service: load a
// tabular dataset, train and rank a panel of models from several families,
// then serve, explain and export the winner.
//
// The packages compose bottom-up:
//
//   - dataset: in-memory frames, CSV I/O, profiling and cleaning
//   - preprocessing: target/feature separation, encoding, imputation,
//     scaling and the replayable State used at serving time
//   - family: linear, tree and boosting adapters over the estimators in
//     linear and sklearn/...
//   - trainer: the TrainAll orchestrator with per-candidate isolation,
//     ranking and a time budget
//   - registry: the in-memory job store
//   - serving: single-row and batch prediction, model bundle export
//   - explain: TreeSHAP, permutation SHAP and native-importance fallback
//   - narrative: human-readable run summaries
//   - leaderboard: optional sqlite history of every ranked candidate
//   - platform: the operation surface tying the above together
//
// A minimal session:
//
//	store := dataset.NewStore()
//	if _, err := store.Load("customers.csv", f); err != nil {
//	    return err
//	}
//	p, err := platform.New(config.Default(), store, registry.New())
//	if err != nil {
//	    return err
//	}
//	job, err := p.Train(ctx, "purchased", platform.TrainRequest{})
//	if err != nil {
//	    return err
//	}
//	pred, err := p.Predict(job.ID, []any{34.0, "osaka"})
//
// The cmd/intelliml binary exposes the same flow on the command line.
package intelliml
