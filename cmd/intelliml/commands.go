package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/leaderboard"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/platform"
	"github.com/YuminosukeSato/intelliml/registry"
)

var (
	target     string
	modelTypes []string
	testSize   float64
	cvFolds    int
	tune       bool
	explainOut bool
	inputPath  string
	row        map[string]string
	outDir     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <data.csv>",
	Short: "Profile a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := open(args[0])
		if err != nil {
			return err
		}
		a, err := p.Analyze()
		if err != nil {
			return err
		}
		return printJSON(cmd, a)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train <data.csv>",
	Short: "Train the candidate panel and print the ranked results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, job, err := train(cmd, args[0])
		if err != nil {
			return err
		}
		out := map[string]any{"job": summarize(job)}
		if explainOut {
			exp, err := p.Explain(cmd.Context(), job.ID, nil)
			if err != nil {
				return err
			}
			out["explanation"] = map[string]any{
				"method":     exp.Method,
				"fallback":   exp.Fallback,
				"importance": exp.Importance,
			}
		}
		return printJSON(cmd, out)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <train.csv>",
	Short: "Train on a dataset, then predict one --row or every row of --input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(row) == 0) == (inputPath == "") {
			return errors.NewValueError("predict", "exactly one of --row or --input is required")
		}
		p, job, err := train(cmd, args[0])
		if err != nil {
			return err
		}
		if len(row) > 0 {
			record := make(map[string]any, len(row))
			for k, v := range row {
				record[k] = v
			}
			pred, err := p.PredictRecord(job.ID, record)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"job_id":        job.ID,
				"prediction":    pred.Label,
				"probabilities": pred.Probabilities,
			})
		}
		in, err := readFrame(inputPath)
		if err != nil {
			return err
		}
		res, err := p.PredictBatch(job.ID, in)
		if err != nil {
			return err
		}
		return dataset.WriteCSV(cmd.OutOrStdout(), res.Frame)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <data.csv>",
	Short: "Train on a dataset and write the best model bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, job, err := train(cmd, args[0])
		if err != nil {
			return err
		}
		art, err := p.Export(job.ID)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(outDir, art.Filename)
		if err := os.WriteFile(path, art.Blob, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{trainCmd, predictCmd, exportCmd} {
		c.Flags().StringVar(&target, "target", "", "Target column")
		c.Flags().StringSliceVar(&modelTypes, "models", nil, "Model identifiers; empty trains the default panel")
		c.Flags().Float64Var(&testSize, "test-size", 0, "Held-out fraction; 0 uses the config value")
		c.Flags().IntVar(&cvFolds, "cv-folds", 0, "Cross-validation folds; 1 disables, 0 uses the config value")
		c.Flags().BoolVar(&tune, "tuning", false, "Run hyperparameter search")
		_ = c.MarkFlagRequired("target")
	}
	trainCmd.Flags().BoolVar(&explainOut, "explain", false, "Attach feature attributions of the best model")
	predictCmd.Flags().StringVar(&inputPath, "input", "", "CSV of rows to predict")
	predictCmd.Flags().StringToStringVar(&row, "row", nil, "One row as feature=value pairs")
	exportCmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
}

func open(path string) (*platform.Platform, error) {
	f, err := readFrame(path)
	if err != nil {
		return nil, err
	}
	store := dataset.NewStore()
	store.Set(filepath.Base(path), f)

	var opts []platform.Option
	if cfg.Leaderboard.Path != "" {
		board, err := leaderboard.Open(cfg.Leaderboard.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, platform.WithLeaderboard(board))
	}
	return platform.New(cfg, store, registry.New(), opts...)
}

func train(cmd *cobra.Command, path string) (*platform.Platform, *registry.Job, error) {
	p, err := open(path)
	if err != nil {
		return nil, nil, err
	}
	job, err := p.Train(cmd.Context(), target, platform.TrainRequest{
		ModelTypes:   modelTypes,
		TestSize:     testSize,
		CVFolds:      cvFolds,
		EnableTuning: tune,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, job, nil
}

func readFrame(path string) (*dataset.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return dataset.ReadCSV(fh)
}

type candidateView struct {
	Rank    int                `json:"rank"`
	Model   string             `json:"model"`
	Family  string             `json:"family"`
	Metric  string             `json:"metric"`
	Score   float64            `json:"score"`
	CVMean  float64            `json:"cv_mean"`
	CVStd   float64            `json:"cv_std"`
	Metrics map[string]float64 `json:"metrics"`
}

func summarize(job *registry.Job) map[string]any {
	views := make([]candidateView, 0, len(job.Result.Results))
	for i, c := range job.Result.Results {
		views = append(views, candidateView{
			Rank:    i + 1,
			Model:   c.ModelName,
			Family:  c.Family.String(),
			Metric:  c.MetricName,
			Score:   c.Score,
			CVMean:  c.CVMean,
			CVStd:   c.CVStd,
			Metrics: c.Metrics,
		})
	}
	failed := make([]string, 0, len(job.Result.Failures))
	for _, f := range job.Result.Failures {
		failed = append(failed, f.Model)
	}
	return map[string]any{
		"job_id":  job.ID,
		"target":  job.Target,
		"task":    job.Task,
		"summary": job.Summary,
		"results": views,
		"failed":  failed,
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
