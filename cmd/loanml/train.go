package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/loanml/pipeline"
	"github.com/YuminosukeSato/loanml/report"
)

func (a *app) trainCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train all models and save the most accurate one",
		Long: `Train Logistic Regression, Decision Tree, Random Forest, SVM, KNN and
gradient boosting on the dataset, print each model's evaluation on the
held-out rows, save the accuracy comparison chart and bundle the best model
with its preprocessing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTrain(cmd, !noProgress)
		},
	}

	f := cmd.Flags()
	f.String("data", "", "training CSV (default loan_data.csv)")
	f.String("chart", "", "accuracy chart PNG (default model_comparison.png)")
	f.String("bundle", "", "output model bundle (default loan_model.gob)")
	f.Float64("test-size", 0, "held-out share of the rows (default 0.2)")
	f.Uint64("seed", 0, "random seed for the split and the models (default 42)")
	f.Int("workers", 0, "goroutines for parallel models, 0 for all CPUs")
	f.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	bindFlag(f, "data", "data.path")
	bindFlag(f, "chart", "output.chart")
	bindFlag(f, "bundle", "output.bundle")
	bindFlag(f, "test-size", "data.test_size")
	bindFlag(f, "seed", "training.seed")
	bindFlag(f, "workers", "training.workers")
	return cmd
}

func (a *app) runTrain(cmd *cobra.Command, showProgress bool) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()
	models := pipeline.DefaultModels(cfg.Training.Seed, cfg.Training.Workers)

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = newTrainingBar(cmd.ErrOrStderr(), len(models))
	}

	var writeErr error
	opts := pipeline.Options{
		DataPath:   cfg.Data.Path,
		TestSize:   cfg.Data.TestSize,
		Seed:       cfg.Training.Seed,
		Workers:    cfg.Training.Workers,
		ChartPath:  cfg.Output.Chart,
		BundlePath: cfg.Output.Bundle,
		Models:     models,
		Logger:     a.logger,
		OnModelStart: func(_ int, name string) {
			if bar != nil {
				bar.Describe("Training " + name)
			}
		},
		OnModelDone: func(_ int, r pipeline.ModelResult) {
			if bar != nil {
				_ = bar.Add(1)
			}
			if writeErr == nil {
				writeErr = report.WriteModelResult(out, r.Name, r.Accuracy, r.Report, r.Confusion)
			}
		},
	}

	res, err := pipeline.Run(cmd.Context(), opts)
	if bar != nil {
		_ = bar.Exit()
	}
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	if err := report.WriteComparison(out, res.Entries(), res.Best); err != nil {
		return err
	}
	best := res.BestModel()
	fmt.Fprintf(out, "\nSaved best model (accuracy: %.4f) to %s\n", best.Accuracy, res.BundlePath)
	fmt.Fprintf(out, "Saved accuracy chart to %s\n", res.ChartPath)
	return nil
}

func newTrainingBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan]Training models...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
