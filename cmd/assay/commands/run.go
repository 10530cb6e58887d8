package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dyluth/assay/internal/pipeline"
	"github.com/dyluth/assay/internal/predict"
	"github.com/dyluth/assay/internal/printer"
	"github.com/dyluth/assay/pkg/ledger"
	"github.com/spf13/cobra"
)

var (
	runPredictLimit int
	runMaxPolls     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every pipeline stage: fetch, clean, featurize, assemble, train, predict",
	Long: `Run the complete bioactivity pipeline for the configured target.

Stages and artifacts (written to workdir):
  clean     - bioactivity_data.csv         deduplicated Ki records
  features  - molecule.smi,                structure manifest and
              descriptors_output.csv       PubChem fingerprints
  assemble  - bioactivity_model_dataset.csv, target_scaler.json
  train     - remote model (reused when already complete)
  predict   - predictions.csv

Training is polled at most training.max_polls times. A model still training
when the budget runs out stops the run before prediction; run
'assay predict' later to predict once it completes.

Examples:
  # Full run with assay.yml in the current directory
  assay run

  # Predict every row instead of the configured subset
  assay run --limit 0`,
	RunE: runRun,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train (or reuse) the model from the assembled dataset",
	Long: `Upload bioactivity_model_dataset.csv and ensure the configured model is
trained, without re-fetching or re-featurizing.

A complete model with the same name is reused. A model still training is
polled again. A failed model is reported unless training.retrain_failed is set.`,
	RunE: runTrain,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict with an already trained model",
	Long: `Check the configured model once and, if it is complete, predict the
target for the assembled dataset and write predictions.csv.

Values are denormalized with target_scaler.json, or with the scaler recorded
in the ledger when the sidecar file is missing.`,
	RunE: runPredict,
}

func init() {
	runCmd.Flags().IntVar(&runPredictLimit, "limit", -1, "Rows to predict (0 = all, default from assay.yml)")
	runCmd.Flags().IntVar(&runMaxPolls, "max-polls", 0, "Override training.max_polls")
	trainCmd.Flags().IntVar(&runMaxPolls, "max-polls", 0, "Override training.max_polls")
	predictCmd.Flags().IntVar(&runPredictLimit, "limit", -1, "Rows to predict (0 = all, default from assay.yml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM, which stops the poll loop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// prepare loads configuration, applies flag overrides and wires the runner.
func prepare(ctx context.Context, mode runnerMode) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if runPredictLimit >= 0 {
		cfg.Predict.Limit = runPredictLimit
	}
	if runMaxPolls > 0 {
		cfg.Training.MaxPolls = runMaxPolls
	}

	return buildEnvironment(ctx, cfg, mode)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := prepare(ctx, modeFull)
	if err != nil {
		return err
	}
	defer env.Close()

	printer.Step("Run %s for target '%s'\n", env.runner.RunID(), env.cfg.Target.Query)
	summary, err := env.runner.Run(ctx)
	printSummary(summary)
	if err != nil {
		return stageError(err)
	}

	printer.Success("Predictions written to %s\n", summary.Artifacts[ledger.StagePredict])
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := prepare(ctx, modeTrainOnly)
	if err != nil {
		return err
	}
	defer env.Close()

	printer.Step("Training model '%s'\n", env.cfg.Training.ModelName)
	summary, err := env.runner.Train(ctx)
	printSummary(summary)
	if err != nil {
		return stageError(err)
	}

	printer.Success("Model '%s' is ready\n", env.cfg.Training.ModelName)
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := prepare(ctx, modeTrainOnly)
	if err != nil {
		return err
	}
	defer env.Close()

	printer.Step("Predicting with model '%s'\n", env.cfg.Training.ModelName)
	summary, err := env.runner.PredictOnly(ctx)
	printSummary(summary)
	if err != nil {
		return stageError(err)
	}

	printer.Success("Predictions written to %s\n", summary.Artifacts[ledger.StagePredict])
	return nil
}

// summaryFields flattens a run summary for printing. Zero-valued stages are omitted.
func summaryFields(s *pipeline.Summary) []printer.Field {
	fields := []printer.Field{{Key: "Run", Value: s.RunID}}

	if s.Clean.Input > 0 {
		fields = append(fields, printer.Field{
			Key: "Records",
			Value: fmt.Sprintf("%d fetched, %d kept (%d null value, %d null structure, %d duplicate)",
				s.Clean.Input, s.Clean.Output, s.Clean.NullValue, s.Clean.NullStructure, s.Clean.Duplicates),
		})
	}
	if s.Descriptors > 0 {
		fields = append(fields, printer.Field{Key: "Descriptors", Value: fmt.Sprintf("%d rows", s.Descriptors)})
	}
	if s.DatasetRows > 0 {
		fields = append(fields, printer.Field{Key: "Dataset", Value: fmt.Sprintf("%d rows x %d features", s.DatasetRows, s.Features)})
	}
	if s.Scaler.Valid() {
		fields = append(fields, printer.Field{Key: "Target range", Value: fmt.Sprintf("[%g, %g]", s.Scaler.Min, s.Scaler.Max)})
	}
	if s.Outcome.Kind != 0 {
		value := fmt.Sprintf("%s (%s, %d polls)", s.Outcome.Kind, s.Outcome.Model.Status, s.Outcome.Polls)
		if s.Outcome.Detail != "" {
			value += ": " + s.Outcome.Detail
		}
		fields = append(fields, printer.Field{Key: "Training", Value: value})
	}
	if s.Predictions > 0 {
		fields = append(fields, printer.Field{Key: "Predictions", Value: fmt.Sprintf("%d", s.Predictions)})
	}

	stages := make([]string, 0, len(s.Artifacts))
	for stage := range s.Artifacts {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)
	for _, stage := range stages {
		fields = append(fields, printer.Field{Key: "Artifact " + stage, Value: s.Artifacts[ledger.Stage(stage)]})
	}

	return fields
}

// previewRows caps the prediction table printed after a run.
const previewRows = 10

func printSummary(s *pipeline.Summary) {
	if s == nil {
		return
	}
	printer.Println()
	printer.Section("Summary", summaryFields(s))
	printer.Println()

	if len(s.Results) > 0 {
		if err := predict.WritePreview(printer.Stdout, s.Results, previewRows); err != nil {
			printer.Warning("could not render predictions: %v\n", err)
		}
		printer.Println()
	}
}
