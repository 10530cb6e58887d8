package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/assay/internal/filter"
	"github.com/dyluth/assay/internal/printer"
	"github.com/dyluth/assay/internal/watch"
	"github.com/dyluth/assay/pkg/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// defaultWaitTimeout bounds --wait when --timeout is not given.
const defaultWaitTimeout = 10 * time.Minute

var (
	watchOutputFormat string
	watchRun          string
	watchStage        string
	watchUntil        string
	watchWait         string
	watchTimeout      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor pipeline stages as they complete",
	Long: `Monitor pipeline progress in real time.

Streams every stage artefact recorded in the ledger (clean, features,
assemble, train, predict) as runs produce them.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch every run of the project
  assay watch

  # Follow one run until it has predicted
  assay watch --run 0f8fad5b --until predict

  # Block until a run's model is trained, then exit (for scripts)
  assay watch --wait train --run 0f8fad5b-d9cb-469f-a165-70867728950e --timeout 30m

  # Export events as JSON
  assay watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchRun, "run", "", "Only show artefacts of this run (ID prefix)")
	watchCmd.Flags().StringVar(&watchStage, "stage", "", "Only show these stages (glob pattern)")
	watchCmd.Flags().StringVar(&watchUntil, "until", "", "Exit after this stage is recorded (clean, features, assemble, train, predict)")
	watchCmd.Flags().StringVar(&watchWait, "wait", "", "Poll until the run (--run, full ID) has this stage, print it and exit")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Give up after this long (0 = no limit, 10m with --wait)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	until := ledger.Stage(watchUntil)
	if until != "" {
		if err := until.Validate(); err != nil {
			return printer.Error(
				"invalid stage",
				err.Error(),
				[]string{"Valid stages: clean, features, assemble, train, predict"},
			)
		}
	}

	if watchWait != "" {
		return runWait(cmd, outputFormat)
	}

	ctx, stop := signalContext()
	defer stop()
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lc, err := requireLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	return watch.StreamArtefacts(ctx, lc, outputFormat, watch.StreamOptions{
		Filter:     filter.Criteria{RunID: watchRun, StageGlob: watchStage},
		UntilStage: until,
	}, cmd.OutOrStdout())
}

// runWait polls the ledger for one stage of one run instead of streaming.
func runWait(cmd *cobra.Command, format watch.OutputFormat) error {
	stage := ledger.Stage(watchWait)
	if err := stage.Validate(); err != nil {
		return printer.Error(
			"invalid stage",
			err.Error(),
			[]string{"Valid stages: clean, features, assemble, train, predict"},
		)
	}
	if _, err := uuid.Parse(watchRun); err != nil {
		return printer.Error(
			"invalid run ID",
			"--wait needs the full run ID in --run",
			[]string{"Copy the Run value from the 'assay run' summary or 'assay hoard --output jsonl'"},
		)
	}

	timeout := watchTimeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lc, err := requireLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	a, err := watch.PollForStage(ctx, lc, watchRun, stage, timeout)
	if err != nil {
		return printer.ErrorWithContext(
			"stage not reached",
			err.Error(),
			map[string]string{"Run": watchRun, "Stage": string(stage)},
			[]string{"Check progress with: assay hoard --run " + watchRun[:8]},
		)
	}

	return watch.WriteEvent(cmd.OutOrStdout(), format, a)
}
