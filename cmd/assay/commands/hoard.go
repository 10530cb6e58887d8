package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/assay/internal/filter"
	"github.com/dyluth/assay/internal/hoard"
	"github.com/dyluth/assay/internal/printer"
	"github.com/dyluth/assay/internal/resolver"
	"github.com/dyluth/assay/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	hoardOutputFormat string
	hoardSince        string
	hoardUntil        string
	hoardStage        string
	hoardRun          string
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [ARTEFACT_ID]",
	Short: "Inspect recorded stage artefacts with filtering",
	Long: `Inspect the run ledger in list or get mode.

List Mode (no ARTEFACT_ID):
  Displays artefacts matching filters as a table or JSONL stream.

Get Mode (with ARTEFACT_ID):
  Displays complete details of a single artefact as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Output Formats (list mode only):
  default - Human-readable table with ID, Run, Stage, Rows, Age and Detail
  jsonl   - Line-delimited JSON, one artefact per line

Time Filters (list mode only):
  --since  - Show artefacts created after this time
  --until  - Show artefacts created before this time

Content Filters (list mode only):
  --stage  - Filter by stage (glob pattern: "train", "pre*")
  --run    - Filter by run ID (prefix match)

Examples:
  # List all artefacts
  assay hoard

  # Training outcomes of the last two days
  assay hoard --stage=train --since=2d

  # Artefacts of one run as JSONL for piping to jq
  assay hoard --run=0f8fad5b --output=jsonl | jq '.path'

  # Get specific artefact by short ID
  assay hoard abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().StringVarP(&hoardOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	// Time-based filters
	hoardCmd.Flags().StringVar(&hoardSince, "since", "", "Show artefacts after time (duration, Nd or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardUntil, "until", "", "Show artefacts before time (duration, Nd or RFC3339)")

	// Content-based filters
	hoardCmd.Flags().StringVar(&hoardStage, "stage", "", "Filter by stage (glob pattern)")
	hoardCmd.Flags().StringVar(&hoardRun, "run", "", "Filter by run ID (prefix)")

	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	isGetMode := len(args) > 0

	var outputFormat hoard.OutputFormat
	if !isGetMode {
		switch hoardOutputFormat {
		case "default":
			outputFormat = hoard.OutputFormatDefault
		case "jsonl":
			outputFormat = hoard.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", hoardOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
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

	if isGetMode {
		shortID := args[0]

		fullID, err := resolver.ResolveArtefactID(ctx, lc, shortID)
		if err != nil {
			if resolver.IsNotFoundError(err) {
				return printer.Error(
					fmt.Sprintf("artefact with ID '%s' not found", shortID),
					"The specified artefact does not exist in the ledger.",
					[]string{"List all artefacts:\n  assay hoard"},
				)
			}
			if resolver.IsAmbiguousError(err) {
				return printer.Error(
					"ambiguous short ID",
					resolver.FormatAmbiguousError(err.(*resolver.AmbiguousError)),
					nil,
				)
			}
			return printer.Error("invalid artefact ID", err.Error(), nil)
		}

		if err := hoard.GetArtefact(ctx, lc, fullID, cmd.OutOrStdout()); err != nil {
			if hoard.IsNotFound(err) {
				return printer.Error(err.Error(), "The artefact disappeared while it was being read.", nil)
			}
			return fmt.Errorf("failed to get artefact: %w", err)
		}
		return nil
	}

	filters, err := buildHoardFilters()
	if err != nil {
		return err
	}

	if err := hoard.ListArtefacts(ctx, lc, outputFormat, filters, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to list artefacts: %w", err)
	}
	return nil
}

// buildHoardFilters converts the list-mode flags into filter criteria.
func buildHoardFilters() (*filter.Criteria, error) {
	since, until, err := timespec.ParseRange(hoardSince, hoardUntil)
	if err != nil {
		return nil, printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration (90m, 2h), a day count (3d), a date (2025-10-29) or RFC3339"},
		)
	}

	return &filter.Criteria{
		SinceTimestampMs: since,
		UntilTimestampMs: until,
		StageGlob:        hoardStage,
		RunID:            hoardRun,
	}, nil
}
