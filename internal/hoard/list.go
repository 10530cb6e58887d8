// Package hoard lists and inspects the stage artefacts recorded in the run ledger.
package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/assay/internal/filter"
	"github.com/dyluth/assay/pkg/ledger"
)

// OutputFormat specifies how to format the artefact list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated details
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete artefacts as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ListArtefacts writes the project's artefacts, oldest first, in the requested format.
func ListArtefacts(ctx context.Context, lc *ledger.Client, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	if filters == nil {
		filters = &filter.Criteria{}
	}
	if err := filters.Validate(); err != nil {
		return err
	}

	all, err := lc.ListArtefacts(ctx, filters.SinceTimestampMs, filters.UntilTimestampMs)
	if err != nil {
		return fmt.Errorf("failed to list artefacts: %w", err)
	}

	artefacts := make([]*ledger.StageArtefact, 0, len(all))
	for _, a := range all {
		if filters.Matches(a) {
			artefacts = append(artefacts, a)
		}
	}

	switch format {
	case OutputFormatDefault:
		if len(artefacts) == 0 && filters.HasFilters() {
			fmt.Fprintf(w, "No artefacts match the given filters for project '%s'\n", lc.Project())
			return nil
		}
		FormatTable(w, artefacts, lc.Project())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, artefacts); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
