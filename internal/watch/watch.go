// Package watch follows pipeline progress through the run ledger.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/assay/internal/filter"
	"github.com/dyluth/assay/pkg/ledger"
)

// OutputFormat specifies how streamed artefacts are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per artefact
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// StreamOptions narrows and terminates a stream.
type StreamOptions struct {
	Filter     filter.Criteria // artefacts not matching are skipped
	UntilStage ledger.Stage    // return after a matching artefact of this stage, empty = stream until cancelled
}

// StreamArtefacts writes artefact events for the ledger's project as they are
// recorded. It returns nil when UntilStage is reached or the context is
// cancelled.
func StreamArtefacts(ctx context.Context, lc *ledger.Client, format OutputFormat, opts StreamOptions, w io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", format)
	}
	if opts.UntilStage != "" {
		if err := opts.UntilStage.Validate(); err != nil {
			return err
		}
	}
	if err := opts.Filter.Validate(); err != nil {
		return err
	}

	sub, err := lc.SubscribeArtefactEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(w, "Watching artefacts for project '%s'...\n", lc.Project())
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)

		case a, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !opts.Filter.Matches(a) {
				continue
			}

			if err := WriteEvent(w, format, a); err != nil {
				return err
			}

			if opts.UntilStage != "" && a.Stage == opts.UntilStage {
				return nil
			}
		}
	}
}

// WriteEvent writes one artefact in the given format.
func WriteEvent(w io.Writer, format OutputFormat, a *ledger.StageArtefact) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal artefact event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	_, err := fmt.Fprintln(w, FormatEvent(a))
	return err
}

// FormatEvent renders one artefact as a timestamped line.
func FormatEvent(a *ledger.StageArtefact) string {
	ts := time.UnixMilli(a.CreatedAtMs).Format("15:04:05")

	runID := a.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: run=%s", ts, stageIcon(a.Stage), a.Stage, runID)
	if a.Stage != ledger.StageTrain {
		fmt.Fprintf(&b, ", rows=%d", a.Rows)
	}
	if a.Path != "" {
		fmt.Fprintf(&b, ", path=%s", a.Path)
	}
	if a.Detail != "" {
		fmt.Fprintf(&b, " (%s)", a.Detail)
	}
	return b.String()
}

func stageIcon(stage ledger.Stage) string {
	switch stage {
	case ledger.StageClean:
		return "🧹"
	case ledger.StageFeatures:
		return "🧬"
	case ledger.StageAssemble:
		return "📐"
	case ledger.StageTrain:
		return "🏋️"
	case ledger.StagePredict:
		return "🎯"
	default:
		return "•"
	}
}

// PollForStage polls a run's artefacts until one for the given stage appears.
// Polls every 200ms for the specified timeout duration.
func PollForStage(ctx context.Context, lc *ledger.Client, runID string, stage ledger.Stage, timeout time.Duration) (*ledger.StageArtefact, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for %s artefact of run %s after %v", stage, runID, timeout)

		case <-ticker.C:
			artefacts, err := lc.RunArtefacts(ctx, runID)
			if err != nil {
				return nil, fmt.Errorf("failed to query run artefacts: %w", err)
			}
			for _, a := range artefacts {
				if a.Stage == stage {
					return a, nil
				}
			}
		}
	}
}
