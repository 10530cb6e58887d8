package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/assay/pkg/ledger"
)

// FormatTable writes artefacts as a table with columns ID, RUN, STAGE, ROWS,
// AGE and DETAIL (truncated). Returns the number of artefacts formatted.
func FormatTable(w io.Writer, artefacts []*ledger.StageArtefact, project string) int {
	if len(artefacts) == 0 {
		fmt.Fprintf(w, "No artefacts found for project '%s'\n", project)
		return 0
	}

	fmt.Fprintf(w, "Artefacts for project '%s':\n\n", project)

	fmt.Fprintf(w, "%-10s %-10s %-9s %-6s %-8s %s\n",
		"ID", "RUN", "STAGE", "ROWS", "AGE", "DETAIL")
	fmt.Fprintf(w, "%-10s %-10s %-9s %-6s %-8s %s\n",
		"----------", "----------", "---------", "------", "--------", "----------------------------------------")

	for _, a := range artefacts {
		fmt.Fprintf(w, "%-10s %-10s %-9s %-6s %-8s %s\n",
			shortID(a.ID),
			shortID(a.RunID),
			a.Stage,
			formatRows(a.Stage, a.Rows),
			formatTimestamp(a.CreatedAtMs),
			formatDetail(a.Detail),
		)
	}

	countMsg := "artefact"
	if len(artefacts) != 1 {
		countMsg = "artefacts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(artefacts), countMsg)

	return len(artefacts)
}

// FormatJSONL writes one compact JSON object per artefact, for piping into jq.
func FormatJSONL(w io.Writer, artefacts []*ledger.StageArtefact) error {
	for _, artefact := range artefacts {
		data, err := json.Marshal(artefact)
		if err != nil {
			return fmt.Errorf("failed to marshal artefact to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes one artefact as indented JSON.
func FormatSingleJSON(w io.Writer, artefact *ledger.StageArtefact) error {
	data, err := json.MarshalIndent(artefact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artefact to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// shortID keeps the first 8 characters of a UUID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatRows shows "-" for the training stage, which has no local artifact.
func formatRows(stage ledger.Stage, rows int) string {
	if stage == ledger.StageTrain {
		return "-"
	}
	return fmt.Sprintf("%d", rows)
}

// formatDetail keeps the first non-empty line, truncated to 40 characters.
func formatDetail(detail string) string {
	var firstLine string
	for _, line := range strings.Split(detail, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}
	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}
	return firstLine
}

// formatTimestamp renders a millisecond timestamp as relative age ("2m ago").
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
