package predict

import (
	"fmt"
	"io"

	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/olekukonko/tablewriter"
)

// WritePreview renders up to limit predictions as a terminal table.
// limit <= 0 renders every row.
func WritePreview(w io.Writer, result bioactivity.PredictionResult, limit int) error {
	if len(result) == 0 {
		return nil
	}
	shown := result
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	table := tablewriter.NewWriter(w)
	table.Header("Molecule", "Predicted", "Denormalized")
	for _, row := range shown {
		denorm := "-"
		if row.Denormalized != nil {
			denorm = formatFloat(*row.Denormalized)
		}
		if err := table.Append([]string{row.MoleculeID, formatFloat(row.Predicted), denorm}); err != nil {
			return fmt.Errorf("failed to add preview row %s: %w", row.MoleculeID, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}

	if hidden := len(result) - len(shown); hidden > 0 {
		fmt.Fprintf(w, "...and %d more\n", hidden)
	}
	return nil
}
