// Package predict runs a trained model over a subset of the assembled
// dataset and writes the result artifact.
package predict

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/dyluth/assay/internal/training"
	"github.com/dyluth/assay/pkg/bioactivity"
)

// ResultsFile is the prediction artifact inside the work directory.
const ResultsFile = "predictions.csv"

// DefaultLimit is the number of rows predicted when no limit is configured.
const DefaultLimit = 10

// Input is a row selected for prediction.
type Input struct {
	MoleculeID string
	Features   map[string]float64
}

// SelectRows returns the first limit rows of ds keyed by feature name.
// A limit of zero or less selects every row.
func SelectRows(ds bioactivity.ModelDataset, limit int) []Input {
	n := ds.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	rows := make([]Input, n)
	for i := 0; i < n; i++ {
		rows[i] = Input{Features: ds.Row(i)}
		if i < len(ds.MoleculeIDs) {
			rows[i].MoleculeID = ds.MoleculeIDs[i]
		}
	}
	return rows
}

// Predict invokes the model named by outcome. It refuses anything but a
// complete outcome. When scaler is non-nil each prediction is also mapped
// back to the activity scale.
func Predict(ctx context.Context, svc training.Service, outcome training.Outcome, targetColumn string, rows []Input, scaler *bioactivity.Scaler) (bioactivity.PredictionResult, error) {
	if !outcome.Ready() {
		return nil, fmt.Errorf("%w: model %s is %s (%s)",
			bioactivity.ErrModelNotReady, outcome.Model.Name, outcome.Kind, outcome.Model.Status)
	}
	if len(rows) == 0 {
		return bioactivity.PredictionResult{}, nil
	}

	features := make([]map[string]float64, len(rows))
	for i, r := range rows {
		features[i] = r.Features
	}

	values, err := svc.Predict(ctx, outcome.Model.Name, targetColumn, features)
	if err != nil {
		return nil, err
	}
	if len(values) != len(rows) {
		return nil, fmt.Errorf("%w: %d predictions for %d rows", bioactivity.ErrRemoteService, len(values), len(rows))
	}

	result := make(bioactivity.PredictionResult, len(rows))
	for i, r := range rows {
		result[i] = bioactivity.PredictionRow{
			MoleculeID: r.MoleculeID,
			Input:      r.Features,
			Predicted:  values[i],
		}
		if scaler != nil && scaler.Valid() {
			v := scaler.Inverse(values[i])
			result[i].Denormalized = &v
		}
	}

	log.Printf("[Predict] Predicted %d rows with model %s", len(result), outcome.Model.Name)
	return result, nil
}

// WriteResults writes one CSV row per prediction: molecule ID, the
// prediction, the denormalized value (empty when unavailable), then the
// input features in sorted column order.
func WriteResults(w io.Writer, result bioactivity.PredictionResult) error {
	cw := csv.NewWriter(w)

	var columns []string
	if len(result) > 0 {
		for name := range result[0].Input {
			columns = append(columns, name)
		}
		sort.Strings(columns)
	}

	header := append([]string{"molecule_chembl_id", "predicted", "predicted_denormalized"}, columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write results header: %w", err)
	}

	for i, row := range result {
		rec := make([]string, 0, len(header))
		rec = append(rec, row.MoleculeID, formatFloat(row.Predicted), "")
		if row.Denormalized != nil {
			rec[2] = formatFloat(*row.Denormalized)
		}
		for _, name := range columns {
			rec = append(rec, formatFloat(row.Input[name]))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write result row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveResults writes the result artifact to path.
func SaveResults(path string, result bioactivity.PredictionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteResults(f, result); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
