package assemble

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// Artifact names inside the work directory.
const (
	ModelDatasetFile = "bioactivity_model_dataset.csv"
	ScalerFile       = "target_scaler.json"
)

// WriteModelDataset writes the feature columns followed by the target column.
// The identity column is not written; the file is what the training service sees.
func WriteModelDataset(w io.Writer, ds bioactivity.ModelDataset) error {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, ds.FeatureNames...), ds.TargetName)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write dataset header: %w", err)
	}

	row := make([]string, len(header))
	for i := 0; i < ds.Len(); i++ {
		for j, v := range ds.Features[i] {
			row[j] = formatFloat(v)
		}
		row[len(row)-1] = formatFloat(ds.Target[i])
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write dataset row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveModelDataset writes the dataset to path, overwriting any previous run.
func SaveModelDataset(path string, ds bioactivity.ModelDataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteModelDataset(f, ds); err != nil {
		return err
	}
	return f.Close()
}

// ReadModelDataset parses an assembled dataset. targetColumn names the
// target; every other column is a feature. MoleculeIDs is left empty.
func ReadModelDataset(r io.Reader, targetColumn string) (bioactivity.ModelDataset, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return bioactivity.ModelDataset{}, fmt.Errorf("%w: model dataset is empty", bioactivity.ErrDataQuality)
		}
		return bioactivity.ModelDataset{}, fmt.Errorf("failed to read dataset header: %w", err)
	}

	targetIdx := -1
	for i, name := range header {
		if name == targetColumn {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return bioactivity.ModelDataset{}, fmt.Errorf("%w: model dataset has no target column %q",
			bioactivity.ErrDataQuality, targetColumn)
	}

	ds := bioactivity.ModelDataset{TargetName: targetColumn}
	for i, name := range header {
		if i != targetIdx {
			ds.FeatureNames = append(ds.FeatureNames, name)
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return bioactivity.ModelDataset{}, fmt.Errorf("%w: dataset line %d: %v", bioactivity.ErrDataQuality, line, err)
		}

		features := make([]float64, 0, len(ds.FeatureNames))
		var target float64
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return bioactivity.ModelDataset{}, fmt.Errorf("%w: dataset line %d column %s: %v",
					bioactivity.ErrDataQuality, line, header[i], err)
			}
			if i == targetIdx {
				target = v
			} else {
				features = append(features, v)
			}
		}
		ds.Features = append(ds.Features, features)
		ds.Target = append(ds.Target, target)
	}

	return ds, nil
}

// LoadModelDataset reads the dataset at path.
func LoadModelDataset(path, targetColumn string) (bioactivity.ModelDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return bioactivity.ModelDataset{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadModelDataset(f, targetColumn)
}

// SaveScaler persists the transform parameters next to the dataset so
// predictions can be mapped back to the activity scale.
func SaveScaler(path string, s bioactivity.Scaler) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scaler: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadScaler reads a scaler sidecar. An invalid scale is a data quality error.
func LoadScaler(path string) (bioactivity.Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bioactivity.Scaler{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var s bioactivity.Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return bioactivity.Scaler{}, fmt.Errorf("%w: invalid scaler file %s: %v", bioactivity.ErrDataQuality, path, err)
	}
	if !s.Valid() {
		return bioactivity.Scaler{}, fmt.Errorf("%w: scaler in %s has min=%g max=%g",
			bioactivity.ErrDataQuality, path, s.Min, s.Max)
	}
	return s, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
