// Package assemble rescales the regression target and joins it with the
// descriptor table into the model-ready dataset.
package assemble

import (
	"fmt"
	"log"
	"math"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// DefaultTargetColumn is the target column name in the assembled dataset.
const DefaultTargetColumn = "standard_value"

// FitScaler derives the min/max transform from the full target column.
// Fewer than two distinct values cannot define a scale.
func FitScaler(values []float64) (bioactivity.Scaler, error) {
	if len(values) == 0 {
		return bioactivity.Scaler{}, fmt.Errorf("%w: target column is empty", bioactivity.ErrInsufficientData)
	}

	min, max := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return bioactivity.Scaler{}, fmt.Errorf("%w: target value %d is not finite", bioactivity.ErrDataQuality, i)
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	s := bioactivity.Scaler{Min: min, Max: max}
	if !s.Valid() {
		return bioactivity.Scaler{}, fmt.Errorf("%w: target column has fewer than 2 distinct values (min=max=%g)",
			bioactivity.ErrInsufficientData, min)
	}
	return s, nil
}

// Normalize maps every value into [0,1]. The minimum maps to exactly 0 and
// the maximum to exactly 1; order and length are preserved.
func Normalize(values []float64) ([]float64, bioactivity.Scaler, error) {
	s, err := FitScaler(values)
	if err != nil {
		return nil, bioactivity.Scaler{}, err
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out, s, nil
}

// Assemble concatenates the descriptor features with the normalized target
// by position. The identity column is dropped from the features and kept
// only as MoleculeIDs. Lengths must agree exactly.
func Assemble(table bioactivity.DescriptorTable, rawTarget []float64, targetColumn string) (bioactivity.ModelDataset, bioactivity.Scaler, error) {
	if table.Len() != len(rawTarget) {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, &bioactivity.RowCountMismatchError{
			Features: table.Len(),
			Targets:  len(rawTarget),
		}
	}
	if err := table.Validate(); err != nil {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, fmt.Errorf("%w: %v", bioactivity.ErrDataAlignment, err)
	}
	if targetColumn == "" {
		targetColumn = DefaultTargetColumn
	}
	for _, name := range table.Columns {
		if name == targetColumn {
			return bioactivity.ModelDataset{}, bioactivity.Scaler{}, fmt.Errorf("%w: target column %q collides with a feature column",
				bioactivity.ErrConfiguration, targetColumn)
		}
	}

	normalized, scaler, err := Normalize(rawTarget)
	if err != nil {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, err
	}

	ds := bioactivity.ModelDataset{
		FeatureNames: append([]string{}, table.Columns...),
		Features:     make([][]float64, table.Len()),
		TargetName:   targetColumn,
		Target:       normalized,
		MoleculeIDs:  make([]string, table.Len()),
	}
	for i, row := range table.Rows {
		ds.Features[i] = append([]float64{}, row.Values...)
		ds.MoleculeIDs[i] = row.ID
	}

	log.Printf("[Assemble] Assembled dataset: rows=%d features=%d target=%s scale=[%g,%g]",
		ds.Len(), len(ds.FeatureNames), targetColumn, scaler.Min, scaler.Max)
	return ds, scaler, nil
}

// AssembleByKey builds the target vector by looking up each descriptor row's
// identity in the clean dataset, then assembles positionally. Every
// descriptor row must name a molecule in the dataset and every molecule must
// appear exactly once.
func AssembleByKey(table bioactivity.DescriptorTable, ds bioactivity.CleanDataset, targetColumn string) (bioactivity.ModelDataset, bioactivity.Scaler, error) {
	if table.Len() != len(ds) {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, &bioactivity.RowCountMismatchError{
			Features: table.Len(),
			Targets:  len(ds),
		}
	}

	index := ds.Index()
	seen := make(map[string]bool, len(ds))
	target := make([]float64, table.Len())
	for i, row := range table.Rows {
		rec, ok := index[row.ID]
		if !ok {
			return bioactivity.ModelDataset{}, bioactivity.Scaler{}, fmt.Errorf("%w: descriptor row %d names unknown molecule %s",
				bioactivity.ErrDataAlignment, i, row.ID)
		}
		if seen[row.ID] {
			return bioactivity.ModelDataset{}, bioactivity.Scaler{}, fmt.Errorf("%w: molecule %s appears twice in descriptor table",
				bioactivity.ErrDataAlignment, row.ID)
		}
		seen[row.ID] = true
		target[i] = rec.Value
	}

	return Assemble(table, target, targetColumn)
}
