// Package bioactivity defines the data model shared by every stage of the
// assay pipeline: raw and clean bioactivity records, the structure manifest
// handed to the fingerprint generator, the descriptor table it returns, and
// the model-ready dataset submitted for training.
package bioactivity

import (
	"fmt"
	"math"
)

// RawRecord is one bioactivity observation as returned by the data source.
// Nullable fields are pointers; nil means the source reported null.
type RawRecord struct {
	MoleculeID      string   `json:"molecule_chembl_id"`
	CanonicalSmiles *string  `json:"canonical_smiles"`
	StandardValue   *float64 `json:"standard_value"`
	StandardType    string   `json:"standard_type"`
	StandardUnits   string   `json:"standard_units"`
}

// Record is a clean observation: structure and activity value are both present.
type Record struct {
	MoleculeID    string  `json:"molecule_chembl_id"`
	Smiles        string  `json:"canonical_smiles"`
	Value         float64 `json:"standard_value"`
	StandardType  string  `json:"standard_type"`
	StandardUnits string  `json:"standard_units"`
}

// CleanDataset is an ordered record set with unique molecule IDs.
type CleanDataset []Record

// IDs returns the molecule IDs in dataset order.
func (d CleanDataset) IDs() []string {
	ids := make([]string, len(d))
	for i, r := range d {
		ids[i] = r.MoleculeID
	}
	return ids
}

// Values returns the activity values in dataset order.
func (d CleanDataset) Values() []float64 {
	values := make([]float64, len(d))
	for i, r := range d {
		values[i] = r.Value
	}
	return values
}

// Index maps molecule ID to its record.
func (d CleanDataset) Index() map[string]Record {
	idx := make(map[string]Record, len(d))
	for _, r := range d {
		idx[r.MoleculeID] = r
	}
	return idx
}

// ManifestEntry is one line of the structure file read by the fingerprinter.
type ManifestEntry struct {
	Smiles     string
	MoleculeID string
}

// StructureManifest is the ordered input to the fingerprint generator.
// Its row order defines the alignment contract with the DescriptorTable.
type StructureManifest []ManifestEntry

// DescriptorRow is one fingerprint vector keyed by the identity column.
type DescriptorRow struct {
	ID     string
	Values []float64
}

// DescriptorTable is the numeric output of the fingerprint generator.
type DescriptorTable struct {
	IDColumn string          // name of the identity column, e.g. "Name"
	Columns  []string        // feature column names, identity excluded
	Rows     []DescriptorRow // one row per manifest entry, same order
}

// Len returns the number of rows.
func (t DescriptorTable) Len() int {
	return len(t.Rows)
}

// Validate checks that every row has exactly one value per feature column.
func (t DescriptorTable) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("descriptor table has no feature columns")
	}
	for i, row := range t.Rows {
		if len(row.Values) != len(t.Columns) {
			return fmt.Errorf("descriptor row %d (%s) has %d values, expected %d",
				i, row.ID, len(row.Values), len(t.Columns))
		}
	}
	return nil
}

// ModelDataset is the model-ready table: feature columns plus one target column.
// MoleculeIDs is carried alongside so rows stay traceable after the identity
// column is dropped from the features.
type ModelDataset struct {
	FeatureNames []string
	Features     [][]float64
	TargetName   string
	Target       []float64
	MoleculeIDs  []string
}

// Len returns the number of rows.
func (d ModelDataset) Len() int {
	return len(d.Target)
}

// Row returns row i keyed by feature column name (target excluded).
func (d ModelDataset) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(d.FeatureNames))
	for j, name := range d.FeatureNames {
		row[name] = d.Features[i][j]
	}
	return row
}

// Scaler holds the parameters of the affine transform applied to the target.
type Scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Transform maps v into [0,1]. Values outside [Min,Max] are not clamped.
func (s Scaler) Transform(v float64) float64 {
	return (v - s.Min) / (s.Max - s.Min)
}

// Inverse maps a normalized value back to the original activity scale.
func (s Scaler) Inverse(n float64) float64 {
	return s.Min + n*(s.Max-s.Min)
}

// Valid reports whether the scaler can be used for transforms.
func (s Scaler) Valid() bool {
	return s.Max > s.Min && !math.IsInf(s.Max-s.Min, 0) && !math.IsNaN(s.Max-s.Min)
}

// PredictionRow pairs an input row with the model's prediction.
type PredictionRow struct {
	MoleculeID   string             `json:"molecule_chembl_id,omitempty"`
	Input        map[string]float64 `json:"input"`
	Predicted    float64            `json:"predicted"`
	Denormalized *float64           `json:"denormalized,omitempty"`
}

// PredictionResult is the terminal artifact of a run.
type PredictionResult []PredictionRow
