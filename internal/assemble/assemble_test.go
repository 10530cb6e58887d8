package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// descriptorTable builds an n-row table with two feature columns and IDs M0..Mn-1.
func descriptorTable(n int) bioactivity.DescriptorTable {
	table := bioactivity.DescriptorTable{IDColumn: "Name", Columns: []string{"PubchemFP0", "PubchemFP1"}}
	for i := 0; i < n; i++ {
		table.Rows = append(table.Rows, bioactivity.DescriptorRow{
			ID:     fmt.Sprintf("M%d", i),
			Values: []float64{float64(i % 2), float64((i + 1) % 2)},
		})
	}
	return table
}

func TestNormalize_Bounds(t *testing.T) {
	values := []float64{42, 0.5, 1000, 7.25, 1000, 3}
	normalized, scaler, err := Normalize(values)
	require.NoError(t, err)
	require.Len(t, normalized, len(values))

	assert.Equal(t, 0.5, scaler.Min)
	assert.Equal(t, 1000.0, scaler.Max)
	for i, n := range normalized {
		assert.GreaterOrEqual(t, n, 0.0, "row %d", i)
		assert.LessOrEqual(t, n, 1.0, "row %d", i)
	}
	assert.Equal(t, 0.0, normalized[1])
	assert.Equal(t, 1.0, normalized[2])
	assert.Equal(t, 1.0, normalized[4])
}

func TestNormalize_Scenario(t *testing.T) {
	normalized, _, err := Normalize([]float64{5.0, 9.0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.0, 1.0}, normalized)
}

func TestFitScaler_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"single value", []float64{3}},
		{"constant column", []float64{3, 3, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitScaler(tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, bioactivity.ErrInsufficientData))
		})
	}
}

func TestAssemble(t *testing.T) {
	table := descriptorTable(3)
	ds, scaler, err := Assemble(table, []float64{10, 30, 20}, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultTargetColumn, ds.TargetName)
	assert.Equal(t, []string{"PubchemFP0", "PubchemFP1"}, ds.FeatureNames)
	assert.Equal(t, []float64{0, 1, 0.5}, ds.Target)
	assert.Equal(t, []string{"M0", "M1", "M2"}, ds.MoleculeIDs)
	assert.Equal(t, []float64{1, 0}, ds.Features[1])
	assert.Equal(t, bioactivity.Scaler{Min: 10, Max: 30}, scaler)

	// Input table is not aliased.
	ds.Features[0][0] = 99
	assert.Equal(t, 0.0, table.Rows[0].Values[0])
}

func TestAssemble_RowCountMismatch(t *testing.T) {
	target := make([]float64, 118)
	for i := range target {
		target[i] = float64(i)
	}

	_, _, err := Assemble(descriptorTable(120), target, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrRowCountMismatch))

	var mismatch *bioactivity.RowCountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 120, mismatch.Features)
	assert.Equal(t, 118, mismatch.Targets)
}

func TestAssemble_TargetCollision(t *testing.T) {
	_, _, err := Assemble(descriptorTable(2), []float64{1, 2}, "PubchemFP0")
	assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
}

func TestAssembleByKey(t *testing.T) {
	table := descriptorTable(3)
	// Clean dataset in a different order than the descriptor table.
	clean := bioactivity.CleanDataset{
		{MoleculeID: "M2", Smiles: "CCC", Value: 9},
		{MoleculeID: "M0", Smiles: "CCO", Value: 5},
		{MoleculeID: "M1", Smiles: "CCN", Value: 7},
	}

	ds, _, err := AssembleByKey(table, clean, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, ds.Target)
	assert.Equal(t, []string{"M0", "M1", "M2"}, ds.MoleculeIDs)

	t.Run("unknown molecule", func(t *testing.T) {
		bad := append(bioactivity.CleanDataset{}, clean...)
		bad[0].MoleculeID = "M9"
		_, _, err := AssembleByKey(table, bad, "")
		assert.True(t, errors.Is(err, bioactivity.ErrDataAlignment))
	})

	t.Run("duplicate descriptor identity", func(t *testing.T) {
		dup := descriptorTable(3)
		dup.Rows[2].ID = "M0"
		_, _, err := AssembleByKey(dup, clean, "")
		assert.True(t, errors.Is(err, bioactivity.ErrDataAlignment))
	})

	t.Run("length gate still applies", func(t *testing.T) {
		_, _, err := AssembleByKey(descriptorTable(2), clean, "")
		assert.True(t, errors.Is(err, bioactivity.ErrRowCountMismatch))
	})
}

func TestModelDatasetRoundTrip(t *testing.T) {
	ds, _, err := Assemble(descriptorTable(3), []float64{10, 30, 20}, "pki")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteModelDataset(&buf, ds))
	assert.Equal(t, "PubchemFP0,PubchemFP1,pki\n0,1,0\n1,0,1\n0,1,0.5\n", buf.String())

	got, err := ReadModelDataset(&buf, "pki")
	require.NoError(t, err)
	assert.Equal(t, ds.FeatureNames, got.FeatureNames)
	assert.Equal(t, ds.Features, got.Features)
	assert.Equal(t, ds.Target, got.Target)
	assert.Empty(t, got.MoleculeIDs)
}

func TestReadModelDataset_Errors(t *testing.T) {
	_, err := ReadModelDataset(bytes.NewBufferString(""), "pki")
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))

	_, err = ReadModelDataset(bytes.NewBufferString("a,b\n1,2\n"), "pki")
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))

	_, err = ReadModelDataset(bytes.NewBufferString("a,pki\n1,x\n"), "pki")
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))
}

func TestScalerSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ScalerFile)

	require.NoError(t, SaveScaler(path, bioactivity.Scaler{Min: 0.5, Max: 1000}))
	got, err := LoadScaler(path)
	require.NoError(t, err)
	assert.Equal(t, bioactivity.Scaler{Min: 0.5, Max: 1000}, got)

	require.NoError(t, os.WriteFile(path, []byte(`{"min": 3, "max": 3}`), 0644))
	_, err = LoadScaler(path)
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))

	_, err = LoadScaler(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
