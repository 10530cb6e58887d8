package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// CleanDatasetFile is the well-known name of the persisted clean record set.
const CleanDatasetFile = "bioactivity_data.csv"

// Column names of the clean and raw CSV artifacts.
const (
	ColMoleculeID    = "molecule_chembl_id"
	ColSmiles        = "canonical_smiles"
	ColValue         = "standard_value"
	ColStandardType  = "standard_type"
	ColStandardUnits = "standard_units"
)

var cleanHeader = []string{ColMoleculeID, ColSmiles, ColValue, ColStandardType, ColStandardUnits}

// mandatoryColumns must be present in any record CSV we read.
var mandatoryColumns = []string{ColMoleculeID, ColSmiles, ColValue}

// WriteCleanDataset writes the clean record set as CSV with a header row.
func WriteCleanDataset(w io.Writer, ds bioactivity.CleanDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cleanHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range ds {
		row := []string{
			r.MoleculeID,
			r.Smiles,
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.StandardType,
			r.StandardUnits,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.MoleculeID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCleanDataset writes the clean record set to path, replacing any previous file.
func SaveCleanDataset(path string, ds bioactivity.CleanDataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCleanDataset(f, ds); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadCleanDataset reads a clean record set written by WriteCleanDataset.
// Null cells are rejected: a clean artifact never contains them.
func ReadCleanDataset(r io.Reader) (bioactivity.CleanDataset, error) {
	raw, err := ReadRawRecords(r)
	if err != nil {
		return nil, err
	}

	ds := make(bioactivity.CleanDataset, 0, len(raw))
	for i, rec := range raw {
		if rec.CanonicalSmiles == nil || rec.StandardValue == nil {
			return nil, fmt.Errorf("%w: clean dataset row %d (%s) has a null field",
				bioactivity.ErrDataQuality, i+1, rec.MoleculeID)
		}
		ds = append(ds, bioactivity.Record{
			MoleculeID:    rec.MoleculeID,
			Smiles:        *rec.CanonicalSmiles,
			Value:         *rec.StandardValue,
			StandardType:  rec.StandardType,
			StandardUnits: rec.StandardUnits,
		})
	}
	return ds, nil
}

// LoadCleanDataset reads the clean record set from path.
func LoadCleanDataset(path string) (bioactivity.CleanDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCleanDataset(f)
}

// ReadRawRecords reads a CSV export of raw records. Empty cells in the
// structure and value columns are nulls; an empty molecule ID is an error.
// Optional columns may be absent; mandatory ones may not.
func ReadRawRecords(r io.Reader) ([]bioactivity.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: record file is empty", bioactivity.ErrDataQuality)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range mandatoryColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing mandatory column %q", bioactivity.ErrDataQuality, name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []bioactivity.RawRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		id := cell(row, ColMoleculeID)
		if id == "" {
			return nil, fmt.Errorf("%w: line %d has no %s", bioactivity.ErrDataQuality, line, ColMoleculeID)
		}

		rec := bioactivity.RawRecord{
			MoleculeID:    id,
			StandardType:  cell(row, ColStandardType),
			StandardUnits: cell(row, ColStandardUnits),
		}
		if s := cell(row, ColSmiles); s != "" {
			rec.CanonicalSmiles = &s
		}
		if s := cell(row, ColValue); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid %s %q", bioactivity.ErrDataQuality, line, ColValue, s)
			}
			rec.StandardValue = &v
		}
		records = append(records, rec)
	}

	return records, nil
}

// FileSource serves raw records from a CSV export instead of the remote API.
type FileSource struct {
	Path string
}

// Fetch ignores the query and returns the file's records.
func (s FileSource) Fetch(ctx context.Context, _ TargetQuery) ([]bioactivity.RawRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()

	return ReadRawRecords(f)
}
