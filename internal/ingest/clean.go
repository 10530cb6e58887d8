// Package ingest acquires raw bioactivity records and reduces them to a clean,
// deduplicated record set.
package ingest

import (
	"fmt"
	"log"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// CleanStats counts what Clean dropped and why.
type CleanStats struct {
	Input         int
	NullValue     int
	NullStructure int
	Duplicates    int
	Output        int
}

// Clean drops records with a null activity value or a null structure, then
// deduplicates by molecule ID keeping the first occurrence in input order.
// Empty input, or input where nothing survives, is a data quality failure.
func Clean(raw []bioactivity.RawRecord) (bioactivity.CleanDataset, error) {
	ds, _, err := CleanWithStats(raw)
	return ds, err
}

// CleanWithStats is Clean plus a breakdown of dropped records.
func CleanWithStats(raw []bioactivity.RawRecord) (bioactivity.CleanDataset, CleanStats, error) {
	stats := CleanStats{Input: len(raw)}
	if len(raw) == 0 {
		return nil, stats, fmt.Errorf("%w: no raw records to clean", bioactivity.ErrDataQuality)
	}

	seen := make(map[string]bool, len(raw))
	clean := make(bioactivity.CleanDataset, 0, len(raw))

	for _, r := range raw {
		if r.StandardValue == nil {
			stats.NullValue++
			continue
		}
		if r.CanonicalSmiles == nil {
			stats.NullStructure++
			continue
		}
		if seen[r.MoleculeID] {
			stats.Duplicates++
			continue
		}
		seen[r.MoleculeID] = true

		clean = append(clean, bioactivity.Record{
			MoleculeID:    r.MoleculeID,
			Smiles:        *r.CanonicalSmiles,
			Value:         *r.StandardValue,
			StandardType:  r.StandardType,
			StandardUnits: r.StandardUnits,
		})
	}
	stats.Output = len(clean)

	log.Printf("[Ingest] Cleaned %d records: kept=%d null_value=%d null_structure=%d duplicates=%d",
		stats.Input, stats.Output, stats.NullValue, stats.NullStructure, stats.Duplicates)

	if len(clean) == 0 {
		return nil, stats, fmt.Errorf("%w: all %d records dropped during cleaning", bioactivity.ErrDataQuality, stats.Input)
	}

	return clean, stats, nil
}
