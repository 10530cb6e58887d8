// Package features turns a clean record set into a fingerprint descriptor
// table by driving an external fingerprint generator.
//
// The generator reads a structure file (one "<smiles>\t<id>" line per
// molecule, no header) and writes a CSV whose first column repeats the
// molecule ID. Row order of the two files is the alignment contract; this
// package checks it explicitly after every run.
package features

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// Well-known artifact names inside the work directory.
const (
	MoleculeFile   = "molecule.smi"
	DescriptorFile = "descriptors_output.csv"
)

// BuildManifest projects the clean dataset into (SMILES, ID) pairs, preserving order.
func BuildManifest(ds bioactivity.CleanDataset) bioactivity.StructureManifest {
	m := make(bioactivity.StructureManifest, len(ds))
	for i, r := range ds {
		m[i] = bioactivity.ManifestEntry{Smiles: r.Smiles, MoleculeID: r.MoleculeID}
	}
	return m
}

// WriteManifest writes the structure file: UTF-8, tab-delimited, no header,
// one "<smiles>\t<id>\n" line per entry.
func WriteManifest(w io.Writer, m bioactivity.StructureManifest) error {
	bw := bufio.NewWriter(w)
	for i, e := range m {
		if strings.ContainsAny(e.Smiles, "\t\n\r") || strings.ContainsAny(e.MoleculeID, "\t\n\r") {
			return fmt.Errorf("%w: manifest row %d (%s) contains a tab or newline",
				bioactivity.ErrDataQuality, i, e.MoleculeID)
		}
		if !utf8.ValidString(e.Smiles) || !utf8.ValidString(e.MoleculeID) {
			return fmt.Errorf("%w: manifest row %d (%q) is not valid UTF-8",
				bioactivity.ErrDataQuality, i, e.MoleculeID)
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", e.Smiles, e.MoleculeID); err != nil {
			return fmt.Errorf("failed to write manifest row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// SaveManifest writes the structure file to path.
func SaveManifest(path string, m bioactivity.StructureManifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteManifest(f, m); err != nil {
		return err
	}
	return f.Close()
}
