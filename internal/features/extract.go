package features

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// Extractor runs the feature extraction stage inside a work directory.
type Extractor struct {
	Runner         Runner
	WorkDir        string
	SpecPattern    string // glob searched in WorkDir, e.g. "*.xml"
	DescriptorSpec string // explicit spec path; skips the search when set
	Options        Options
}

// Extract writes the structure manifest, locates the descriptor spec, runs
// the generator and returns its table after checking row alignment.
func (e *Extractor) Extract(ctx context.Context, ds bioactivity.CleanDataset) (bioactivity.DescriptorTable, error) {
	workDir, err := filepath.Abs(e.WorkDir)
	if err != nil {
		return bioactivity.DescriptorTable{}, fmt.Errorf("failed to resolve work directory: %w", err)
	}

	manifest := BuildManifest(ds)
	moleculePath := filepath.Join(workDir, MoleculeFile)
	if err := SaveManifest(moleculePath, manifest); err != nil {
		return bioactivity.DescriptorTable{}, err
	}

	spec, err := LocateDescriptorSpec(workDir, e.SpecPattern, e.DescriptorSpec)
	if err != nil {
		return bioactivity.DescriptorTable{}, err
	}
	spec, err = filepath.Abs(spec)
	if err != nil {
		return bioactivity.DescriptorTable{}, fmt.Errorf("failed to resolve descriptor spec: %w", err)
	}
	log.Printf("[Features] Using descriptor spec %s for %d molecules", filepath.Base(spec), len(manifest))

	inv := Invocation{
		WorkDir:      workDir,
		MoleculeFile: moleculePath,
		SpecFile:     spec,
		OutputFile:   filepath.Join(workDir, DescriptorFile),
		Options:      e.Options,
	}
	if err := e.Runner.Run(ctx, inv); err != nil {
		return bioactivity.DescriptorTable{}, err
	}

	table, err := LoadDescriptorTable(inv.OutputFile)
	if err != nil {
		return bioactivity.DescriptorTable{}, err
	}

	if err := CheckAlignment(manifest, table); err != nil {
		return bioactivity.DescriptorTable{}, err
	}

	log.Printf("[Features] Imported descriptor table: rows=%d columns=%d", table.Len(), len(table.Columns))
	return table, nil
}
