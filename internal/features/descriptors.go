package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// ReadDescriptorTable parses the generator's output: a header row, an
// identity column, then fixed-width numeric feature columns. Anything else
// is an external tool failure.
func ReadDescriptorTable(r io.Reader) (bioactivity.DescriptorTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // every row must match the header width

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return bioactivity.DescriptorTable{}, fmt.Errorf("%w: descriptor output is empty", bioactivity.ErrExternalTool)
		}
		return bioactivity.DescriptorTable{}, fmt.Errorf("%w: unreadable descriptor header: %v", bioactivity.ErrExternalTool, err)
	}
	if len(header) < 2 {
		return bioactivity.DescriptorTable{}, fmt.Errorf("%w: descriptor output has %d columns, need identity plus features",
			bioactivity.ErrExternalTool, len(header))
	}

	table := bioactivity.DescriptorTable{
		IDColumn: strings.TrimSpace(header[0]),
		Columns:  append([]string{}, header[1:]...),
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return bioactivity.DescriptorTable{}, fmt.Errorf("%w: descriptor line %d: %v", bioactivity.ErrExternalTool, line, err)
		}

		values := make([]float64, len(row)-1)
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return bioactivity.DescriptorTable{}, fmt.Errorf("%w: descriptor line %d column %s: non-numeric value %q",
					bioactivity.ErrExternalTool, line, table.Columns[j], cell)
			}
			values[j] = v
		}

		table.Rows = append(table.Rows, bioactivity.DescriptorRow{ID: row[0], Values: values})
	}

	return table, nil
}

// LoadDescriptorTable reads the generator output at path.
// A missing file is an external tool failure: the generator claimed success
// without producing its artifact.
func LoadDescriptorTable(path string) (bioactivity.DescriptorTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return bioactivity.DescriptorTable{}, fmt.Errorf("%w: descriptor output %s: %v", bioactivity.ErrExternalTool, path, err)
	}
	defer f.Close()

	return ReadDescriptorTable(f)
}

// CheckAlignment verifies that the generator preserved the manifest's row
// count and order, comparing the identity column entry by entry.
func CheckAlignment(m bioactivity.StructureManifest, table bioactivity.DescriptorTable) error {
	if len(m) != table.Len() {
		return fmt.Errorf("%w: manifest has %d molecules, descriptor table has %d rows",
			bioactivity.ErrDataAlignment, len(m), table.Len())
	}

	for i, entry := range m {
		if got := table.Rows[i].ID; got != entry.MoleculeID {
			return fmt.Errorf("%w: row %d: manifest molecule %s, descriptor row %s",
				bioactivity.ErrDataAlignment, i, entry.MoleculeID, got)
		}
	}

	return nil
}
