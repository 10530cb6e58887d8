package features

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/mount"
	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() bioactivity.CleanDataset {
	return bioactivity.CleanDataset{
		{MoleculeID: "CHEMBL10", Smiles: "CCO", Value: 100},
		{MoleculeID: "CHEMBL11", Smiles: "c1ccccc1", Value: 20},
		{MoleculeID: "CHEMBL12", Smiles: "CC(=O)O", Value: 3},
	}
}

func TestWriteManifest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, BuildManifest(sampleDataset())))

	assert.Equal(t, "CCO\tCHEMBL10\nc1ccccc1\tCHEMBL11\nCC(=O)O\tCHEMBL12\n", buf.String())
}

func TestWriteManifest_RejectsTabs(t *testing.T) {
	m := bioactivity.StructureManifest{{Smiles: "C\tC", MoleculeID: "X"}}
	err := WriteManifest(&bytes.Buffer{}, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))
}

func TestWriteManifest_RejectsInvalidUTF8(t *testing.T) {
	for _, m := range []bioactivity.StructureManifest{
		{{Smiles: "CC\xffO", MoleculeID: "X"}},
		{{Smiles: "CCO", MoleculeID: "CHEMBL\xc3"}},
	} {
		err := WriteManifest(&bytes.Buffer{}, m)
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))
		assert.Contains(t, err.Error(), "not valid UTF-8")
	}
}

func TestWriteManifest_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestLocateDescriptorSpec(t *testing.T) {
	t.Run("single match", func(t *testing.T) {
		dir := t.TempDir()
		want := filepath.Join(dir, "PubchemFingerprinter.xml")
		require.NoError(t, os.WriteFile(want, []byte("<xml/>"), 0644))

		got, err := LocateDescriptorSpec(dir, "*.xml", "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := LocateDescriptorSpec(t.TempDir(), "*.xml", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
	})

	t.Run("ambiguous match", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), nil, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), nil, 0644))

		_, err := LocateDescriptorSpec(dir, "*.xml", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
		assert.Contains(t, err.Error(), "a.xml")
		assert.Contains(t, err.Error(), "b.xml")
	})

	t.Run("explicit path bypasses search", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), nil, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), nil, 0644))

		got, err := LocateDescriptorSpec(dir, "*.xml", filepath.Join(dir, "b.xml"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "b.xml"), got)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := LocateDescriptorSpec(t.TempDir(), "*.xml", "/nonexistent/spec.xml")
		assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
	})
}

func TestOptionsArgs(t *testing.T) {
	args := DefaultOptions(2).Args("molecule.smi", "fp.xml", "out.csv")
	assert.Equal(t, []string{
		"-dir", "molecule.smi",
		"-file", "out.csv",
		"-descriptortypes", "fp.xml",
		"-detectaromaticity",
		"-standardizenitro",
		"-standardizetautomers",
		"-removesalt",
		"-threads", "2",
		"-fingerprints",
		"-log",
	}, args)

	bare := Options{}.Args("m", "s", "o")
	assert.Equal(t, []string{"-dir", "m", "-file", "o", "-descriptortypes", "s"}, bare)
}

func TestReadDescriptorTable(t *testing.T) {
	input := "\"Name\",\"PubchemFP0\",\"PubchemFP1\"\n\"CHEMBL10\",1,0\n\"CHEMBL11\",0,1\n"
	table, err := ReadDescriptorTable(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "Name", table.IDColumn)
	assert.Equal(t, []string{"PubchemFP0", "PubchemFP1"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "CHEMBL10", table.Rows[0].ID)
	assert.Equal(t, []float64{1, 0}, table.Rows[0].Values)
	assert.NoError(t, table.Validate())
}

func TestReadDescriptorTable_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"identity only", "Name\nCHEMBL1\n"},
		{"ragged row", "Name,FP0,FP1\nCHEMBL1,1\n"},
		{"non-numeric cell", "Name,FP0\nCHEMBL1,yes\n"},
		{"empty cell", "Name,FP0\nCHEMBL1,\n"},
		{"nan cell", "Name,FP0\nCHEMBL1,NaN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDescriptorTable(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
		})
	}
}

func TestLoadDescriptorTable_Missing(t *testing.T) {
	_, err := LoadDescriptorTable(filepath.Join(t.TempDir(), DescriptorFile))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
}

func TestCheckAlignment(t *testing.T) {
	manifest := BuildManifest(sampleDataset())
	table := bioactivity.DescriptorTable{
		IDColumn: "Name",
		Columns:  []string{"FP0"},
		Rows: []bioactivity.DescriptorRow{
			{ID: "CHEMBL10", Values: []float64{1}},
			{ID: "CHEMBL11", Values: []float64{0}},
			{ID: "CHEMBL12", Values: []float64{1}},
		},
	}

	t.Run("aligned", func(t *testing.T) {
		assert.NoError(t, CheckAlignment(manifest, table))
	})

	t.Run("dropped row", func(t *testing.T) {
		short := table
		short.Rows = table.Rows[:2]
		err := CheckAlignment(manifest, short)
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrDataAlignment))
	})

	t.Run("reordered rows", func(t *testing.T) {
		swapped := table
		swapped.Rows = []bioactivity.DescriptorRow{table.Rows[1], table.Rows[0], table.Rows[2]}
		err := CheckAlignment(manifest, swapped)
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrDataAlignment))
		assert.Contains(t, err.Error(), "row 0")
	})
}

// fakeRunner emulates the generator by reading the structure file and
// writing one descriptor row per molecule.
type fakeRunner struct {
	calls   []Invocation
	dropRow bool
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) error {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return f.err
	}

	in, err := os.Open(inv.MoleculeFile)
	if err != nil {
		return err
	}
	defer in.Close()

	var out strings.Builder
	out.WriteString("Name,FP0,FP1\n")
	scanner := bufio.NewScanner(in)
	for i := 0; scanner.Scan(); i++ {
		if f.dropRow && i == 0 {
			continue
		}
		parts := strings.Split(scanner.Text(), "\t")
		fmt.Fprintf(&out, "%s,%d,%d\n", parts[1], i%2, (i+1)%2)
	}
	return os.WriteFile(inv.OutputFile, []byte(out.String()), 0644)
}

func TestExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PubchemFingerprinter.xml"), []byte("<xml/>"), 0644))

	runner := &fakeRunner{}
	e := &Extractor{Runner: runner, WorkDir: dir, SpecPattern: "*.xml", Options: DefaultOptions(2)}

	table, err := e.Extract(context.Background(), sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"FP0", "FP1"}, table.Columns)
	assert.Equal(t, "CHEMBL12", table.Rows[2].ID)

	require.Len(t, runner.calls, 1)
	inv := runner.calls[0]
	assert.Equal(t, filepath.Join(dir, MoleculeFile), inv.MoleculeFile)
	assert.Equal(t, filepath.Join(dir, "PubchemFingerprinter.xml"), inv.SpecFile)
	assert.Equal(t, filepath.Join(dir, DescriptorFile), inv.OutputFile)
	assert.Equal(t, 2, inv.Options.Threads)

	manifest, err := os.ReadFile(filepath.Join(dir, MoleculeFile))
	require.NoError(t, err)
	assert.Equal(t, "CCO\tCHEMBL10\nc1ccccc1\tCHEMBL11\nCC(=O)O\tCHEMBL12\n", string(manifest))
}

func TestExtractor_Errors(t *testing.T) {
	t.Run("missing spec is configuration error and generator never runs", func(t *testing.T) {
		runner := &fakeRunner{}
		e := &Extractor{Runner: runner, WorkDir: t.TempDir(), SpecPattern: "*.xml"}

		_, err := e.Extract(context.Background(), sampleDataset())
		assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
		assert.Empty(t, runner.calls)
	})

	t.Run("generator failure propagates", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fp.xml"), nil, 0644))
		runner := &fakeRunner{err: fmt.Errorf("%w: boom", bioactivity.ErrExternalTool)}
		e := &Extractor{Runner: runner, WorkDir: dir, SpecPattern: "*.xml"}

		_, err := e.Extract(context.Background(), sampleDataset())
		assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
	})

	t.Run("dropped row is alignment error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fp.xml"), nil, 0644))
		e := &Extractor{Runner: &fakeRunner{dropRow: true}, WorkDir: dir, SpecPattern: "*.xml"}

		_, err := e.Extract(context.Background(), sampleDataset())
		assert.True(t, errors.Is(err, bioactivity.ErrDataAlignment))
	})
}

const fakeGeneratorScript = `
while [ $# -gt 0 ]; do
  case "$1" in
    -file) out="$2"; shift ;;
  esac
  shift
done
printf 'Name,FP0\nCHEMBL10,1\n' > "$out"
`

func TestExecRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	t.Run("success writes output", func(t *testing.T) {
		dir := t.TempDir()
		r := &ExecRunner{Command: []string{"/bin/sh", "-c", fakeGeneratorScript, "padel"}, Timeout: 10 * time.Second}
		inv := Invocation{
			WorkDir:      dir,
			MoleculeFile: filepath.Join(dir, MoleculeFile),
			SpecFile:     filepath.Join(dir, "fp.xml"),
			OutputFile:   filepath.Join(dir, DescriptorFile),
			Options:      DefaultOptions(1),
		}

		require.NoError(t, r.Run(context.Background(), inv))

		table, err := LoadDescriptorTable(inv.OutputFile)
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("non-zero exit", func(t *testing.T) {
		r := &ExecRunner{Command: []string{"/bin/sh", "-c", "echo bad descriptor spec >&2; exit 3", "padel"}}
		err := r.Run(context.Background(), Invocation{WorkDir: t.TempDir()})
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
		assert.Contains(t, err.Error(), "code 3")
		assert.Contains(t, err.Error(), "bad descriptor spec")
	})

	t.Run("timeout", func(t *testing.T) {
		r := &ExecRunner{Command: []string{"/bin/sh", "-c", "sleep 5", "padel"}, Timeout: 100 * time.Millisecond}
		err := r.Run(context.Background(), Invocation{WorkDir: t.TempDir()})
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("empty command", func(t *testing.T) {
		err := (&ExecRunner{}).Run(context.Background(), Invocation{})
		assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
	})
}

func TestDockerRunner_ContainerSpec(t *testing.T) {
	r := &DockerRunner{Image: "assay/padel:latest", Project: "egfr", RunID: "0b8f2c6e-1111-2222-3333-444455556666"}
	inv := Invocation{
		WorkDir:      "/data/egfr",
		MoleculeFile: "/data/egfr/molecule.smi",
		SpecFile:     "/specs/PubchemFingerprinter.xml",
		OutputFile:   "/data/egfr/descriptors_output.csv",
		Options:      DefaultOptions(4),
	}

	config, hostConfig := r.containerSpec(inv)

	assert.Equal(t, "assay/padel:latest", config.Image)
	assert.Equal(t, "/work", config.WorkingDir)
	assert.Equal(t, []string{"-dir", "/work/molecule.smi", "-file", "/work/descriptors_output.csv",
		"-descriptortypes", "/spec/PubchemFingerprinter.xml"}, []string(config.Cmd[:6]))
	assert.Equal(t, "egfr", config.Labels["assay.project"])
	assert.Equal(t, "fingerprint", config.Labels["assay.component"])

	require.Len(t, hostConfig.Mounts, 2)
	assert.Equal(t, mount.Mount{Type: mount.TypeBind, Source: "/data/egfr", Target: "/work"}, hostConfig.Mounts[0])
	assert.Equal(t, "/specs", hostConfig.Mounts[1].Source)
	assert.True(t, hostConfig.Mounts[1].ReadOnly)
}

func TestDockerRunner_NoClient(t *testing.T) {
	err := (&DockerRunner{}).Run(context.Background(), Invocation{})
	assert.True(t, errors.Is(err, bioactivity.ErrExternalTool))
}
