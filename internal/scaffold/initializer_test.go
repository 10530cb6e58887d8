package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/assay/internal/config"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
		wantErr   bool
	}{
		{
			name:      "fresh initialization",
			force:     false,
			setupFunc: func(dir string) {},
			wantErr:   false,
		},
		{
			name:  "force initialization replaces existing files",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644)
				os.WriteFile(filepath.Join(dir, DescriptorSpecFile), []byte("<old/>"), 0644)
			},
			wantErr: false,
		},
		{
			name:      "creates missing directory",
			force:     false,
			setupFunc: func(dir string) { os.RemoveAll(dir) },
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "workspace")
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatal(err)
			}
			tt.setupFunc(dir)

			err := Initialize(dir, tt.force)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			for _, name := range []string{ConfigFile, DescriptorSpecFile} {
				info, err := os.Stat(filepath.Join(dir, name))
				if err != nil {
					t.Fatalf("expected %s to exist: %v", name, err)
				}
				if info.Mode().Perm() != 0644 {
					t.Errorf("%s permissions = %v, want 0644", name, info.Mode().Perm())
				}
			}

			content, err := os.ReadFile(filepath.Join(dir, ConfigFile))
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(string(content), "old content") {
				t.Error("assay.yml was not replaced")
			}
		})
	}
}

func TestInitialize_ConfigIsValid(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, ConfigFile))
	if err != nil {
		t.Fatalf("generated assay.yml failed to load: %v", err)
	}

	if cfg.Fingerprint.Mode != "exec" {
		t.Errorf("fingerprint.mode = %q, want exec", cfg.Fingerprint.Mode)
	}
	if cfg.Fingerprint.SpecPattern != "*.xml" {
		t.Errorf("fingerprint.spec_pattern = %q, want *.xml", cfg.Fingerprint.SpecPattern)
	}
	if cfg.Training.TargetColumn != "standard_value" {
		t.Errorf("training.target_column = %q, want standard_value", cfg.Training.TargetColumn)
	}
	if cfg.Predict.Limit != 10 {
		t.Errorf("predict.limit = %d, want 10", cfg.Predict.Limit)
	}
}

func TestInitialize_SpecIsOnlyXML(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, false); err != nil {
		t.Fatal(err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one descriptor spec, found %v", matches)
	}
}
