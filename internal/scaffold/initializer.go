// Package scaffold creates a starter assay workspace: assay.yml plus a
// descriptor specification for the fingerprint generator.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/assay/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Names of the files created by Initialize.
const (
	ConfigFile         = "assay.yml"
	DescriptorSpecFile = "PubchemFingerprinter.xml"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes the starter files into dir.
// If force is true, existing starter files are replaced.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := writeFiles(files); err != nil {
		return err
	}

	return validateCreatedFiles(dir)
}

// handleForce removes existing starter files
func handleForce(dir string) error {
	for _, name := range []string{ConfigFile, DescriptorSpecFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("⚠️  Removing existing %s...\n", name)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
		}
	}

	return nil
}

// getTemplateFiles reads the embedded templates
func getTemplateFiles(dir string) ([]FileInfo, error) {
	templates := []struct {
		source string
		target string
	}{
		{"templates/assay.yml.tmpl", ConfigFile},
		{"templates/PubchemFingerprinter.xml.tmpl", DescriptorSpecFile},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, tmpl := range templates {
		content, err := templatesFS.ReadFile(tmpl.source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", tmpl.target, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, tmpl.target),
			Content:     content,
			Permissions: 0644,
		})
	}

	return files, nil
}

// writeFiles writes all template files to disk
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return nil
}

// validateCreatedFiles checks that the written assay.yml passes full
// configuration validation
func validateCreatedFiles(dir string) error {
	content, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFile, err)
	}

	if _, err := config.Parse(content); err != nil {
		return fmt.Errorf("created %s is not a valid configuration: %w", ConfigFile, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized assay workspace!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", ConfigFile)
	fmt.Printf("  ✓ %s\n", DescriptorSpecFile)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set target.query and training.model_name in assay.yml")
	fmt.Println("  2. Point fingerprint.command at your PaDEL-Descriptor install")
	fmt.Println("  3. Export ASSAY_TRAINING_TOKEN if your model service needs one")
	fmt.Println("  4. Run 'assay run' to fetch, featurize, train and predict")
}
