package commands

import (
	"fmt"

	"github.com/dyluth/assay/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new assay workspace",
	Long: `Initialize a new assay workspace with a default configuration and a
descriptor specification for the fingerprint generator.

Creates:
  • assay.yml - Pipeline configuration file
  • PubchemFingerprinter.xml - PubChem fingerprint descriptor specification

Use --force to reinitialize an existing workspace (WARNING: overwrites existing configuration).`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (replaces assay.yml and the descriptor spec)")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(initDir); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(initDir, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()

	return nil
}
