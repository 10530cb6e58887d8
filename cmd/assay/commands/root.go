package commands

import (
	"fmt"

	"github.com/dyluth/assay/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assay",
	Short: "Assay - bioactivity (Ki) prediction pipeline",
	Long: `Assay builds a bioactivity prediction model for one biological target.

It fetches Ki measurements from ChEMBL, cleans them, computes PubChem
fingerprints with an external descriptor generator, normalizes the target
values and trains a model on a remote training service, then predicts
activity for a subset of molecules.

Every stage writes its artifact into the work directory, and, when a Redis
ledger is configured, records it so runs can be inspected with 'assay hoard'
and followed with 'assay watch'.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", scaffold.ConfigFile, "Path to assay.yml")
}
