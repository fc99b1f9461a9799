// Package cli implements the tilectl command-line interface. It works
// on the same data directory as the daemon and is meant for scripted
// preloading and cache maintenance; do not run it while tilesd has a
// download in flight.
package cli

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd is the base command for tilectl.
var rootCmd = &cobra.Command{
	Use:   "tilectl",
	Short: "Manage the FieldAtlas offline tile cache",
	Long: `tilectl manages the FieldAtlas offline map-tile cache.

It downloads regions for offline use, lists and deletes cached
regions, and audits how complete a region's tile coverage is.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(geocodeCmd)
}
