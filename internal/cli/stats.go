package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tile cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	count, bytes, err := eng.store.Stats()
	if err != nil {
		return err
	}

	regions, err := eng.registry.Load(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Tile directory: %s\n", eng.cfg.TileDir)
	fmt.Printf("Cached tiles:   %d (%.1f MB)\n", count, float64(bytes)/(1024*1024))
	fmt.Printf("Regions:        %d\n", len(regions))
	return nil
}
