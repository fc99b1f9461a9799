package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List downloaded regions",
	Args:  cobra.NoArgs,
	RunE:  runRegionsList,
}

var regionsRmCmd = &cobra.Command{
	Use:   "rm <region-id>",
	Short: "Delete a region and purge its cached tiles",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegionsRm,
}

func init() {
	regionsCmd.AddCommand(regionsRmCmd)
}

func runRegionsList(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	regions, err := eng.registry.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		fmt.Println("No regions downloaded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODE\tZOOM\tTILES\tSIZE\tDOWNLOADED")
	for _, r := range regions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%d\t%.1f MB\t%s\n",
			r.ID, r.Name, r.Mode, r.MinZoom, r.MaxZoom, r.TileCount,
			r.SizeEstimateMB, r.DownloadedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runRegionsRm(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	removed, err := eng.manager.DeleteRegion(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached tiles.\n", removed)
	return nil
}
