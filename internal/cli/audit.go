package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit [region-id]",
	Short: "Check cache completeness for downloaded regions",
	Long: `Audit walks every tile a region is supposed to cover, using the
bounding box and zoom range recorded when it was downloaded, and
reports how many are actually on disk. Without an argument all
regions are audited.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		reg, getErr := eng.registry.Get(cmd.Context(), args[0])
		if getErr != nil {
			return getErr
		}
		report := eng.auditor.Audit(reg)
		fmt.Printf("%s (%s): %s, %d/%d tiles cached, %d missing\n",
			reg.Name, reg.ID, report.Status, report.Cached, report.Total, report.Missing)
		return nil
	}

	regions, err := eng.registry.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		fmt.Println("No regions to audit.")
		return nil
	}
	for i := range regions {
		report := eng.auditor.Audit(&regions[i])
		fmt.Printf("%s (%s): %s, %d/%d tiles cached, %d missing\n",
			regions[i].Name, regions[i].ID, report.Status, report.Cached, report.Total, report.Missing)
	}
	return nil
}
