package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <place>",
	Short: "Resolve a place name to candidate bounding boxes",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

func runGeocode(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	places, err := eng.resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(places) == 0 {
		fmt.Printf("No match for %q.\n", args[0])
		return nil
	}

	for i, p := range places {
		fmt.Printf("%d. %s\n   N %.5f  S %.5f  E %.5f  W %.5f\n",
			i+1, p.DisplayName, p.BBox.North, p.BBox.South, p.BBox.East, p.BBox.West)
	}
	return nil
}
