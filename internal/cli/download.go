package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
)

var (
	downloadMode  string
	downloadName  string
	downloadNorth float64
	downloadSouth float64
	downloadEast  float64
	downloadWest  float64
)

var downloadCmd = &cobra.Command{
	Use:   "download [place]",
	Short: "Download a region for offline use",
	Long: `Download all tiles covering a region at the zoom levels of the
selected mode. The region is either a place name resolved through the
geocoder, or an explicit bounding box given with --north, --south,
--east and --west.

Interrupting with Ctrl-C stops cleanly; already fetched tiles stay on
disk and a repeated download resumes where it left off.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadMode, "mode", "m", region.ModeNavigation, "Download mode")
	downloadCmd.Flags().StringVarP(&downloadName, "name", "n", "", "Region name (defaults to the place query)")
	downloadCmd.Flags().Float64Var(&downloadNorth, "north", 0, "Northern latitude of the bounding box")
	downloadCmd.Flags().Float64Var(&downloadSouth, "south", 0, "Southern latitude of the bounding box")
	downloadCmd.Flags().Float64Var(&downloadEast, "east", 0, "Eastern longitude of the bounding box")
	downloadCmd.Flags().Float64Var(&downloadWest, "west", 0, "Western longitude of the bounding box")
}

func runDownload(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	mode, ok := region.ModeByID(eng.modes, downloadMode)
	if !ok {
		return fmt.Errorf("unknown mode %q", downloadMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := download.Request{Mode: mode}
	switch {
	case len(args) == 1:
		place, resolveErr := resolvePlace(ctx, eng.resolver, args[0])
		if resolveErr != nil {
			return resolveErr
		}
		req.Name = args[0]
		req.FullName = place.DisplayName
		req.BBox = place.BBox
		fmt.Printf("Resolved %q to %s\n", args[0], place.DisplayName)
	case cmd.Flags().Changed("north"):
		req.Name = downloadName
		req.BBox = tile.BoundingBox{
			North: downloadNorth,
			South: downloadSouth,
			East:  downloadEast,
			West:  downloadWest,
		}
	default:
		return errors.New("give a place name or an explicit bounding box")
	}
	if downloadName != "" {
		req.Name = downloadName
	}
	if req.Name == "" {
		return errors.New("region name is required, set it with --name")
	}

	plan, err := eng.orch.PlanRegion(req)
	if err != nil {
		if errors.Is(err, download.ErrRegionTooLarge) && plan != nil {
			return fmt.Errorf("region needs %d tiles but mode %s allows %d; shrink the area or pick a coarser mode",
				plan.TileCount, mode.ID, plan.TileLimit)
		}
		return err
	}
	fmt.Printf("Downloading %d tiles (~%.1f MB) in mode %s\n", plan.TileCount, plan.SizeEstimateMB, mode.ID)

	progress := eng.orch.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			fmt.Printf("\rzoom %2d  %d/%d tiles", p.Zoom, p.Done, p.Total)
		}
	}()

	result, err := eng.orch.Run(ctx, req)
	eng.orch.Unsubscribe(progress)
	<-done
	fmt.Println()
	if err != nil {
		return err
	}

	switch result.State {
	case download.StateCancelled:
		fmt.Printf("Cancelled after %d of %d tiles; run again to resume\n",
			result.Downloaded+result.Skipped, result.Total)
	default:
		fmt.Printf("Done: %d downloaded, %d already cached, %d failed (~%.1f MB)\n",
			result.Downloaded, result.Skipped, result.Failed, result.SizeEstimateMB)
	}
	return nil
}

func resolvePlace(ctx context.Context, resolver geocode.Resolver, query string) (*geocode.Place, error) {
	places, err := resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("no match for %q", query)
	}
	if len(places) > 1 {
		fmt.Fprintf(os.Stderr, "%d matches, using the first: %s\n", len(places), places[0].DisplayName)
	}
	return &places[0], nil
}
