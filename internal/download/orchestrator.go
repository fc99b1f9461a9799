// Package download implements the region download state machine: plan
// the tile set for a bounding box, fetch missing tiles with bounded
// concurrency, report progress, and persist region metadata on
// completion.
package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// State is the orchestrator's lifecycle state for one download run.
type State string

// Download states.
const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateFetching  State = "fetching"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// ErrRegionTooLarge is returned by the planning pre-check when the tile
// count exceeds the mode's ceiling. It is the only way a run fails:
// mid-fetch errors are counted per tile, never fatal.
var ErrRegionTooLarge = errors.New("region exceeds tile limit")

// DefaultConcurrency is the number of tile fetches in flight.
const DefaultConcurrency = 6

// DefaultTileSizeKB is the assumed average tile size used for the
// advisory download size estimate.
const DefaultTileSizeKB = 18.0

// Fetcher retrieves raster bytes for one tile.
type Fetcher interface {
	Fetch(ctx context.Context, k tile.Key) ([]byte, error)
}

// Request describes one region download.
type Request struct {
	Name     string
	FullName string
	BBox     tile.BoundingBox
	Mode     region.Mode
}

// Plan is the result of the planning pre-check.
type Plan struct {
	TileCount      int
	TileLimit      int
	SizeEstimateMB float64
}

// Progress is one fire-and-forget progress event. Done counts completed
// tiles (cache hits included), so a consumer can render a percentage.
type Progress struct {
	Zoom  int `json:"zoom"`
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Result summarizes one finished run.
type Result struct {
	State          State
	Total          int
	Downloaded     int
	Skipped        int
	Failed         int
	SizeEstimateMB float64
	Region         *region.Region
}

// Config holds construction parameters for the Orchestrator.
type Config struct {
	Store    *tilestore.Store
	Fetcher  Fetcher
	Registry region.Repository
	Logger   zerolog.Logger

	// Concurrency is the fetch worker count (default 6).
	Concurrency int

	// TileSizeKB is the assumed per-tile size for estimates (default 18).
	TileSizeKB float64
}

// Orchestrator runs region downloads. It is the single writer of the
// tile tree; one run at a time is enforced by the Manager.
type Orchestrator struct {
	store       *tilestore.Store
	fetcher     Fetcher
	registry    region.Repository
	logger      zerolog.Logger
	concurrency int
	tileSizeKB  float64
	metrics     *Metrics

	mu          sync.Mutex
	subscribers []chan Progress
}

// NewOrchestrator creates a download orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	tileSizeKB := cfg.TileSizeKB
	if tileSizeKB <= 0 {
		tileSizeKB = DefaultTileSizeKB
	}
	return &Orchestrator{
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		registry:    cfg.Registry,
		logger:      cfg.Logger.With().Str("component", "download").Logger(),
		concurrency: concurrency,
		tileSizeKB:  tileSizeKB,
		metrics:     newMetrics(),
	}
}

// Subscribe registers a progress listener. Events are dropped rather
// than blocking the fetch loop when the listener lags.
func (o *Orchestrator) Subscribe() <-chan Progress {
	ch := make(chan Progress, 64)
	o.mu.Lock()
	o.subscribers = append(o.subscribers, ch)
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes a previously registered listener.
func (o *Orchestrator) Unsubscribe(ch <-chan Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.subscribers {
		if sub == ch {
			o.subscribers = append(o.subscribers[:i], o.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

func (o *Orchestrator) publish(p Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, sub := range o.subscribers {
		select {
		case sub <- p:
		default:
		}
	}
}

// PlanRegion validates the request and runs the tile-count pre-check.
// Exceeding the mode's tile limit returns ErrRegionTooLarge before any
// tile is touched.
func (o *Orchestrator) PlanRegion(req Request) (*Plan, error) {
	if err := req.BBox.Validate(); err != nil {
		return nil, err
	}
	if err := tile.ValidateZoomRange(req.Mode.MinZoom, req.Mode.MaxZoom); err != nil {
		return nil, err
	}

	count := tile.CountTiles(req.BBox, req.Mode.MinZoom, req.Mode.MaxZoom)
	plan := &Plan{
		TileCount:      count,
		TileLimit:      req.Mode.TileLimit,
		SizeEstimateMB: float64(count) * o.tileSizeKB / 1024.0,
	}
	if req.Mode.TileLimit > 0 && count > req.Mode.TileLimit {
		return plan, fmt.Errorf("%w: %d tiles, limit %d", ErrRegionTooLarge, count, req.Mode.TileLimit)
	}
	return plan, nil
}

type tileOutcome struct {
	key        tile.Key
	downloaded bool
	skipped    bool
	err        error
}

// Run executes one download. Cancellation via ctx is cooperative and
// observed between tiles; a cancelled run persists no region metadata
// but keeps every tile already written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	plan, err := o.PlanRegion(req)
	if err != nil {
		if errors.Is(err, ErrRegionTooLarge) {
			o.logger.Warn().
				Str("region", req.Name).
				Int("tiles", plan.TileCount).
				Int("limit", plan.TileLimit).
				Msg("region too large, refusing download")
			return &Result{State: StateFailed, Total: plan.TileCount}, err
		}
		return nil, err
	}

	total := plan.TileCount
	o.logger.Info().
		Str("region", req.Name).
		Str("mode", req.Mode.ID).
		Int("tiles", total).
		Int("concurrency", o.concurrency).
		Msg("starting region download")

	result := &Result{State: StateFetching, Total: total}
	start := time.Now()

	keys := make(chan tile.Key)
	outcomes := make(chan tileOutcome, o.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.fetchWorker(ctx, keys, outcomes)
		}()
	}

	// Deterministic enumeration: zoom outer, then columns, then rows.
	// Restarted runs walk tiles in the same sequence, so resumption
	// skips exactly the prefix already on disk.
	go func() {
		defer close(keys)
		for z := req.Mode.MinZoom; z <= req.Mode.MaxZoom; z++ {
			rect := tile.RectFor(req.BBox, z)
			for x := rect.MinX; x <= rect.MaxX; x++ {
				for y := rect.MinY; y <= rect.MaxY; y++ {
					select {
					case keys <- tile.Key{Z: z, X: x, Y: y}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	done := 0
	for out := range outcomes {
		done++
		switch {
		case out.err != nil:
			result.Failed++
			o.metrics.tileFailed(ctx)
			o.logger.Debug().Err(out.err).Str("tile", out.key.String()).Msg("tile fetch failed")
		case out.skipped:
			result.Skipped++
			o.metrics.tileSkipped(ctx)
		case out.downloaded:
			result.Downloaded++
			o.metrics.tileDownloaded(ctx)
		}
		o.publish(Progress{Zoom: out.key.Z, Done: done, Total: total})
	}

	if ctx.Err() != nil {
		result.State = StateCancelled
		o.logger.Info().
			Str("region", req.Name).
			Int("done", done).
			Int("total", total).
			Dur("elapsed", time.Since(start)).
			Msg("region download cancelled")
		return result, nil
	}

	// Completed. Cache hits count toward the download for the record:
	// the region's tiles are on disk either way.
	result.State = StateCompleted
	result.SizeEstimateMB = float64(result.Downloaded) * o.tileSizeKB / 1024.0

	reg := &region.Region{
		ID:             region.NewID(),
		Name:           req.Name,
		FullName:       req.FullName,
		BBox:           req.BBox,
		MinZoom:        req.Mode.MinZoom,
		MaxZoom:        req.Mode.MaxZoom,
		Mode:           req.Mode.ID,
		TileCount:      total,
		SizeEstimateMB: result.SizeEstimateMB,
		DownloadedAt:   time.Now().UTC(),
	}
	if err := o.registry.Upsert(ctx, *reg); err != nil {
		return nil, fmt.Errorf("persisting region %q: %w", req.Name, err)
	}
	result.Region = reg

	o.logger.Info().
		Str("region", req.Name).
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("region download completed")
	return result, nil
}

func (o *Orchestrator) fetchWorker(ctx context.Context, keys <-chan tile.Key, outcomes chan<- tileOutcome) {
	for k := range keys {
		// Cancellation is checked between tiles, not mid-fetch.
		if ctx.Err() != nil {
			return
		}

		if o.store.Exists(k) {
			outcomes <- tileOutcome{key: k, skipped: true}
			continue
		}

		data, err := o.fetcher.Fetch(ctx, k)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			outcomes <- tileOutcome{key: k, err: err}
			continue
		}
		if err := o.store.Write(k, data); err != nil {
			outcomes <- tileOutcome{key: k, err: err}
			continue
		}
		outcomes <- tileOutcome{key: k, downloaded: true}
	}
}
