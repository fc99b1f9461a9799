package download_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// gatedFetcher blocks every fetch until the gate is opened.
type gatedFetcher struct {
	gate chan struct{}
}

func (f *gatedFetcher) Fetch(ctx context.Context, k tile.Key) ([]byte, error) {
	select {
	case <-f.gate:
		return []byte("tile:" + k.String()), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newManager(t *testing.T, fetcher download.Fetcher) (*download.Manager, *tilestore.Store, region.Repository) {
	t.Helper()
	store := tilestore.New(t.TempDir(), zerolog.Nop())
	repo := region.NewInMemoryRepository()
	orch := download.NewOrchestrator(download.Config{
		Store:       store,
		Fetcher:     fetcher,
		Registry:    repo,
		Logger:      zerolog.Nop(),
		Concurrency: 2,
	})
	mgr := download.NewManager(download.ManagerConfig{
		Orchestrator: orch,
		Store:        store,
		Registry:     repo,
		Logger:       zerolog.Nop(),
	})
	return mgr, store, repo
}

func TestManager_SingleActiveDownload(t *testing.T) {
	fetcher := &gatedFetcher{gate: make(chan struct{})}
	mgr, _, _ := newManager(t, fetcher)

	plan, err := mgr.Start(testRequest())
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Positive(t, plan.TileCount)

	// One download at a time.
	_, err = mgr.Start(testRequest())
	assert.True(t, errors.Is(err, download.ErrDownloadBusy))

	active := mgr.Active()
	require.NotNil(t, active)
	assert.Equal(t, "Beersheba", active.Name)
	assert.Equal(t, download.StateFetching, active.State)

	close(fetcher.gate)

	require.Eventually(t, func() bool {
		return mgr.Active() == nil
	}, 5*time.Second, 10*time.Millisecond)

	result := mgr.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, download.StateCompleted, result.State)
	assert.Equal(t, result.Total, result.Downloaded)
}

func TestManager_Cancel(t *testing.T) {
	fetcher := &gatedFetcher{gate: make(chan struct{})}
	mgr, _, repo := newManager(t, fetcher)

	_, err := mgr.Start(testRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel())

	require.Eventually(t, func() bool {
		return mgr.Active() == nil
	}, 5*time.Second, 10*time.Millisecond)

	result := mgr.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, download.StateCancelled, result.State)

	// Cancelled runs leave no registry entry behind.
	regions, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regions)

	assert.True(t, errors.Is(mgr.Cancel(), download.ErrNoActiveDownload))
}

func TestManager_DeleteRegion(t *testing.T) {
	fetcher := &gatedFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	mgr, store, repo := newManager(t, fetcher)
	ctx := context.Background()

	reg := region.Region{
		ID:      region.NewID(),
		Name:    "Beersheba",
		BBox:    testBBox,
		MinZoom: 10,
		MaxZoom: 13,
		Mode:    region.ModeNavigation,
	}
	require.NoError(t, repo.Upsert(ctx, reg))
	keys := reg.Keys()
	for _, k := range keys {
		require.NoError(t, store.Write(k, []byte("t")))
	}

	deleted, err := mgr.DeleteRegion(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, len(keys), deleted)

	for _, k := range keys {
		assert.False(t, store.Exists(k), "tile %s should be gone", k)
	}
	regions, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)

	// Deleting again is a no-op, not an error.
	deleted, err = mgr.DeleteRegion(ctx, reg.ID)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
