package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// Manager errors.
var (
	// ErrDownloadBusy is returned when a download is already running.
	// Two concurrent downloads could race on overlapping tile ranges,
	// so the manager admits one run at a time.
	ErrDownloadBusy = errors.New("a download is already in progress")

	// ErrNoActiveDownload is returned by Cancel when nothing is running.
	ErrNoActiveDownload = errors.New("no active download")
)

// Rebuilder is notified after the tile tree changes so presence indexes
// can refresh.
type Rebuilder interface {
	Rebuild() error
}

// ActiveStatus is a snapshot of the running download.
type ActiveStatus struct {
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	State     State     `json:"state"`
	Zoom      int       `json:"zoom"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"startedAt"`
}

// Manager owns all writes to the tile tree: it serializes downloads and
// performs region deletion. Everything else only reads.
type Manager struct {
	orch     *Orchestrator
	store    *tilestore.Store
	registry region.Repository
	index    Rebuilder
	logger   zerolog.Logger

	mu         sync.Mutex
	active     *activeRun
	lastResult *Result
}

type activeRun struct {
	req       Request
	cancel    context.CancelFunc
	startedAt time.Time
	progress  Progress
	state     State
}

// ManagerConfig holds construction parameters for the Manager.
type ManagerConfig struct {
	Orchestrator *Orchestrator
	Store        *tilestore.Store
	Registry     region.Repository
	Index        Rebuilder // optional
	Logger       zerolog.Logger
}

// NewManager creates a download manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		orch:     cfg.Orchestrator,
		store:    cfg.Store,
		registry: cfg.Registry,
		index:    cfg.Index,
		logger:   cfg.Logger.With().Str("component", "download-manager").Logger(),
	}
}

// Orchestrator exposes the underlying orchestrator for progress
// subscriptions.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orch
}

// Start plans the request and, when the pre-check passes, launches the
// download in the background. Returns ErrDownloadBusy while another run
// is active.
func (m *Manager) Start(req Request) (*Plan, error) {
	plan, err := m.orch.PlanRegion(req)
	if err != nil {
		return plan, err
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrDownloadBusy
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		req:       req,
		cancel:    cancel,
		startedAt: time.Now(),
		state:     StateFetching,
		progress:  Progress{Total: plan.TileCount},
	}
	m.active = run
	m.mu.Unlock()

	progress := m.orch.Subscribe()
	go func() {
		for p := range progress {
			m.mu.Lock()
			if m.active == run {
				m.active.progress = p
			}
			m.mu.Unlock()
		}
	}()

	go func() {
		defer cancel()
		result, runErr := m.orch.Run(runCtx, req)
		m.orch.Unsubscribe(progress)

		m.mu.Lock()
		m.active = nil
		if result != nil {
			m.lastResult = result
		}
		m.mu.Unlock()

		if runErr != nil {
			m.logger.Error().Err(runErr).Str("region", req.Name).Msg("download ended with error")
		}
		if result != nil && result.Downloaded > 0 {
			m.rebuildIndex()
		}
	}()

	return plan, nil
}

// Cancel requests cooperative cancellation of the running download.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveDownload
	}
	m.active.state = StateCancelled
	m.active.cancel()
	return nil
}

// Active returns a snapshot of the running download, or nil.
func (m *Manager) Active() *ActiveStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return &ActiveStatus{
		Name:      m.active.req.Name,
		Mode:      m.active.req.Mode.ID,
		State:     m.active.state,
		Zoom:      m.active.progress.Zoom,
		Done:      m.active.progress.Done,
		Total:     m.active.progress.Total,
		StartedAt: m.active.startedAt,
	}
}

// LastResult returns the most recent finished run, or nil.
func (m *Manager) LastResult() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResult
}

// DeleteRegion removes a region's registry entry and best-effort
// deletes every tile file its own bounding box and zoom range cover.
// Overlapping regions share tiles on disk, so this can remove tiles
// another region still covers; ownership is not refcounted. Running it
// twice is not an error.
func (m *Manager) DeleteRegion(ctx context.Context, id string) (int, error) {
	reg, err := m.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, region.ErrRegionNotFound) {
			return 0, nil
		}
		return 0, err
	}

	deleted := 0
	for _, k := range reg.Keys() {
		if !m.store.Exists(k) {
			continue
		}
		if err := m.store.Delete(k); err != nil {
			m.logger.Warn().Err(err).Str("tile", k.String()).Msg("failed to delete tile")
			continue
		}
		deleted++
	}

	if err := m.registry.Remove(ctx, id); err != nil && !errors.Is(err, region.ErrRegionNotFound) {
		return deleted, err
	}

	m.logger.Info().
		Str("region_id", id).
		Str("region", reg.Name).
		Int("tiles_deleted", deleted).
		Msg("region deleted")

	m.rebuildIndex()
	return deleted, nil
}

func (m *Manager) rebuildIndex() {
	if m.index == nil {
		return
	}
	if err := m.index.Rebuild(); err != nil {
		m.logger.Error().Err(err).Msg("failed to rebuild tile index")
	}
}
