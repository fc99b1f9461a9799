package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldatlas/fieldatlas/internal/api"
	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/audit"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(_ context.Context, _ tile.Key) ([]byte, error) {
	return []byte("png"), nil
}

type fakeResolver struct {
	places []geocode.Place
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) ([]geocode.Place, error) {
	return f.places, f.err
}

type testEnv struct {
	router   http.Handler
	store    *tilestore.Store
	index    *tileindex.Index
	registry region.Repository
	manager  *download.Manager
}

func newTestEnv(t *testing.T, resolver geocode.Resolver) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	store := tilestore.New(t.TempDir(), logger)
	registry := region.NewInMemoryRepository()
	index := tileindex.New(store, logger)
	require.NoError(t, index.Rebuild())

	orch := download.NewOrchestrator(download.Config{
		Store:       store,
		Fetcher:     &fakeFetcher{},
		Registry:    registry,
		Logger:      logger,
		Concurrency: 2,
	})
	manager := download.NewManager(download.ManagerConfig{
		Orchestrator: orch,
		Store:        store,
		Registry:     registry,
		Index:        index,
		Logger:       logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    logger,
		Providers: resilience.NewRegistry(),
		Store:     store,
		Index:     index,
		Registry:  registry,
		Manager:   manager,
		Auditor:   audit.New(store, logger),
		Resolver:  resolver,
		Modes:     region.DefaultModes(),
		Bridge:    tileindex.NewBridge(index, logger),
	})

	return &testEnv{
		router:   router,
		store:    store,
		index:    index,
		registry: registry,
		manager:  manager,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodGet, "/v1/ops/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRouter_Status(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodGet, "/v1/ops/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 2)
	assert.Equal(t, "tile-store", status.Subsystems[0].Name)
	assert.Equal(t, "tile-index", status.Subsystems[1].Name)
	assert.Nil(t, status.ActiveDownload)
}

func TestRouter_Geocode(t *testing.T) {
	resolver := &fakeResolver{places: []geocode.Place{
		{DisplayName: "Be'er Sheva, Israel", BBox: tile.BoundingBox{North: 31.3, South: 31.2, East: 34.85, West: 34.74}},
	}}
	env := newTestEnv(t, resolver)

	w := doJSON(t, env.router, http.MethodGet, "/v1/geocode?q=beer+sheva", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.GeocodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "beer sheva", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Be'er Sheva, Israel", resp.Results[0].DisplayName)
}

func TestRouter_Geocode_MissingQuery(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodGet, "/v1/geocode", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_Geocode_ProviderDown(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{err: geocode.ErrLookupUnavailable})

	w := doJSON(t, env.router, http.MethodGet, "/v1/geocode?q=anywhere", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Modes(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodGet, "/v1/modes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ModeList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Modes, 2)
	assert.Equal(t, "navigation", list.Modes[0].ID)
}

func TestRouter_CreateRegion_DownloadsAndRegisters(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	body := `{"name":"negev","bbox":{"north":31.24,"south":31.23,"east":34.79,"west":34.78},"mode":"navigation"}`
	w := doJSON(t, env.router, http.MethodPost, "/v1/regions", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "/v1/regions/active", w.Header().Get("Location"))

	var accepted models.DownloadAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "negev", accepted.Name)
	assert.Positive(t, accepted.TileCount)

	require.Eventually(t, func() bool {
		return env.manager.Active() == nil && env.manager.LastResult() != nil
	}, 5*time.Second, 10*time.Millisecond)

	regions, err := env.registry.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)

	// The finished run is reported on the active endpoint.
	w = doJSON(t, env.router, http.MethodGet, "/v1/regions/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result models.DownloadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, string(download.StateCompleted), result.State)
	assert.Equal(t, result.Total, result.Downloaded+result.Skipped)
}

func TestRouter_CreateRegion_UnknownMode(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	body := `{"name":"negev","bbox":{"north":31.24,"south":31.23,"east":34.79,"west":34.78},"mode":"submarine"}`
	w := doJSON(t, env.router, http.MethodPost, "/v1/regions", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
}

func TestRouter_CreateRegion_InvalidBBox(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	body := `{"name":"inverted","bbox":{"north":31.0,"south":32.0,"east":34.79,"west":34.78},"mode":"navigation"}`
	w := doJSON(t, env.router, http.MethodPost, "/v1/regions", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.NotEmpty(t, problem.Errors)
	assert.Equal(t, "north", problem.Errors[0].Field)
}

func TestRouter_CreateRegion_TooLarge(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	// A continent-scale box at navigation zooms blows the mode ceiling.
	body := `{"name":"everything","bbox":{"north":60.0,"south":10.0,"east":100.0,"west":-10.0},"mode":"navigation"}`
	w := doJSON(t, env.router, http.MethodPost, "/v1/regions", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeRegionTooLarge, problem.Type)
}

func TestRouter_RegionAuditAndDelete(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	body := `{"name":"negev","bbox":{"north":31.24,"south":31.23,"east":34.79,"west":34.78},"mode":"navigation"}`
	w := doJSON(t, env.router, http.MethodPost, "/v1/regions", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return env.manager.Active() == nil && env.manager.LastResult() != nil
	}, 5*time.Second, 10*time.Millisecond)

	regions, err := env.registry.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	regionID := regions[0].ID

	w = doJSON(t, env.router, http.MethodGet, "/v1/regions?audit=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.RegionList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.NotNil(t, list.Items[0].Audit)
	assert.Equal(t, string(audit.StatusComplete), list.Items[0].Audit.Status)

	w = doJSON(t, env.router, http.MethodGet, "/v1/regions/"+regionID+"/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	var auditResp models.AuditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auditResp))
	assert.Equal(t, string(audit.StatusComplete), auditResp.Status)
	assert.Zero(t, auditResp.Missing)

	w = doJSON(t, env.router, http.MethodDelete, "/v1/regions/"+regionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var deleted models.DeleteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deleted))
	assert.Positive(t, deleted.RemovedTiles)

	regions, err = env.registry.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestRouter_AuditUnknownRegion(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodGet, "/v1/regions/rgn_missing/audit", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CancelWithoutActiveDownload(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	w := doJSON(t, env.router, http.MethodPost, "/v1/regions/active/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ServeTile(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{})

	key := tile.Key{Z: 12, X: 2048, Y: 1362}
	require.NoError(t, env.store.Write(key, []byte("png-bytes")))
	require.NoError(t, env.index.Rebuild())

	w := doJSON(t, env.router, http.MethodGet, "/v1/tiles/12/2048/1362.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = doJSON(t, env.router, http.MethodGet, "/v1/tiles/12/0/0.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/v1/tiles/12/abc/0.png", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
