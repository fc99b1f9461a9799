package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/api/response"
	"github.com/fieldatlas/fieldatlas/internal/audit"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
)

// RegionsHandler handles the region registry and download lifecycle.
type RegionsHandler struct {
	manager  *download.Manager
	registry region.Repository
	auditor  *audit.Auditor
	modes    []region.Mode
}

// NewRegionsHandler creates a new RegionsHandler.
func NewRegionsHandler(manager *download.Manager, registry region.Repository, auditor *audit.Auditor, modes []region.Mode) *RegionsHandler {
	return &RegionsHandler{
		manager:  manager,
		registry: registry,
		auditor:  auditor,
		modes:    modes,
	}
}

// Create handles POST /v1/regions - admit and start a region download.
func (h *RegionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.RegionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		response.BadRequest(w, r, "name is required", []models.FieldError{
			{Field: "name", Message: "must not be empty", Code: "required"},
		})
		return
	}

	mode, ok := region.ModeByID(h.modes, input.Mode)
	if !ok {
		response.BadRequest(w, r, fmt.Sprintf("unknown mode %q", input.Mode), []models.FieldError{
			{Field: "mode", Message: "must be a configured mode id", Code: "invalid"},
		})
		return
	}

	plan, err := h.manager.Start(download.Request{
		Name:     input.Name,
		FullName: input.FullName,
		BBox:     input.BBox,
		Mode:     mode,
	})
	if err != nil {
		var verr *tile.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "invalid bounding box", fieldErrors(verr))
		case errors.Is(err, download.ErrRegionTooLarge):
			detail := err.Error()
			if plan != nil {
				detail = fmt.Sprintf("%d tiles exceed the %s mode limit of %d", plan.TileCount, mode.ID, plan.TileLimit)
			}
			response.RegionTooLarge(w, r, detail)
		case errors.Is(err, download.ErrDownloadBusy):
			response.Conflict(w, r, "another download is already running")
		default:
			response.InternalError(w, r, "failed to start download")
		}
		return
	}

	response.Accepted(w, r, "/v1/regions/active", models.DownloadAccepted{
		Name:           input.Name,
		Mode:           mode.ID,
		TileCount:      plan.TileCount,
		SizeEstimateMB: plan.SizeEstimateMB,
	})
}

// List handles GET /v1/regions - list the downloaded regions. With
// ?audit=true each entry carries its coverage summary, at the cost of
// one stat call per expected tile.
func (h *RegionsHandler) List(w http.ResponseWriter, r *http.Request) {
	regions, err := h.registry.Load(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to load region registry")
		return
	}

	withAudit := r.URL.Query().Get("audit") == "true"
	items := make([]models.RegionEntry, 0, len(regions))
	for i := range regions {
		entry := models.RegionEntry{Region: regions[i]}
		if withAudit {
			report := h.auditor.Audit(&regions[i])
			entry.Audit = &models.AuditResponse{
				RegionID: regions[i].ID,
				Name:     regions[i].Name,
				Cached:   report.Cached,
				Total:    report.Total,
				Missing:  report.Missing,
				Status:   string(report.Status),
			}
		}
		items = append(items, entry)
	}
	response.JSON(w, r, http.StatusOK, models.RegionList{Items: items})
}

// Delete handles DELETE /v1/regions/{regionId} - remove a region and
// purge its cached tiles.
func (h *RegionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "regionId")
	if regionID == "" {
		response.BadRequest(w, r, "regionId is required", nil)
		return
	}

	removed, err := h.manager.DeleteRegion(r.Context(), regionID)
	if err != nil {
		response.InternalError(w, r, "failed to delete region")
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeleteResult{RemovedTiles: removed})
}

// Audit handles GET /v1/regions/{regionId}/audit - report cache
// coverage for one region.
func (h *RegionsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "regionId")
	if regionID == "" {
		response.BadRequest(w, r, "regionId is required", nil)
		return
	}

	reg, err := h.registry.Get(r.Context(), regionID)
	if err != nil {
		if errors.Is(err, region.ErrRegionNotFound) {
			response.NotFound(w, r, fmt.Sprintf("region %s not found", regionID))
			return
		}
		response.InternalError(w, r, "failed to load region")
		return
	}

	report := h.auditor.Audit(reg)
	response.JSON(w, r, http.StatusOK, models.AuditResponse{
		RegionID: reg.ID,
		Name:     reg.Name,
		Cached:   report.Cached,
		Total:    report.Total,
		Missing:  report.Missing,
		Status:   string(report.Status),
	})
}

// Active handles GET /v1/regions/active - snapshot of the download in
// flight.
func (h *RegionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Active()
	if active == nil {
		if last := h.manager.LastResult(); last != nil {
			response.JSON(w, r, http.StatusOK, models.DownloadResult{
				State:          string(last.State),
				Total:          last.Total,
				Downloaded:     last.Downloaded,
				Skipped:        last.Skipped,
				Failed:         last.Failed,
				SizeEstimateMB: last.SizeEstimateMB,
				Region:         last.Region,
			})
			return
		}
		response.NotFound(w, r, "no active download")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ActiveDownload{
		Name:      active.Name,
		Mode:      active.Mode,
		State:     string(active.State),
		Zoom:      active.Zoom,
		Done:      active.Done,
		Total:     active.Total,
		StartedAt: models.Timestamp(active.StartedAt),
	})
}

// CancelActive handles POST /v1/regions/active/cancel - cooperative
// cancellation of the running download.
func (h *RegionsHandler) CancelActive(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Cancel(); err != nil {
		if errors.Is(err, download.ErrNoActiveDownload) {
			response.NotFound(w, r, "no active download")
			return
		}
		response.InternalError(w, r, "failed to cancel download")
		return
	}
	response.Accepted(w, r, "", nil)
}

func fieldErrors(verr *tile.ValidationError) []models.FieldError {
	out := make([]models.FieldError, 0, len(verr.Errors))
	for _, f := range verr.Errors {
		out = append(out, models.FieldError{Field: f.Field, Message: f.Message, Code: "invalid"})
	}
	return out
}
