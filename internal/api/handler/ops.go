// Package handler provides HTTP handlers for the FieldAtlas API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/api/response"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	providers *resilience.Registry
	store     *tilestore.Store
	index     *tileindex.Index
	manager   *download.Manager
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, providers *resilience.Registry, store *tilestore.Store, index *tileindex.Index, manager *download.Manager) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		providers: providers,
		store:     store,
		index:     index,
		manager:   manager,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - cache and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystems(),
		Providers:  h.providerStatuses(),
	}

	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
			break
		}
	}

	if active := h.manager.Active(); active != nil {
		status.ActiveDownload = &models.ActiveDownload{
			Name:      active.Name,
			Mode:      active.Mode,
			State:     string(active.State),
			Zoom:      active.Zoom,
			Done:      active.Done,
			Total:     active.Total,
			StartedAt: models.Timestamp(active.StartedAt),
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	storeStatus := models.SubsystemStatus{Name: "tile-store", Status: models.HealthStatusOK}
	count, bytes, err := h.store.Stats()
	if err != nil {
		storeStatus.Status = models.HealthStatusDegraded
		detail := err.Error()
		storeStatus.Detail = &detail
	} else {
		detail := fmt.Sprintf("%d tiles, %d bytes", count, bytes)
		storeStatus.Detail = &detail
	}

	indexDetail := fmt.Sprintf("%d tiles indexed", h.index.Size())
	indexStatus := models.SubsystemStatus{
		Name:   "tile-index",
		Status: models.HealthStatusOK,
		Detail: &indexDetail,
	}

	return []models.SubsystemStatus{storeStatus, indexStatus}
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	all := h.providers.GetAllHealth()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		status := models.ProviderStatus{
			Provider: p.Name,
			Status:   models.HealthStatusOK,
		}
		switch p.CircuitState {
		case gobreaker.StateOpen:
			status.Status = models.HealthStatusFail
		case gobreaker.StateHalfOpen:
			status.Status = models.HealthStatusDegraded
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			status.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			status.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			status.Message = &msg
		}
		statuses = append(statuses, status)
	}
	return statuses
}
