package handler

import (
	"net/http"

	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/api/response"
	"github.com/fieldatlas/fieldatlas/internal/region"
)

// ModesHandler exposes the configured download modes.
type ModesHandler struct {
	modes []region.Mode
}

// NewModesHandler creates a new ModesHandler.
func NewModesHandler(modes []region.Mode) *ModesHandler {
	return &ModesHandler{modes: modes}
}

// List handles GET /v1/modes.
func (h *ModesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ModeList{Modes: h.modes})
}
