package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/api/response"
	"github.com/fieldatlas/fieldatlas/internal/geocode"
)

// GeocodeHandler handles place-name lookups.
type GeocodeHandler struct {
	resolver geocode.Resolver
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(resolver geocode.Resolver) *GeocodeHandler {
	return &GeocodeHandler{resolver: resolver}
}

// Lookup handles GET /v1/geocode?q=... - resolve a place name to
// candidate bounding boxes.
func (h *GeocodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.BadRequest(w, r, "query parameter q is required", nil)
		return
	}

	places, err := h.resolver.Resolve(r.Context(), query)
	if err != nil {
		if errors.Is(err, geocode.ErrLookupUnavailable) {
			response.ServiceUnavailable(w, r, "geocoding provider is unavailable")
			return
		}
		response.InternalError(w, r, "geocoding failed")
		return
	}

	results := make([]models.GeocodeResult, 0, len(places))
	for _, p := range places {
		results = append(results, models.GeocodeResult{
			DisplayName: p.DisplayName,
			BBox:        p.BBox,
		})
	}

	response.JSON(w, r, http.StatusOK, models.GeocodeResponse{
		Query:   query,
		Results: results,
	})
}
