package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fieldatlas/fieldatlas/internal/api/response"
	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// TilesHandler serves cached tiles to HTTP consumers.
type TilesHandler struct {
	index *tileindex.Index
}

// NewTilesHandler creates a new TilesHandler.
func NewTilesHandler(index *tileindex.Index) *TilesHandler {
	return &TilesHandler{index: index}
}

// Get handles GET /v1/tiles/{z}/{x}/{y}.png - serve one cached tile.
func (h *TilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(r)
	if !ok {
		response.BadRequest(w, r, "tile coordinates must be non-negative integers", nil)
		return
	}

	data, err := h.index.Lookup(key)
	if err != nil {
		if errors.Is(err, tilestore.ErrTileNotFound) {
			response.NotFound(w, r, "tile "+key.String()+" is not cached")
			return
		}
		response.InternalError(w, r, "failed to read tile")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	// Cached tiles are immutable until the region is re-downloaded.
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseKey(r *http.Request) (tile.Key, bool) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || x < 0 || y < 0 {
		return tile.Key{}, false
	}
	return tile.Key{Z: z, X: x, Y: y}, true
}
