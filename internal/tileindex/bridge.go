package tileindex

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// Message types on the renderer channel.
const (
	msgTileRequest  = "tileRequest"
	msgTileResponse = "tileResponse"
)

// notFoundSignal tells the renderer to fall back to a live fetch.
const notFoundSignal = "not_found"

// tileRequest is the inbound renderer message.
type tileRequest struct {
	Type      string   `json:"type"`
	Key       tile.Key `json:"key"`
	RequestID string   `json:"requestId"`
}

// tileResponse is the outbound renderer message. Exactly one of
// DataURI or Error is set.
type tileResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	DataURI   string `json:"dataUri,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Bridge serves the renderer message channel over a WebSocket. The
// rendering surface is sandboxed and cannot read the tile tree, so
// every tile it draws offline comes through here.
type Bridge struct {
	index    *Index
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewBridge creates a renderer bridge over the index.
func NewBridge(index *Index, logger zerolog.Logger) *Bridge {
	return &Bridge{
		index: index,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// The renderer runs in a local WebView; cross-origin
			// checks do not apply to the loopback surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "tilebridge").Logger(),
	}
}

// ServeHTTP upgrades the connection and answers tile requests until the
// renderer disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	b.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("renderer connected")

	for {
		var req tileRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn().Err(err).Msg("renderer connection error")
			}
			return
		}
		if req.Type != msgTileRequest {
			continue
		}
		if err := conn.WriteJSON(b.respond(req)); err != nil {
			b.logger.Warn().Err(err).Msg("failed to write tile response")
			return
		}
	}
}

func (b *Bridge) respond(req tileRequest) tileResponse {
	resp := tileResponse{Type: msgTileResponse, RequestID: req.RequestID}

	data, err := b.index.Lookup(req.Key)
	if err != nil {
		if !errors.Is(err, tilestore.ErrTileNotFound) {
			b.logger.Warn().Err(err).Str("tile", req.Key.String()).Msg("tile lookup failed")
		}
		resp.Error = notFoundSignal
		return resp
	}

	resp.DataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	return resp
}
