package tileindex_test

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

type bridgeMessage struct {
	Type      string   `json:"type"`
	Key       tile.Key `json:"key,omitempty"`
	RequestID string   `json:"requestId"`
	DataURI   string   `json:"dataUri"`
	Error     string   `json:"error"`
}

func dialBridge(t *testing.T, index *tileindex.Index) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(tileindex.NewBridge(index, zerolog.Nop()))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestBridge_ServesCachedTile(t *testing.T) {
	store := tilestore.New(t.TempDir(), zerolog.Nop())
	tileBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	require.NoError(t, store.Write(tile.Key{Z: 12, X: 2048, Y: 1362}, tileBytes))

	index := tileindex.New(store, zerolog.Nop())
	require.NoError(t, index.Rebuild())

	conn := dialBridge(t, index)

	require.NoError(t, conn.WriteJSON(bridgeMessage{
		Type:      "tileRequest",
		Key:       tile.Key{Z: 12, X: 2048, Y: 1362},
		RequestID: "req-1",
	}))

	var resp bridgeMessage
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "tileResponse", resp.Type)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.Error)

	require.True(t, strings.HasPrefix(resp.DataURI, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.DataURI, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, tileBytes, decoded)
}

func TestBridge_MissingTileReturnsNotFound(t *testing.T) {
	store := tilestore.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, store.Write(tile.Key{Z: 12, X: 2048, Y: 1362}, []byte("cached")))

	index := tileindex.New(store, zerolog.Nop())
	require.NoError(t, index.Rebuild())

	conn := dialBridge(t, index)

	require.NoError(t, conn.WriteJSON(bridgeMessage{
		Type:      "tileRequest",
		Key:       tile.Key{Z: 12, X: 0, Y: 0},
		RequestID: "req-2",
	}))

	var resp bridgeMessage
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "tileResponse", resp.Type)
	assert.Equal(t, "req-2", resp.RequestID)
	assert.Equal(t, "not_found", resp.Error)
	assert.Empty(t, resp.DataURI)
}

func TestBridge_IgnoresUnknownMessageTypes(t *testing.T) {
	store := tilestore.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, store.Write(tile.Key{Z: 5, X: 1, Y: 2}, []byte("x")))

	index := tileindex.New(store, zerolog.Nop())
	require.NoError(t, index.Rebuild())

	conn := dialBridge(t, index)

	require.NoError(t, conn.WriteJSON(bridgeMessage{Type: "ping", RequestID: "noise"}))
	require.NoError(t, conn.WriteJSON(bridgeMessage{
		Type:      "tileRequest",
		Key:       tile.Key{Z: 5, X: 1, Y: 2},
		RequestID: "req-3",
	}))

	var resp bridgeMessage
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "req-3", resp.RequestID)
	assert.NotEmpty(t, resp.DataURI)
}
