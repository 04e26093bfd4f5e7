package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readStatus(t *testing.T, ctx context.Context, c *websocket.Conn) statusDoc {
	t.Helper()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var doc statusDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestLobbyWatch(t *testing.T) {
	ts := newTestServer(t, defaultSettings(), true)
	ts.api.SetWatchInterval(10 * time.Millisecond)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	id, err := ts.registry.CreateLobby("Alice", models.FactionAlliance, models.CharacterData{Name: "Alice"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby/" + id + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"lobby"}})
	require.NoError(t, err)
	defer c.CloseNow()

	doc := readStatus(t, ctx, c)
	assert.Equal(t, id, doc.ID)
	assert.Len(t, doc.Participants, 1)

	require.NoError(t, ts.registry.JoinLobby(id, "Bob", models.FactionHorde, models.CharacterData{Name: "Bob"}))
	doc = readStatus(t, ctx, c)
	assert.Len(t, doc.Participants, 2)
	assert.True(t, doc.CanStart)

	_, err = ts.registry.StartLobby(ctx, id, "Alice")
	require.NoError(t, err)
	doc = readStatus(t, ctx, c)
	assert.Equal(t, "started", doc.Status)

	require.NoError(t, ts.registry.CompleteLobby(id))
	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(InvalidLobbyIDError), websocket.CloseStatus(err))
}

func TestLobbyWatchUnknownLobby(t *testing.T) {
	ts := newTestServer(t, defaultSettings(), true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby/zzzz-zzzz/ws"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"lobby"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLobbyWatchRequiresSubprotocol(t *testing.T) {
	ts := newTestServer(t, defaultSettings(), true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	id, err := ts.registry.CreateLobby("Alice", models.FactionAlliance, models.CharacterData{Name: "Alice"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby/" + id + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}
