// internal/handlers/lobby_ws.go
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/jason-s-yu/wsglobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// handleWatch streams a lobby's status document to a websocket client. A frame
// is sent on connect and then whenever the document changes. The socket is
// closed with InvalidLobbyIDError once the lobby is gone.
func (s *APIServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.registry.GetLobby(id); !ok {
		writeError(w, fmt.Errorf("%w: %s", lobby.ErrNotFound, id))
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	logger := s.log.WithFields(logrus.Fields{"lobby": id, "remote": r.RemoteAddr})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	// Clients only listen; CloseRead handles their close frame and cancels ctx.
	ctx := c.CloseRead(r.Context())
	err = s.watch(ctx, c, id)
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
}

func (s *APIServer) watch(ctx context.Context, c *websocket.Conn, id string) error {
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	var last []byte
	for {
		doc, err := s.registry.StatusJSON(id)
		if errors.Is(err, lobby.ErrNotFound) {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			return nil
		}
		if err != nil {
			c.Close(websocket.StatusInternalError, "status unavailable")
			return err
		}
		if !bytes.Equal(doc, last) {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, doc)
			cancel()
			if err != nil {
				return err
			}
			last = doc
		}

		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-ticker.C:
		}
	}
}
