// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/jason-s-yu/wsglobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// DefaultWatchInterval is how often a status watch polls its lobby.
const DefaultWatchInterval = time.Second

// APIServer exposes a lobby registry over HTTP.
type APIServer struct {
	registry      *lobby.Registry
	log           logrus.FieldLogger
	tokens        bool
	serviceToken  string
	watchInterval time.Duration
}

// NewAPIServer returns a server for registry. With tokens set, create and join
// issue signed lobby tokens and start requires the leader's token; auth.Init
// must have been called.
func NewAPIServer(registry *lobby.Registry, logger logrus.FieldLogger, tokens bool) *APIServer {
	return &APIServer{
		registry:      registry,
		log:           logger,
		tokens:        tokens,
		watchInterval: DefaultWatchInterval,
	}
}

// SetWatchInterval changes the status watch poll period.
func (s *APIServer) SetWatchInterval(d time.Duration) {
	s.watchInterval = d
}

// SetServiceToken sets the shared secret the character import process presents
// to record accounts. Until one is set, account assignment is refused.
func (s *APIServer) SetServiceToken(token string) {
	s.serviceToken = token
}

// Routes returns the service mux wrapped in request logging.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", s.handlePing)

	mux.HandleFunc("POST /lobby/create", s.handleCreate)
	mux.HandleFunc("GET /lobby/list", s.handleList)
	mux.HandleFunc("POST /lobby/{id}/join", s.handleJoin)
	mux.HandleFunc("GET /lobby/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /lobby/{id}/start", s.handleStart)
	mux.HandleFunc("POST /lobby/{id}/account", s.handleAssignAccount)

	mux.HandleFunc("GET /lobby/{id}/ws", s.handleWatch)

	return middleware.LogMiddleware(s.log)(mux)
}

func (s *APIServer) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"enabled": s.registry.Settings().Enabled,
		"lobbies": s.registry.Len(),
	})
}
