// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/jason-s-yu/wsglobby/internal/models"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// errUnauthenticated marks a missing or invalid lobby token or service
// credential.
var errUnauthenticated = errors.New("unauthenticated")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps registry failure kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, lobby.ErrNotReady):
		return http.StatusTooEarly
	case errors.Is(err, lobby.ErrProvisioningFailed):
		return http.StatusBadGateway
	case errors.Is(err, lobby.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, lobby.ErrInvalidParticipant),
		errors.Is(err, models.ErrInvalidCharacter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
