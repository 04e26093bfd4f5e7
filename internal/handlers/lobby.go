// internal/handlers/lobby.go
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/auth"
	"github.com/jason-s-yu/wsglobby/internal/models"
)

// maxBodyBytes bounds request bodies; character exports are small.
const maxBodyBytes = 1 << 20

type createRequest struct {
	LeaderName    string          `json:"leader_name"`
	Faction       string          `json:"faction"`
	CharacterData json.RawMessage `json:"character_data"`
}

type joinRequest struct {
	CharacterName string          `json:"character_name"`
	Faction       string          `json:"faction"`
	CharacterData json.RawMessage `json:"character_data"`
}

type joinResponse struct {
	LobbyID string `json:"lobby_id"`
	Token   string `json:"token,omitempty"`
}

type startRequest struct {
	Requester string `json:"requester"`
}

type startResponse struct {
	LobbyID       string `json:"lobby_id"`
	WSGInstanceID uint32 `json:"wsg_instance_id"`
}

type accountRequest struct {
	CharacterName string    `json:"character_name"`
	AccountID     uuid.UUID `json:"account_id"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// participantFrom parses the character export and settles the participant's
// name and faction. An omitted name falls back to the character's, an omitted
// faction is derived from its race.
func participantFrom(name, faction string, raw json.RawMessage) (string, models.Faction, models.CharacterData, error) {
	if len(raw) == 0 {
		return "", 0, models.CharacterData{}, fmt.Errorf("%w: missing character_data", errBadRequest)
	}
	character, err := models.ParseCharacterData(raw)
	if err != nil {
		return "", 0, models.CharacterData{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(character.Name)
	}

	var f models.Faction
	if faction != "" {
		f, err = models.ParseFaction(faction)
	} else {
		f, err = models.FactionForRace(character.Race)
	}
	if err != nil {
		return "", 0, models.CharacterData{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return name, f, character, nil
}

func (s *APIServer) issue(w http.ResponseWriter, status int, lobbyID, name string) {
	resp := joinResponse{LobbyID: lobbyID}
	if s.tokens {
		token, err := auth.CreateJWT(lobbyID, name)
		if err != nil {
			s.log.WithError(err).Error("failed to sign lobby token")
			writeError(w, err)
			return
		}
		resp.Token = token
	}
	writeJSON(w, status, resp)
}

func (s *APIServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	name, faction, character, err := participantFrom(req.LeaderName, req.Faction, req.CharacterData)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.registry.CreateLobby(name, faction, character)
	if err != nil {
		writeError(w, err)
		return
	}
	s.issue(w, http.StatusCreated, id, name)
}

func (s *APIServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	name, faction, character, err := participantFrom(req.CharacterName, req.Faction, req.CharacterData)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.JoinLobby(id, name, faction, character); err != nil {
		writeError(w, err)
		return
	}
	s.issue(w, http.StatusOK, id, name)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	body, err := s.registry.StatusJSON(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *APIServer) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"lobbies": s.registry.ListActiveIDs()})
}

// requester names who is asking to start lobbyID: the bearer token's subject,
// or the body's requester when tokens are off.
func (s *APIServer) requester(w http.ResponseWriter, r *http.Request, lobbyID string) (string, error) {
	if s.tokens {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errUnauthenticated
		}
		name, err := auth.AuthenticateJWT(token, lobbyID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUnauthenticated, err)
		}
		return name, nil
	}

	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		return "", err
	}
	if req.Requester == "" {
		return "", fmt.Errorf("%w: missing requester", errBadRequest)
	}
	return req.Requester, nil
}

func (s *APIServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	requester, err := s.requester(w, r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	instanceID, err := s.registry.StartLobby(r.Context(), id, requester)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{LobbyID: id, WSGInstanceID: instanceID})
}

// authorizeService checks the import process's bearer secret. Participant
// tokens are never accepted here.
func (s *APIServer) authorizeService(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" || s.serviceToken == "" {
		return fmt.Errorf("%w: service credential required", errUnauthenticated)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.serviceToken)) != 1 {
		return fmt.Errorf("%w: bad service credential", errUnauthenticated)
	}
	return nil
}

func (s *APIServer) handleAssignAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizeService(r); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	var req accountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.AssignAccount(id, req.CharacterName, req.AccountID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
