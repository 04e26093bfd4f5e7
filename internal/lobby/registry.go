// internal/lobby/registry.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrInvalidParticipant is returned when a create or join request names no
// character or an unknown faction.
var ErrInvalidParticipant = errors.New("invalid participant")

// Settings are the registry limits, fixed for the lifetime of a Registry.
type Settings struct {
	Enabled    bool
	MaxLobbies int
	Timeout    time.Duration
	MinPlayers int
	MaxPlayers int
}

// Provisioner turns a ready roster into a running activity instance.
type Provisioner interface {
	// Provision returns the id of a freshly configured instance. It is called
	// with no registry or session lock held.
	Provision(ctx context.Context, roster []Participant) (uint32, error)
	// Release tears down an instance that was provisioned but never committed
	// to a lobby.
	Release(ctx context.Context, instanceID uint32) error
}

// IdentityCleaner deletes an account and everything it owns. Deleting an
// account that no longer exists must succeed.
type IdentityCleaner interface {
	DeleteIdentity(ctx context.Context, account uuid.UUID) error
}

// Registry owns every live lobby.
//
// Lock hierarchy: mu (the registry lock) guards the lobbies map only. Each
// Session guards its own state with its own mutex. When both are needed, mu is
// taken first. A goroutine holding a session lock never takes mu, and no lock is
// held across a call to the Provisioner or IdentityCleaner.
type Registry struct {
	settings    Settings
	provisioner Provisioner
	cleaner     IdentityCleaner
	log         logrus.FieldLogger
	newID       IDGenerator
	now         func() time.Time

	mu      sync.RWMutex
	lobbies map[string]*Session
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = l }
}

// WithIDGenerator replaces GenerateID.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.newID = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty registry. A nil cleaner skips identity cleanup
// for evicted lobbies.
func NewRegistry(settings Settings, p Provisioner, c IdentityCleaner, opts ...Option) *Registry {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Registry{
		settings:    settings,
		provisioner: p,
		cleaner:     c,
		log:         discard,
		newID:       GenerateID,
		now:         time.Now,
		lobbies:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the limits the registry was built with.
func (r *Registry) Settings() Settings {
	return r.settings
}

// CreateLobby opens a new lobby with leaderName as its leader and first
// participant, and returns the lobby id.
func (r *Registry) CreateLobby(leaderName string, faction models.Faction, character models.CharacterData) (string, error) {
	if !r.settings.Enabled {
		return "", ErrDisabled
	}
	leader, err := r.newParticipant(leaderName, faction, character)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if len(r.lobbies) >= r.settings.MaxLobbies {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: maximum number of lobbies (%d) reached", ErrConflict, r.settings.MaxLobbies)
	}
	id := r.newID()
	for r.lobbies[id] != nil {
		id = r.newID()
	}
	r.lobbies[id] = newSession(id, leader, r.settings.MinPlayers, r.settings.MaxPlayers)
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"lobby":   id,
		"leader":  leader.Name,
		"faction": leader.Faction,
	}).Info("lobby created")
	return id, nil
}

// JoinLobby adds a participant to a pending lobby.
func (r *Registry) JoinLobby(id, name string, faction models.Faction, character models.CharacterData) error {
	p, err := r.newParticipant(name, faction, character)
	if err != nil {
		return err
	}

	s, ok := r.GetLobby(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// The registry lock is already released. If the sweeper evicted s in the
	// meantime it is marked expired, which addParticipantUnsafe rejects.
	s.mu.Lock()
	err = s.addParticipantUnsafe(p)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"lobby":       id,
		"participant": p.Name,
		"faction":     p.Faction,
	}).Info("player joined lobby")
	return nil
}

// StartLobby provisions an instance for a ready lobby and marks it started.
// Only the leader may start a lobby. The returned value is the instance id.
func (r *Registry) StartLobby(ctx context.Context, id, requester string) (uint32, error) {
	logger := r.log.WithFields(logrus.Fields{"lobby": id, "requester": requester})

	// Validate and copy the roster while holding both locks, then release them
	// before talking to the instance engine.
	r.mu.RLock()
	s, ok := r.lobbies[id]
	if !ok {
		r.mu.RUnlock()
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.leader != requester {
		r.mu.RUnlock()
		return 0, fmt.Errorf("%w: %s is not the leader of lobby %s", ErrUnauthorized, requester, id)
	}
	s.mu.Lock()
	if s.status != StatusPending {
		status := s.status
		s.mu.Unlock()
		r.mu.RUnlock()
		return 0, fmt.Errorf("%w: lobby %s is %s", ErrConflict, id, status)
	}
	if s.starting {
		s.mu.Unlock()
		r.mu.RUnlock()
		return 0, fmt.Errorf("%w: lobby %s is already starting", ErrConflict, id)
	}
	if !s.CanStartUnsafe() {
		s.mu.Unlock()
		r.mu.RUnlock()
		return 0, fmt.Errorf("%w: lobby %s needs %d players and both factions", ErrNotReady, id, s.minPlayers)
	}
	s.starting = true
	roster := s.rosterCopyUnsafe()
	s.mu.Unlock()
	r.mu.RUnlock()

	logger.WithField("participants", len(roster)).Info("starting lobby")

	instanceID, err := r.provisioner.Provision(ctx, roster)
	if err == nil && instanceID == 0 {
		err = errors.New("engine returned no instance")
	}
	if err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		logger.WithError(err).Error("failed to provision instance")
		return 0, fmt.Errorf("%w: lobby %s: %v", ErrProvisioningFailed, id, err)
	}

	// Re-acquire the locks to commit. The sweeper may have evicted the lobby
	// while we were unlocked; in that case the instance is orphaned.
	r.mu.RLock()
	current, ok := r.lobbies[id]
	if !ok || current != s {
		r.mu.RUnlock()
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		r.releaseOrphan(ctx, id, instanceID)
		return 0, fmt.Errorf("%w: lobby %s disappeared during start", ErrNotFound, id)
	}
	s.mu.Lock()
	s.starting = false
	if s.status != StatusPending {
		status := s.status
		s.mu.Unlock()
		r.mu.RUnlock()
		r.releaseOrphan(ctx, id, instanceID)
		return 0, fmt.Errorf("%w: lobby %s became %s during start", ErrConflict, id, status)
	}
	s.status = StatusStarted
	s.startedAt = r.now()
	s.instanceID = instanceID
	s.mu.Unlock()
	r.mu.RUnlock()

	logger.WithField("instance", instanceID).Info("lobby started")
	return instanceID, nil
}

func (r *Registry) releaseOrphan(ctx context.Context, id string, instanceID uint32) {
	logger := r.log.WithFields(logrus.Fields{"lobby": id, "instance": instanceID})
	logger.Warn("releasing instance orphaned by lobby eviction")
	if err := r.provisioner.Release(ctx, instanceID); err != nil {
		logger.WithError(err).Error("failed to release orphaned instance")
	}
}

// GetLobby returns the live session for id. The handle's exported methods take
// the session lock themselves.
func (r *Registry) GetLobby(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.lobbies[id]
	return s, ok
}

// ListActiveIDs returns the ids of all pending lobbies, sorted.
func (r *Registry) ListActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.lobbies))
	for id, s := range r.lobbies {
		s.mu.Lock()
		pending := s.status == StatusPending
		s.mu.Unlock()
		if pending {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of lobbies held, in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}

// StatusSnapshot returns a consistent copy of the lobby's state.
func (r *Registry) StatusSnapshot(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lobbies[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotUnsafe(), nil
}

// StatusJSON is StatusSnapshot encoded as JSON. Encoding happens after every
// lock has been released.
func (r *Registry) StatusJSON(id string) ([]byte, error) {
	snap, err := r.StatusSnapshot(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// AssignAccount records the account created for a participant by the
// character import process. Allowed while the lobby is pending or started.
func (r *Registry) AssignAccount(id, name string, account uuid.UUID) error {
	if account == uuid.Nil {
		return fmt.Errorf("%w: empty account id", ErrInvalidParticipant)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lobbies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	err := s.assignAccountUnsafe(name, account)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"lobby":       id,
		"participant": name,
		"account":     account,
	}).Info("account assigned")
	return nil
}

// CompleteLobby is called by the instance engine once a started lobby's
// contest has finished. The lobby is marked completed and forgotten.
func (r *Registry) CompleteLobby(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.lobbies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	if s.status != StatusStarted {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: lobby %s is %s, not started", ErrConflict, id, status)
	}
	s.status = StatusCompleted
	instanceID := s.instanceID
	s.mu.Unlock()
	delete(r.lobbies, id)

	r.log.WithFields(logrus.Fields{"lobby": id, "instance": instanceID}).Info("lobby completed")
	return nil
}

func (r *Registry) newParticipant(name string, faction models.Faction, character models.CharacterData) (Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Participant{}, fmt.Errorf("%w: missing character name", ErrInvalidParticipant)
	}
	if !faction.Valid() {
		return Participant{}, fmt.Errorf("%w: %s", ErrInvalidParticipant, faction)
	}
	return Participant{
		Name:      name,
		Faction:   faction,
		Character: character,
		JoinedAt:  r.now(),
	}, nil
}
