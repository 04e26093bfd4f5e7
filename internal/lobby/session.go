// internal/lobby/session.go
package lobby

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/models"
)

// Status is the lifecycle state of a lobby. PENDING is the only state in which
// the roster may change; the others are terminal from this service's view.
type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusCompleted
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStarted:
		return "started"
	case StatusCompleted:
		return "completed"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Participant is one character waiting in a lobby. Everything but AccountID is
// fixed when the participant is added.
type Participant struct {
	Name      string
	Faction   models.Faction
	Character models.CharacterData
	AccountID uuid.UUID // uuid.Nil until the import process assigns one
	JoinedAt  time.Time
}

// Session is the in-memory record of a single lobby.
//
// Locking: mu guards status, startedAt, instanceID, starting and participants.
// id, leader, createdAt and the player limits never change after construction
// and may be read without the lock. mu is not reentrant: methods suffixed
// Unsafe assume the caller already holds it, the others acquire it. Never call
// a locking method while holding mu, and never take the Registry lock while
// holding mu.
type Session struct {
	id         string
	leader     string
	createdAt  time.Time
	minPlayers int
	maxPlayers int

	mu           sync.Mutex
	status       Status
	startedAt    time.Time
	instanceID   uint32
	starting     bool // a StartLobby call is provisioning with a copy of the roster
	participants []Participant
}

func newSession(id string, leader Participant, minPlayers, maxPlayers int) *Session {
	return &Session{
		id:           id,
		leader:       leader.Name,
		createdAt:    leader.JoinedAt,
		minPlayers:   minPlayers,
		maxPlayers:   maxPlayers,
		status:       StatusPending,
		participants: []Participant{leader},
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Leader() string       { return s.leader }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// InstanceID returns the provisioned instance, or 0 if the lobby has not started.
func (s *Session) InstanceID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceID
}

// Participants returns a copy of the roster in join order.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterCopyUnsafe()
}

// SideACount returns the number of Alliance participants.
func (s *Session) SideACount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sideCountUnsafe(models.FactionAlliance)
}

// SideBCount returns the number of Horde participants.
func (s *Session) SideBCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sideCountUnsafe(models.FactionHorde)
}

// CanStart reports whether the lobby is ready to be started.
func (s *Session) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CanStartUnsafe()
}

// CanStartUnsafe is CanStart for callers holding the session lock. It counts
// both sides in a single pass over the roster rather than calling the locking
// count helpers.
func (s *Session) CanStartUnsafe() bool {
	if s.status != StatusPending {
		return false
	}
	if len(s.participants) < s.minPlayers {
		return false
	}
	alliance, horde := s.sideCountsUnsafe()
	return alliance > 0 && horde > 0
}

// IsExpired reports whether a still-pending lobby has outlived ttl at now.
func (s *Session) IsExpired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsExpiredUnsafe(now, ttl)
}

// IsExpiredUnsafe is IsExpired for callers holding the session lock.
func (s *Session) IsExpiredUnsafe(now time.Time, ttl time.Duration) bool {
	return s.status == StatusPending && now.Sub(s.createdAt) > ttl
}

func (s *Session) sideCountUnsafe(f models.Faction) int {
	n := 0
	for _, p := range s.participants {
		if p.Faction == f {
			n++
		}
	}
	return n
}

func (s *Session) sideCountsUnsafe() (alliance, horde int) {
	for _, p := range s.participants {
		switch p.Faction {
		case models.FactionAlliance:
			alliance++
		case models.FactionHorde:
			horde++
		}
	}
	return alliance, horde
}

func (s *Session) rosterCopyUnsafe() []Participant {
	out := make([]Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

// addParticipantUnsafe validates and appends p. Assumes lock is held.
func (s *Session) addParticipantUnsafe(p Participant) error {
	if s.status != StatusPending {
		return fmt.Errorf("%w: lobby %s is %s and not accepting players", ErrConflict, s.id, s.status)
	}
	if s.starting {
		return fmt.Errorf("%w: lobby %s is starting", ErrConflict, s.id)
	}
	for _, existing := range s.participants {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %s is already in lobby %s", ErrConflict, p.Name, s.id)
		}
	}
	if len(s.participants) >= s.maxPlayers {
		return fmt.Errorf("%w: lobby %s is full (%d players)", ErrConflict, s.id, s.maxPlayers)
	}
	s.participants = append(s.participants, p)
	return nil
}

// assignAccountUnsafe records the account created for a participant. A
// participant's account is set once; repeating the same account is a no-op.
// Assumes lock is held.
func (s *Session) assignAccountUnsafe(name string, account uuid.UUID) error {
	if s.status != StatusPending && s.status != StatusStarted {
		return fmt.Errorf("%w: lobby %s is %s", ErrConflict, s.id, s.status)
	}
	for i := range s.participants {
		p := &s.participants[i]
		if p.Name != name {
			continue
		}
		if p.AccountID != uuid.Nil && p.AccountID != account {
			return fmt.Errorf("%w: %s in lobby %s already has an account", ErrConflict, name, s.id)
		}
		p.AccountID = account
		return nil
	}
	return fmt.Errorf("%w: %s is not in lobby %s", ErrNotFound, name, s.id)
}

// snapshotUnsafe builds a deep copy of the lobby's observable state. Assumes
// lock is held.
func (s *Session) snapshotUnsafe() Snapshot {
	alliance, horde := s.sideCountsUnsafe()
	snap := Snapshot{
		ID:            s.id,
		Leader:        s.leader,
		Status:        s.status,
		InstanceID:    s.instanceID,
		AllianceCount: alliance,
		HordeCount:    horde,
		CanStart:      s.CanStartUnsafe(),
		CreatedAt:     s.createdAt,
		Participants:  make([]ParticipantView, 0, len(s.participants)),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.StartedAt = &started
	}
	for _, p := range s.participants {
		snap.Participants = append(snap.Participants, ParticipantView{
			Name:      p.Name,
			Faction:   p.Faction,
			AccountID: uuid.NullUUID{UUID: p.AccountID, Valid: p.AccountID != uuid.Nil},
		})
	}
	return snap
}
