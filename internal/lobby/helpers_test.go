package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeProvisioner hands out increasing instance ids. When gate is set,
// Provision signals entered and then waits for gate to close.
type fakeProvisioner struct {
	mu       sync.Mutex
	next     uint32
	err      error
	calls    int
	released []uint32
	rosters  [][]Participant

	entered chan struct{}
	gate    chan struct{}
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{next: 100000}
}

func (p *fakeProvisioner) Provision(ctx context.Context, roster []Participant) (uint32, error) {
	p.mu.Lock()
	p.calls++
	p.rosters = append(p.rosters, roster)
	entered, gate := p.entered, p.gate
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	id := p.next
	p.next++
	return id, nil
}

func (p *fakeProvisioner) Release(ctx context.Context, instanceID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, instanceID)
	return nil
}

func (p *fakeProvisioner) stats() (calls int, released []uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]uint32(nil), p.released...)
}

// fakeCleaner records deletions and fails for accounts listed in fail.
type fakeCleaner struct {
	mu      sync.Mutex
	deleted []uuid.UUID
	fail    map[uuid.UUID]bool
}

func (c *fakeCleaner) DeleteIdentity(ctx context.Context, account uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, account)
	if c.fail[account] {
		return errors.New("character database unavailable")
	}
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func defaultSettings() Settings {
	return Settings{
		Enabled:    true,
		MaxLobbies: 10,
		Timeout:    time.Hour,
		MinPlayers: 2,
		MaxPlayers: 20,
	}
}

type fixture struct {
	reg     *Registry
	prov    *fakeProvisioner
	cleaner *fakeCleaner
	clock   *fakeClock
	logs    *test.Hook
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		prov:    newFakeProvisioner(),
		cleaner: &fakeCleaner{fail: map[uuid.UUID]bool{}},
		clock:   &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		logs:    hook,
	}
	f.reg = NewRegistry(settings, f.prov, f.cleaner, WithLogger(logger), WithClock(f.clock.Now))
	return f
}

func character(name string, level int) models.CharacterData {
	return models.CharacterData{Name: name, Race: "Human", Level: level}
}
