package lobby

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpired(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = time.Minute
	f := newFixture(t, settings)
	ctx := context.Background()

	old, err := f.reg.CreateLobby("Alice", models.FactionAlliance, character("Alice", 30))
	require.NoError(t, err)
	started, err := f.reg.CreateLobby("Bob", models.FactionHorde, character("Bob", 30))
	require.NoError(t, err)
	require.NoError(t, f.reg.JoinLobby(started, "Carol", models.FactionAlliance, character("Carol", 30)))
	_, err = f.reg.StartLobby(ctx, started, "Bob")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	fresh, err := f.reg.CreateLobby("Dave", models.FactionHorde, character("Dave", 30))
	require.NoError(t, err)

	report := f.reg.SweepExpired(ctx, f.clock.Now())
	assert.Empty(t, report.Evicted, "nothing has passed its timeout yet")

	f.clock.Advance(31 * time.Second)
	oldSession, _ := f.reg.GetLobby(old)
	report = f.reg.SweepExpired(ctx, f.clock.Now())
	assert.Equal(t, []string{old}, report.Evicted)
	assert.Equal(t, StatusExpired, oldSession.Status())

	_, ok := f.reg.GetLobby(old)
	assert.False(t, ok)
	_, ok = f.reg.GetLobby(started)
	assert.True(t, ok, "started lobbies are never swept")
	_, ok = f.reg.GetLobby(fresh)
	assert.True(t, ok)

	// The evicted lobby is gone for joiners too.
	assert.ErrorIs(t, f.reg.JoinLobby(old, "Eve", models.FactionHorde, character("Eve", 1)), ErrNotFound)
}

func TestSweepCleansUpEveryAccount(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = time.Minute
	f := newFixture(t, settings)

	id, err := f.reg.CreateLobby("Alice", models.FactionAlliance, character("Alice", 30))
	require.NoError(t, err)
	require.NoError(t, f.reg.JoinLobby(id, "Bob", models.FactionHorde, character("Bob", 30)))
	require.NoError(t, f.reg.JoinLobby(id, "Carol", models.FactionHorde, character("Carol", 30)))
	require.NoError(t, f.reg.JoinLobby(id, "Dave", models.FactionAlliance, character("Dave", 30)))

	alice, bob, dave := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, f.reg.AssignAccount(id, "Alice", alice))
	require.NoError(t, f.reg.AssignAccount(id, "Bob", bob))
	require.NoError(t, f.reg.AssignAccount(id, "Dave", dave))
	f.cleaner.fail[alice] = true

	f.clock.Advance(2 * time.Minute)
	report := f.reg.SweepExpired(context.Background(), f.clock.Now())

	assert.Equal(t, []string{id}, report.Evicted)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob, dave}, f.cleaner.deleted, "carol has no account")
	assert.Equal(t, 2, report.Cleaned)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Alice", report.Failures[0].Participant)
	assert.Zero(t, f.reg.Len(), "eviction does not depend on cleanup")

	var failures int
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failures++
			assert.Equal(t, alice, e.Data["account"])
		}
	}
	assert.Equal(t, 1, failures)
}

// TestStartRacesSweep pins the window where StartLobby has released its locks
// to provision and the sweeper evicts the lobby.
func TestStartRacesSweep(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = time.Minute
	f := newFixture(t, settings)
	f.prov.entered = make(chan struct{})
	f.prov.gate = make(chan struct{})

	id, err := f.reg.CreateLobby("Alice", models.FactionAlliance, character("Alice", 30))
	require.NoError(t, err)
	require.NoError(t, f.reg.JoinLobby(id, "Bob", models.FactionHorde, character("Bob", 30)))

	done := make(chan error, 1)
	go func() {
		_, err := f.reg.StartLobby(context.Background(), id, "Alice")
		done <- err
	}()
	<-f.prov.entered

	f.clock.Advance(2 * time.Minute)
	report := f.reg.SweepExpired(context.Background(), f.clock.Now())
	require.Equal(t, []string{id}, report.Evicted)

	close(f.prov.gate)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotFound)
	case <-time.After(5 * time.Second):
		t.Fatal("StartLobby did not return")
	}

	_, ok := f.reg.GetLobby(id)
	assert.False(t, ok, "evicted lobby must not be resurrected")
	_, released := f.prov.stats()
	assert.Equal(t, []uint32{100000}, released)
}

// TestStartSweepStress interleaves StartLobby and SweepExpired across many
// lobbies. Run with -race.
func TestStartSweepStress(t *testing.T) {
	settings := defaultSettings()
	settings.MaxLobbies = 200
	settings.Timeout = time.Nanosecond
	f := newFixture(t, settings)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 100; i++ {
		leader := fmt.Sprintf("leader-%d", i)
		id, err := f.reg.CreateLobby(leader, models.FactionAlliance, character(leader, 20))
		require.NoError(t, err)
		require.NoError(t, f.reg.JoinLobby(id, "rival", models.FactionHorde, character("rival", 20)))
		ids = append(ids, id)
	}
	f.clock.Advance(time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started = map[string]bool{}
		swept   = map[string]bool{}
	)
	for i, id := range ids {
		wg.Add(1)
		go func(id, leader string) {
			defer wg.Done()
			_, err := f.reg.StartLobby(ctx, id, leader)
			if err == nil {
				mu.Lock()
				started[id] = true
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrNotFound)
		}(id, fmt.Sprintf("leader-%d", i))
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report := f.reg.SweepExpired(ctx, f.clock.Now())
			mu.Lock()
			for _, id := range report.Evicted {
				assert.False(t, swept[id], "lobby %s evicted twice", id)
				swept[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	f.reg.SweepExpired(ctx, f.clock.Now())

	for id := range started {
		assert.False(t, swept[id], "lobby %s both started and evicted", id)
		s, ok := f.reg.GetLobby(id)
		require.True(t, ok)
		assert.Equal(t, StatusStarted, s.Status())
	}
	assert.Equal(t, len(started), f.reg.Len())

	calls, released := f.prov.stats()
	assert.Equal(t, calls, len(started)+len(released), "every provisioned instance is committed or released")
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = time.Nanosecond
	logger, _ := test.NewNullLogger()
	reg := NewRegistry(settings, newFakeProvisioner(), &fakeCleaner{}, WithLogger(logger))

	_, err := reg.CreateLobby("Alice", models.FactionAlliance, character("Alice", 30))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		NewSweeper(reg, 5*time.Millisecond, logger).Run(ctx)
		close(stopped)
	}()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
