// internal/provision/bridge.go
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// StartDelay is the countdown once the instance has players on both sides.
	StartDelay = 2 * time.Minute
	// MinPlayersPerTeam lets a lobby instance start at 1v1.
	MinPlayersPerTeam = 1
)

// LevelRange summarizes the character levels of a roster.
type LevelRange struct {
	Min, Max, Avg   int
	Alliance, Horde int
}

// RosterLevels derives the level bracket and side counts for roster. An empty
// roster yields the low bracket (10-80, average 19).
func RosterLevels(roster []lobby.Participant) LevelRange {
	if len(roster) == 0 {
		return LevelRange{Min: 10, Max: models.MaxLevel, Avg: models.DefaultLevel}
	}
	lr := LevelRange{Min: models.MaxLevel, Max: 1}
	total := 0
	for _, p := range roster {
		level := p.Character.EffectiveLevel()
		total += level
		lr.Min = min(lr.Min, level)
		lr.Max = max(lr.Max, level)
		switch p.Faction {
		case models.FactionAlliance:
			lr.Alliance++
		case models.FactionHorde:
			lr.Horde++
		}
	}
	lr.Avg = total / len(roster)
	return lr
}

// Bridge implements lobby.Provisioner on top of an Engine. It holds no lock
// and never touches a lobby.
type Bridge struct {
	engine   Engine
	activity string
	log      logrus.FieldLogger
}

var _ lobby.Provisioner = (*Bridge)(nil)

// NewBridge returns a bridge provisioning Warsong Gulch instances on engine.
func NewBridge(engine Engine, logger logrus.FieldLogger) *Bridge {
	return &Bridge{engine: engine, activity: ActivityWarsongGulch, log: logger}
}

// Provision configures a new instance sized for roster and returns its id.
func (b *Bridge) Provision(ctx context.Context, roster []lobby.Participant) (uint32, error) {
	levels := RosterLevels(roster)
	b.log.WithFields(logrus.Fields{
		"min_level": levels.Min,
		"max_level": levels.Max,
		"avg_level": levels.Avg,
	}).Info("creating instance")

	tmpl, err := b.engine.Template(ctx, b.activity)
	if err != nil {
		return 0, fmt.Errorf("get %s template: %w", b.activity, err)
	}
	id, err := b.engine.AllocateInstanceID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate instance id: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("allocate instance id: engine returned 0")
	}

	spec := InstanceSpec{
		InstanceID:        id,
		Activity:          tmpl.Activity,
		Name:              tmpl.Name,
		MapID:             tmpl.MapID,
		MinLevel:          levels.Min,
		MaxLevel:          levels.Max,
		AvgLevel:          levels.Avg,
		MinPlayersPerTeam: MinPlayersPerTeam,
		MaxPlayersPerTeam: tmpl.MaxPlayersPerTeam,
		StartDelay:        StartDelay,
		Status:            StatusWaitJoin,
		ExpectedAlliance:  levels.Alliance,
		ExpectedHorde:     levels.Horde,
	}
	if err := b.engine.BeginWaitingForPlayers(ctx, spec); err != nil {
		return 0, fmt.Errorf("start instance %d: %w", id, err)
	}

	b.log.WithFields(logrus.Fields{
		"instance": id,
		"alliance": levels.Alliance,
		"horde":    levels.Horde,
	}).Info("instance waiting for players")
	return id, nil
}

// Release tears down an instance nobody will join.
func (b *Bridge) Release(ctx context.Context, instanceID uint32) error {
	if err := b.engine.Teardown(ctx, instanceID); err != nil {
		return fmt.Errorf("teardown instance %d: %w", instanceID, err)
	}
	return nil
}
