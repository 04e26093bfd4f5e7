// internal/provision/engine.go
package provision

import (
	"context"
	"errors"
	"time"
)

// ActivityWarsongGulch is the only team contest lobbies currently provision.
const ActivityWarsongGulch = "warsong_gulch"

// firstInstanceID keeps lobby instances clear of ids handed out by the regular
// battleground queue.
const firstInstanceID uint32 = 100000

// ErrNoTemplate is returned by an Engine that has no template for an activity.
var ErrNoTemplate = errors.New("no template for activity")

// Template describes an activity the engine knows how to run.
type Template struct {
	Activity          string `json:"activity"`
	Name              string `json:"name"`
	MapID             uint32 `json:"map_id"`
	MaxPlayersPerTeam int    `json:"max_players_per_team"`
}

// InstanceStatus is the state an instance is created in.
type InstanceStatus string

const StatusWaitJoin InstanceStatus = "wait_join"

// InstanceSpec is everything the engine needs to bring up an instance for a
// lobby.
type InstanceSpec struct {
	InstanceID        uint32         `json:"instance_id"`
	Activity          string         `json:"activity"`
	Name              string         `json:"name"`
	MapID             uint32         `json:"map_id"`
	MinLevel          int            `json:"min_level"`
	MaxLevel          int            `json:"max_level"`
	AvgLevel          int            `json:"avg_level"`
	MinPlayersPerTeam int            `json:"min_players_per_team"`
	MaxPlayersPerTeam int            `json:"max_players_per_team"`
	StartDelay        time.Duration  `json:"start_delay"`
	Rated             bool           `json:"rated"`
	Status            InstanceStatus `json:"status"`
	ExpectedAlliance  int            `json:"expected_alliance"`
	ExpectedHorde     int            `json:"expected_horde"`
}

// Engine is the external instance engine.
type Engine interface {
	Template(ctx context.Context, activity string) (Template, error)
	AllocateInstanceID(ctx context.Context) (uint32, error)
	// BeginWaitingForPlayers registers the configured instance and leaves it
	// waiting for the lobby's players to arrive.
	BeginWaitingForPlayers(ctx context.Context, spec InstanceSpec) error
	Teardown(ctx context.Context, instanceID uint32) error
}

// DefaultTemplates are the activity templates shipped with the service.
func DefaultTemplates() map[string]Template {
	return map[string]Template{
		ActivityWarsongGulch: {
			Activity:          ActivityWarsongGulch,
			Name:              "Warsong Gulch",
			MapID:             489,
			MaxPlayersPerTeam: 10,
		},
	}
}
