// internal/lobby/snapshot.go
package lobby

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wsglobby/internal/models"
)

// Snapshot is a point-in-time copy of a lobby, safe to hold and serialize
// without any lock.
type Snapshot struct {
	ID            string            `json:"id"`
	Leader        string            `json:"leader"`
	Status        Status            `json:"status"`
	InstanceID    uint32            `json:"wsg_instance_id"`
	AllianceCount int               `json:"alliance_count"`
	HordeCount    int               `json:"horde_count"`
	CanStart      bool              `json:"can_start"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	Participants  []ParticipantView `json:"participants"`
}

// ParticipantView is the public part of a Participant. AccountID is null until
// an account has been assigned.
type ParticipantView struct {
	Name      string         `json:"name"`
	Faction   models.Faction `json:"faction"`
	AccountID uuid.NullUUID  `json:"account_id"`
}
