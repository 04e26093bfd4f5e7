// internal/lobby/sweeper.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CleanupFailure records one participant whose identity could not be deleted.
type CleanupFailure struct {
	LobbyID     string
	Participant string
	AccountID   uuid.UUID
	Err         error
}

// SweepReport summarizes one SweepExpired pass.
type SweepReport struct {
	Evicted  []string
	Cleaned  int
	Failures []CleanupFailure
}

type evicted struct {
	id     string
	roster []Participant
}

// SweepExpired evicts every pending lobby older than the configured timeout
// and deletes the identities created for its participants. A failed deletion
// is logged and reported; it never stops the sweep or keeps a lobby alive.
func (r *Registry) SweepExpired(ctx context.Context, now time.Time) SweepReport {
	var victims []evicted

	r.mu.Lock()
	for id, s := range r.lobbies {
		s.mu.Lock()
		if s.IsExpiredUnsafe(now, r.settings.Timeout) {
			s.status = StatusExpired
			victims = append(victims, evicted{id: id, roster: s.rosterCopyUnsafe()})
		}
		s.mu.Unlock()
	}
	for _, v := range victims {
		delete(r.lobbies, v.id)
	}
	r.mu.Unlock()

	var report SweepReport
	for _, v := range victims {
		report.Evicted = append(report.Evicted, v.id)
		r.log.WithFields(logrus.Fields{
			"lobby":        v.id,
			"participants": len(v.roster),
		}).Info("removed expired lobby")

		for _, p := range v.roster {
			if p.AccountID == uuid.Nil || r.cleaner == nil {
				continue
			}
			logger := r.log.WithFields(logrus.Fields{
				"lobby":       v.id,
				"participant": p.Name,
				"account":     p.AccountID,
			})
			if err := r.cleaner.DeleteIdentity(ctx, p.AccountID); err != nil {
				logger.WithError(err).Error("failed to clean up identity for expired lobby")
				report.Failures = append(report.Failures, CleanupFailure{
					LobbyID:     v.id,
					Participant: p.Name,
					AccountID:   p.AccountID,
					Err:         err,
				})
				continue
			}
			report.Cleaned++
			logger.Info("cleaned up identity for expired lobby")
		}
	}
	return report
}

// Sweeper calls SweepExpired on a fixed interval.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	log      logrus.FieldLogger
}

// NewSweeper returns a sweeper for r. interval must be positive.
func NewSweeper(r *Registry, interval time.Duration, logger logrus.FieldLogger) *Sweeper {
	return &Sweeper{registry: r, interval: interval, log: logger}
}

// Run sweeps until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.log.WithField("interval", sw.interval).Info("lobby sweeper started")
	for {
		select {
		case <-ctx.Done():
			sw.log.Info("lobby sweeper stopped")
			return
		case <-ticker.C:
			report := sw.registry.SweepExpired(ctx, sw.registry.now())
			if len(report.Evicted) > 0 {
				sw.log.WithFields(logrus.Fields{
					"evicted":  len(report.Evicted),
					"cleaned":  report.Cleaned,
					"failures": len(report.Failures),
				}).Info("sweep finished")
			}
		}
	}
}
