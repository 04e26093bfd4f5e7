// internal/provision/redis.go
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/wsglobby/internal/cache"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the world server reads instance commands from.
const DefaultQueueName = "lobby_instances"

const instanceSeqKey = "lobby:instance_seq"

// InstanceCommand is one entry on the instance queue.
type InstanceCommand struct {
	Type       string        `json:"type"` // "create" or "teardown"
	InstanceID uint32        `json:"instance_id"`
	Spec       *InstanceSpec `json:"spec,omitempty"`
	Timestamp  int64         `json:"timestamp"`
}

// RedisEngine hands instances to the world server through a Redis queue.
// Instance ids come from a Redis counter so several lobby services can share
// one world server.
type RedisEngine struct {
	rdb       *redis.Client
	queue     string
	templates map[string]Template
}

// NewRedisEngine returns an engine pushing to queue, or DefaultQueueName if
// queue is empty.
func NewRedisEngine(rdb *redis.Client, queue string) *RedisEngine {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisEngine{rdb: rdb, queue: queue, templates: DefaultTemplates()}
}

func (e *RedisEngine) Template(ctx context.Context, activity string) (Template, error) {
	t, ok := e.templates[activity]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrNoTemplate, activity)
	}
	return t, nil
}

func (e *RedisEngine) AllocateInstanceID(ctx context.Context) (uint32, error) {
	// Seed the counter so the first INCR yields firstInstanceID.
	if err := e.rdb.SetNX(ctx, instanceSeqKey, firstInstanceID-1, 0).Err(); err != nil {
		return 0, fmt.Errorf("seed instance counter: %w", err)
	}
	n, err := e.rdb.Incr(ctx, instanceSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("increment instance counter: %w", err)
	}
	if n <= 0 || n > int64(^uint32(0)) {
		return 0, fmt.Errorf("instance counter out of range: %d", n)
	}
	return uint32(n), nil
}

func (e *RedisEngine) BeginWaitingForPlayers(ctx context.Context, spec InstanceSpec) error {
	return cache.PushJSON(ctx, e.rdb, e.queue, InstanceCommand{
		Type:       "create",
		InstanceID: spec.InstanceID,
		Spec:       &spec,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (e *RedisEngine) Teardown(ctx context.Context, instanceID uint32) error {
	return cache.PushJSON(ctx, e.rdb, e.queue, InstanceCommand{
		Type:       "teardown",
		InstanceID: instanceID,
		Timestamp:  time.Now().UnixMilli(),
	})
}
