package provision

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/wsglobby/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisEngine needs a Redis at REDIS_ADDR (default localhost:6379) and is
// skipped without one.
func TestRedisEngine(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := cache.Connect(ctx, addr, 0)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer rdb.Close()

	queue := "lobby_instances_test"
	require.NoError(t, rdb.Del(ctx, queue).Err())
	defer rdb.Del(context.Background(), queue)

	engine := NewRedisEngine(rdb, queue)
	first, err := engine.AllocateInstanceID(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, firstInstanceID)
	second, err := engine.AllocateInstanceID(ctx)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	tmpl, err := engine.Template(ctx, ActivityWarsongGulch)
	require.NoError(t, err)
	require.NoError(t, engine.BeginWaitingForPlayers(ctx, InstanceSpec{InstanceID: first, Name: tmpl.Name}))
	require.NoError(t, engine.Teardown(ctx, first))

	raw, err := rdb.LRange(ctx, queue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var create, teardown InstanceCommand
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &create))
	require.NoError(t, json.Unmarshal([]byte(raw[1]), &teardown))
	assert.Equal(t, "create", create.Type)
	require.NotNil(t, create.Spec)
	assert.Equal(t, "Warsong Gulch", create.Spec.Name)
	assert.Equal(t, "teardown", teardown.Type)
	assert.Equal(t, first, teardown.InstanceID)

	_, err = engine.Template(ctx, "alterac_valley")
	assert.ErrorIs(t, err, ErrNoTemplate)
}
