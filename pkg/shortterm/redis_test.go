package shortterm

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 redis，设置 TEST_REDIS_ADDR 后运行
func newTestRedisStore(t *testing.T, opts Options) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisStore(client, opts)
}

func TestRedisStore_AddGetTrim(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t, Options{TTL: time.Minute, MaxEntries: 3})
	conversationID := uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, conversationID) })

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(ctx, conversationID, turn(constant.RoleUser, fmt.Sprintf("m%d", i))))
	}
	turns, err := store.Get(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "m2", turns[0].Content)
	assert.Equal(t, "m4", turns[2].Content)

	ttl, err := store.client.TTL(ctx, redisKey(conversationID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestRedisStore_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t, DefaultOptions())
	conversationID := uuid.NewString()

	require.NoError(t, store.Add(ctx, conversationID, turn(constant.RoleUser, "hi")))
	require.NoError(t, store.Delete(ctx, conversationID))

	turns, err := store.Get(ctx, conversationID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, evicted)
}
