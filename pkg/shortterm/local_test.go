package shortterm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func turn(role, content string) model.Turn {
	return model.Turn{Role: role, Content: content}
}

func TestLocalStore_AddThenGetPreservesOrder(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewLocalStore(DefaultOptions(), clock.Now)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "hi")))
	clock.Advance(time.Millisecond)
	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleAssistant, "hello")))

	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, "hello", turns[1].Content)
	assert.True(t, turns[0].Timestamp.Before(turns[1].Timestamp))

	missing, err := store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalStore_TrimOldest(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(Options{TTL: time.Minute, MaxEntries: 100}, newFakeClock().Now)

	for i := 0; i < 101; i++ {
		require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, fmt.Sprintf("m%d", i))))
	}
	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 100)
	assert.Equal(t, "m1", turns[0].Content)
	assert.Equal(t, "m100", turns[99].Content)
}

func TestLocalStore_SweepEvictsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewLocalStore(Options{TTL: 5 * time.Minute}, clock.Now)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "hi")))
	clock.Advance(5*time.Minute + time.Second)

	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, store.Len())

	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLocalStore_GetRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewLocalStore(Options{TTL: 5 * time.Minute}, clock.Now)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "hi")))
	clock.Advance(4 * time.Minute)
	_, err := store.Get(ctx, "c1")
	require.NoError(t, err)

	// 距离写入已超过 TTL，但读操作续期了
	clock.Advance(4 * time.Minute)
	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, evicted)

	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestLocalStore_ExpiredGetIsEmpty(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewLocalStore(Options{TTL: time.Minute}, clock.Now)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "old")))
	clock.Advance(2 * time.Minute)

	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "new")))
	turns, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "new", turns[0].Content)
}

func TestLocalStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(DefaultOptions(), nil)

	require.NoError(t, store.Add(ctx, "c1", turn(constant.RoleUser, "hi")))
	require.NoError(t, store.Delete(ctx, "c1"))
	require.NoError(t, store.Delete(ctx, "c1"))

	turns, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLocalStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(Options{TTL: time.Minute, MaxEntries: 1000}, nil)

	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(c, i int) {
				defer wg.Done()
				_ = store.Add(ctx, fmt.Sprintf("c%d", c), turn(constant.RoleUser, fmt.Sprintf("%d", i)))
			}(c, i)
		}
	}
	wg.Wait()

	for c := 0; c < 4; c++ {
		turns, err := store.Get(ctx, fmt.Sprintf("c%d", c))
		require.NoError(t, err)
		assert.Len(t, turns, 100)
	}
}

func TestSweepJob(t *testing.T) {
	clock := newFakeClock()
	store := NewLocalStore(Options{TTL: time.Second}, clock.Now)
	require.NoError(t, store.Add(context.Background(), "c1", turn(constant.RoleUser, "hi")))
	clock.Advance(2 * time.Second)

	job := NewSweepJob(store)
	assert.Equal(t, "short_term_sweep", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, store.Len())

	assert.Equal(t, "@every 60s", SweepSpec(0))
	assert.Equal(t, "@every 30s", SweepSpec(30*time.Second))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("", DefaultOptions(), nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = NewStore(BackendRedis, DefaultOptions(), nil)
	assert.Error(t, err)

	_, err = NewStore("memcached", DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	turns := []model.Turn{turn("user", "a"), turn("user", "b"), turn("user", "c")}
	assert.Len(t, Tail(turns, 2), 2)
	assert.Equal(t, "b", Tail(turns, 2)[0].Content)
	assert.Len(t, Tail(turns, 0), 3)
	assert.Len(t, Tail(turns, 10), 3)
}
