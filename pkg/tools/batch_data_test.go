package tools

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_AllSubmittedHandled(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)
	p := NewProcessor("test", &Config{MaxThread: 4, CacheNum: 8, QueueSize: 256, TimeIntervalMilliSeconds: 10}, func(batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range batch {
			seen[v] = true
		}
		return nil
	})
	p.Start()
	defer p.Stop()

	for i := 0; i < 100; i++ {
		require.True(t, p.Submit(i))
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 100)
}

func TestProcessor_HandlerErrorStillCompletes(t *testing.T) {
	var calls atomic.Int32
	p := NewProcessor("err", &Config{MaxThread: 1, CacheNum: 2, QueueSize: 16, TimeIntervalMilliSeconds: 10}, func(batch []string) error {
		calls.Add(1)
		return errors.New("boom")
	})
	p.Start()
	defer p.Stop()

	for _, s := range []string{"a", "b", "c"} {
		require.True(t, p.Submit(s))
	}
	p.Wait()
	assert.Positive(t, calls.Load())
}

func TestProcessor_HandlerPanicRecovered(t *testing.T) {
	var handled atomic.Int32
	p := NewProcessor("panic", &Config{MaxThread: 1, CacheNum: 1, QueueSize: 16, TimeIntervalMilliSeconds: 10}, func(batch []int) error {
		if batch[0] == 1 {
			panic("bad batch")
		}
		handled.Add(int32(len(batch)))
		return nil
	})
	p.Start()
	defer p.Stop()

	require.True(t, p.Submit(1))
	p.Wait()
	require.True(t, p.Submit(2))
	p.Wait()
	assert.Equal(t, int32(1), handled.Load())
}

func TestProcessor_SubmitBeforeStartAndAfterStop(t *testing.T) {
	p := NewProcessor("closed", nil, func(batch []int) error { return nil })
	assert.False(t, p.Submit(1))

	p.Start()
	p.Stop()
	assert.False(t, p.Submit(2))
}

func TestProcessor_StopDrainsQueue(t *testing.T) {
	var handled atomic.Int32
	// 时间间隔很长，只有 Stop 才会把缓存里的数据刷出去
	p := NewProcessor("drain", &Config{MaxThread: 2, CacheNum: 64, QueueSize: 64, TimeIntervalMilliSeconds: 60000}, func(batch []int) error {
		handled.Add(int32(len(batch)))
		return nil
	})
	p.Start()
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(i))
	}
	p.Stop()
	p.Wait()
	assert.Equal(t, int32(10), handled.Load())
}

func TestProcessor_QueueFullRejects(t *testing.T) {
	block := make(chan struct{})
	p := NewProcessor("full", &Config{MaxThread: 1, CacheNum: 1, QueueSize: 1, TimeIntervalMilliSeconds: 60000}, func(batch []int) error {
		<-block
		return nil
	})
	p.Start()

	rejected := false
	for i := 0; i < 50; i++ {
		if !p.Submit(i) {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)

	close(block)
	p.Stop()
	p.Wait()
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex()
	a, b := 0, 0
	counters := map[string]*int{"a": &a, "b": &b}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()
			*counters[key]++
		}(key)
	}
	wg.Wait()

	assert.Equal(t, 100, a)
	assert.Equal(t, 100, b)
	assert.Equal(t, 0, km.Len())
}
