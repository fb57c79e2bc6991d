package shortterm

import (
	"context"
	"sync"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"
)

type entry struct {
	mu       sync.Mutex
	turns    []model.Turn
	deadline time.Time
	// removed 为 true 说明已经从 map 中摘掉，持有者需要重新获取
	removed bool
}

// LocalStore 进程内实现，同一会话的写入通过 entry 锁串行
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
	now     func() time.Time
}

func NewLocalStore(opts Options, now func() time.Time) *LocalStore {
	if now == nil {
		now = time.Now
	}
	return &LocalStore{
		entries: make(map[string]*entry),
		opts:    opts.withDefaults(),
		now:     now,
	}
}

// acquire 返回已加锁的 entry，create 为 false 且不存在时返回 nil
func (s *LocalStore) acquire(conversationID string, create bool) *entry {
	for {
		s.mu.Lock()
		e, ok := s.entries[conversationID]
		if !ok {
			if !create {
				s.mu.Unlock()
				return nil
			}
			e = &entry{}
			s.entries[conversationID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
		s.detach(conversationID, e)
	}
}

func (s *LocalStore) detach(conversationID string, e *entry) {
	s.mu.Lock()
	if s.entries[conversationID] == e {
		delete(s.entries, conversationID)
	}
	s.mu.Unlock()
}

func (s *LocalStore) Add(ctx context.Context, conversationID string, turn model.Turn) error {
	e := s.acquire(conversationID, true)
	defer e.mu.Unlock()

	now := s.now()
	if !e.deadline.IsZero() && now.After(e.deadline) {
		e.turns = nil
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	e.turns = append(e.turns, turn)
	if over := len(e.turns) - s.opts.MaxEntries; over > 0 {
		e.turns = append([]model.Turn(nil), e.turns[over:]...)
	}
	e.deadline = now.Add(s.opts.TTL)
	return nil
}

func (s *LocalStore) Get(ctx context.Context, conversationID string) ([]model.Turn, error) {
	e := s.acquire(conversationID, false)
	if e == nil {
		return nil, nil
	}

	now := s.now()
	if now.After(e.deadline) {
		e.removed = true
		e.mu.Unlock()
		s.detach(conversationID, e)
		metrics.ShortTermEvicted.WithLabelValues("expired").Inc()
		return nil, nil
	}
	e.deadline = now.Add(s.opts.TTL)
	turns := append([]model.Turn(nil), e.turns...)
	e.mu.Unlock()
	return turns, nil
}

func (s *LocalStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	e, ok := s.entries[conversationID]
	delete(s.entries, conversationID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	metrics.ShortTermEvicted.WithLabelValues("deleted").Inc()
	return nil
}

func (s *LocalStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	now := s.now()
	evicted := 0
	for id, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		e.mu.Lock()
		expired := !e.removed && now.After(e.deadline)
		if expired {
			e.removed = true
		}
		e.mu.Unlock()
		if expired {
			s.detach(id, e)
			evicted++
		}
	}

	metrics.ShortTermEvicted.WithLabelValues("expired").Add(float64(evicted))
	metrics.ShortTermConversations.Set(float64(s.Len()))
	return evicted, nil
}

// Len 当前保存的会话数
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
