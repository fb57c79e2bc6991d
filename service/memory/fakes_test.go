package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/repository"
)

type fakeEmbedder struct {
	mu        sync.Mutex
	err       error
	// hang 为 true 时 Embed 阻塞到 ctx 结束
	hang      bool
	// started 非 nil 时 EmbedBatch 先通知再等 release
	started   chan struct{}
	release   chan struct{}
	batches   [][]string
	queries   []string
	dimension int
}

func (f *fakeEmbedder) vector(text string) []float32 {
	dim := f.dimension
	if dim == 0 {
		dim = 4
	}
	v := make([]float32, dim)
	v[len(text)%dim] = 1
	return v
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	hang, err := f.hang, f.err
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// fakeVectors 内存向量库，检索结果按调用预先设置
type fakeVectors struct {
	mu     sync.Mutex
	points map[string]*entity.IndexedPoint

	denseHits, sparseHits         []*entity.ScoredFragment
	// 按是否带时间窗口区分结果，nil 时使用上面的默认结果
	windowedDense, windowedSparse []*entity.ScoredFragment
	denseErr, sparseErr           error
	windowedErr                   error
	conditions                    []repository.FragmentSearchCondition
	upsertErr                     error
	listErr                       error
	deleted                       []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: map[string]*entity.IndexedPoint{}}
}

func (f *fakeVectors) EnsureCollection(ctx context.Context, dimension int) error {
	return nil
}

func (f *fakeVectors) Upsert(ctx context.Context, points []*entity.IndexedPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVectors) SearchDense(ctx context.Context, vector []float32, condition *repository.FragmentSearchCondition) ([]*entity.ScoredFragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conditions = append(f.conditions, *condition)
	if condition.Since != nil {
		if f.windowedErr != nil {
			return nil, f.windowedErr
		}
		if f.windowedDense != nil {
			return f.windowedDense, nil
		}
	}
	return f.denseHits, f.denseErr
}

func (f *fakeVectors) SearchSparse(ctx context.Context, indices []uint32, values []float32, condition *repository.FragmentSearchCondition) ([]*entity.ScoredFragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conditions = append(f.conditions, *condition)
	if condition.Since != nil {
		if f.windowedErr != nil {
			return nil, f.windowedErr
		}
		if f.windowedSparse != nil {
			return f.windowedSparse, nil
		}
	}
	return f.sparseHits, f.sparseErr
}

func (f *fakeVectors) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.ScoredFragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []*entity.ScoredFragment
	for _, p := range f.points {
		if p.UserID != userID {
			continue
		}
		result = append(result, &entity.ScoredFragment{
			ID: p.ID, UserID: p.UserID, ConversationID: p.ConversationID, MessageID: p.MessageID,
			Index: p.Index, Content: p.Content, IsCode: p.IsCode, CreatedAt: p.CreatedAt,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Index < result[j].Index
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeVectors) TrimMessages(ctx context.Context, fragmentCounts map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.points {
		if count, ok := fragmentCounts[p.MessageID]; ok && p.Index >= count {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVectors) DeleteByConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversationID)
	for id, p := range f.points {
		if p.ConversationID == conversationID {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVectors) pointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}
