package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RetrieverTest struct {
	suite.Suite
	embedder  *fakeEmbedder
	vectors   *fakeVectors
	sparse    *memory.SparseGenerator
	shortTerm *shortterm.LocalStore
	now       time.Time
}

func (r *RetrieverTest) SetupTest() {
	r.embedder = &fakeEmbedder{}
	r.vectors = newFakeVectors()
	r.sparse = memory.NewSparseGenerator(nil)
	// 让查询词出现在词表中，稀疏查询才不为空
	r.sparse.Generate("redis cache eviction")
	r.shortTerm = shortterm.NewLocalStore(shortterm.DefaultOptions(), nil)
	r.now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (r *RetrieverTest) newRetriever(mutate func(*RetrieverOptions)) *Retriever {
	opts := DefaultRetrieverOptions()
	if mutate != nil {
		mutate(&opts)
	}
	retriever := NewRetriever(opts, r.embedder, r.sparse, r.vectors, r.shortTerm)
	retriever.now = func() time.Time { return r.now }
	return retriever
}

func hit(id string, score float64) *entity.ScoredFragment {
	return &entity.ScoredFragment{ID: id, Score: score, Content: "content " + id, ConversationID: "c1", MessageID: "m-" + id}
}

func request(query string) *model.RetrieveRequest {
	return &model.RetrieveRequest{UserID: "u1", Query: query, ConversationID: "c1"}
}

func contents(chunks []model.RetrievedChunk) []string {
	var result []string
	for _, c := range chunks {
		result = append(result, c.Content)
	}
	return result
}

func (r *RetrieverTest) TestRetrieve_WindowedFusion() {
	r.vectors.denseHits = []*entity.ScoredFragment{hit("a", 0.9), hit("b", 0.45)}
	r.vectors.sparseHits = []*entity.ScoredFragment{hit("b", 0.8), hit("c", 0.4)}

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis eviction"))

	r.Equal(model.RetrievalStageWindowed, rc.Stage)
	// a = 0.7*1, b = 0.7*0.5 + 0.3*1, c = 0.3*0.5
	r.Equal([]string{"content a", "content b", "content c"}, contents(rc.Chunks))
	r.InDelta(0.7, rc.Chunks[0].Score, 1e-9)
	r.InDelta(0.65, rc.Chunks[1].Score, 1e-9)
	r.InDelta(0.15, rc.Chunks[2].Score, 1e-9)
	r.Equal(r.now, rc.GeneratedAt)

	r.Require().Len(r.vectors.conditions, 2)
	for _, c := range r.vectors.conditions {
		r.Equal("u1", c.UserID)
		r.Require().NotNil(c.Since)
		r.Equal(r.now.AddDate(0, 0, -30), *c.Since)
		r.Equal(16, c.Limit)
	}
}

func (r *RetrieverTest) TestRetrieve_TopKCap() {
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		r.vectors.denseHits = append(r.vectors.denseHits, hit(id, 0.5))
	}
	rc := r.newRetriever(func(o *RetrieverOptions) { o.TopK = 3 }).Retrieve(context.Background(), request("redis"))
	// 同分保持稠密返回顺序
	r.Equal([]string{"content 1", "content 2", "content 3"}, contents(rc.Chunks))
}

func (r *RetrieverTest) TestRetrieve_FallbackToUnbounded() {
	r.vectors.windowedDense = []*entity.ScoredFragment{}
	r.vectors.windowedSparse = []*entity.ScoredFragment{}
	r.vectors.denseHits = []*entity.ScoredFragment{hit("old", 0.5)}

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageUnbounded, rc.Stage)
	r.Equal([]string{"content old"}, contents(rc.Chunks))

	last := r.vectors.conditions[len(r.vectors.conditions)-1]
	r.Nil(last.Since)
}

func (r *RetrieverTest) TestRetrieve_WindowErrorFallsBack() {
	r.vectors.windowedErr = errors.New("timeout")
	r.vectors.denseHits = []*entity.ScoredFragment{hit("a", 0.5)}

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageUnbounded, rc.Stage)
	r.Len(rc.Chunks, 1)
}

func (r *RetrieverTest) TestRetrieve_ZeroWindowSkipsWindowedStage() {
	r.vectors.denseHits = []*entity.ScoredFragment{hit("a", 0.5)}
	zero := 0
	req := request("redis")
	req.TimeWindowDays = &zero

	rc := r.newRetriever(nil).Retrieve(context.Background(), req)
	r.Equal(model.RetrievalStageUnbounded, rc.Stage)
	for _, c := range r.vectors.conditions {
		r.Nil(c.Since)
	}
}

func (r *RetrieverTest) TestRetrieve_DenseFailureUsesSparse() {
	r.embedder.err = errors.New("provider down")
	r.vectors.sparseHits = []*entity.ScoredFragment{hit("s", 0.2)}

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageWindowed, rc.Stage)
	r.Require().Len(rc.Chunks, 1)
	r.InDelta(0.3, rc.Chunks[0].Score, 1e-9)
}

func (r *RetrieverTest) TestRetrieve_SparseFailureUsesDense() {
	r.vectors.sparseErr = errors.New("sparse down")
	r.vectors.denseHits = []*entity.ScoredFragment{hit("d", 0.8)}

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageWindowed, rc.Stage)
	r.Equal([]string{"content d"}, contents(rc.Chunks))
}

func (r *RetrieverTest) TestRetrieve_AllFailShortTermOnly() {
	r.embedder.err = errors.New("provider down")
	r.vectors.sparseErr = errors.New("sparse down")
	r.vectors.windowedErr = errors.New("sparse down")
	r.Require().NoError(r.shortTerm.Add(context.Background(), "c1", model.Turn{Role: constant.RoleUser, Content: "hi"}))

	rc := r.newRetriever(nil).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageShortTerm, rc.Stage)
	r.Empty(rc.Chunks)
	r.Require().Len(rc.ShortTermContext, 1)
	r.Equal("hi", rc.ShortTermContext[0].Content)
}

func (r *RetrieverTest) TestRetrieve_UnknownTermsAndNoEmbedding() {
	r.embedder.err = errors.New("provider down")
	rc := r.newRetriever(nil).Retrieve(context.Background(), request("completely unseen words"))
	r.Equal(model.RetrievalStageShortTerm, rc.Stage)
	r.Empty(r.vectors.conditions)
}

func (r *RetrieverTest) TestRetrieve_HangingEmbedderBounded() {
	r.embedder.hang = true
	r.vectors.sparseHits = []*entity.ScoredFragment{hit("s", 0.6)}
	retriever := r.newRetriever(func(o *RetrieverOptions) { o.EmbedTimeout = 50 * time.Millisecond })

	start := time.Now()
	rc := retriever.Retrieve(context.Background(), request("completely unseen words"))
	r.Less(time.Since(start), time.Second)
	r.Equal(model.RetrievalStageShortTerm, rc.Stage)

	// 稀疏仍可用时照常返回结果
	start = time.Now()
	rc = retriever.Retrieve(context.Background(), request("redis"))
	r.Less(time.Since(start), time.Second)
	r.Equal(model.RetrievalStageWindowed, rc.Stage)
	r.Equal([]string{"content s"}, contents(rc.Chunks))
}

func (r *RetrieverTest) TestRetrieve_Disabled() {
	r.vectors.denseHits = []*entity.ScoredFragment{hit("a", 0.5)}
	rc := r.newRetriever(func(o *RetrieverOptions) { o.Enabled = false }).Retrieve(context.Background(), request("redis"))
	r.Equal(model.RetrievalStageDisabled, rc.Stage)
	r.Empty(rc.Chunks)
	r.Empty(r.embedder.queries)
}

func (r *RetrieverTest) TestRetrieve_ShortTermFromRequestAndCache() {
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		r.Require().NoError(r.shortTerm.Add(ctx, "c1", model.Turn{Role: constant.RoleUser, Content: string(rune('a' + i))}))
	}

	rc := r.newRetriever(nil).Retrieve(ctx, request("redis"))
	r.Require().Len(rc.ShortTermContext, 10)
	r.Equal("f", rc.ShortTermContext[0].Content)
	r.Equal("o", rc.ShortTermContext[9].Content)

	req := request("redis")
	req.ShortTermMessages = []model.Turn{{Role: constant.RoleAssistant, Content: "given"}}
	rc = r.newRetriever(nil).Retrieve(ctx, req)
	r.Require().Len(rc.ShortTermContext, 1)
	r.Equal("given", rc.ShortTermContext[0].Content)
}

func (r *RetrieverTest) TestListFragments() {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r.Require().NoError(r.vectors.Upsert(ctx, []*entity.IndexedPoint{
		{ID: "p1", UserID: "u1", ConversationID: "c1", MessageID: "m1", Content: "old", CreatedAt: base},
		{ID: "p2", UserID: "u1", ConversationID: "c2", MessageID: "m2", Content: "new", IsCode: true, CreatedAt: base.Add(time.Hour)},
		{ID: "p3", UserID: "u2", ConversationID: "c3", MessageID: "m3", Content: "other", CreatedAt: base},
	}))
	retriever := r.newRetriever(nil)

	chunks, merr := retriever.ListFragments(ctx, "u1", 10)
	r.Require().Nil(merr)
	r.Equal([]string{"new", "old"}, contents(chunks))
	r.True(chunks[0].IsCode)
	r.Equal("c2", chunks[0].ConversationID)

	chunks, merr = retriever.ListFragments(ctx, "u1", 1)
	r.Require().Nil(merr)
	r.Len(chunks, 1)

	_, merr = retriever.ListFragments(ctx, " ", 10)
	r.Require().NotNil(merr)
	r.Equal(model.ErrorEmptyId, merr.Code)

	r.vectors.listErr = errors.New("qdrant unavailable")
	_, merr = retriever.ListFragments(ctx, "u1", 10)
	r.Require().NotNil(merr)
	r.Equal(model.ErrorVectorStore, merr.Code)
}

func TestFuse_NegativeDenseClamped(t *testing.T) {
	chunks := fuse(
		[]*entity.ScoredFragment{hit("a", -0.2), hit("b", 0.4)},
		nil, 0.7, 0.3, 8)
	assert.Equal(t, []string{"content b", "content a"}, contents(chunks))
	assert.InDelta(t, 0.7, chunks[0].Score, 1e-9)
	assert.Equal(t, 0.0, chunks[1].Score)

	assert.Empty(t, fuse(nil, nil, 0.7, 0.3, 8))
}

func TestRetriever(t *testing.T) {
	suite.Run(t, new(RetrieverTest))
}
