package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"
	timeutil "github.com/parththirwani/ChatterStack-sub001/pkg/time"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tracing"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var errNoModality = errors.New("neither dense nor sparse search is available")

type RetrieverOptions struct {
	Enabled        bool
	TopK           int
	TimeWindowDays int
	MinResults     int
	DenseWeight    float64
	SparseWeight   float64
	// 单路检索超时
	Timeout time.Duration
	// 查询向量化超时，超时后只走稀疏检索
	EmbedTimeout time.Duration
	// 请求未带短期上下文时从缓存取的条数
	ContextLimit int
}

func DefaultRetrieverOptions() RetrieverOptions {
	return RetrieverOptions{
		Enabled:        true,
		TopK:           8,
		TimeWindowDays: 30,
		MinResults:     1,
		DenseWeight:    0.7,
		SparseWeight:   0.3,
		Timeout:        300 * time.Millisecond,
		EmbedTimeout:   2 * time.Second,
		ContextLimit:   10,
	}
}

// Retriever 混合检索：稠密 + 稀疏并发查询，归一化加权融合，逐级降级
type Retriever struct {
	opts      RetrieverOptions
	embedder  Embedder
	sparse    *memory.SparseGenerator
	vectors   repository.FragmentVectorRepository
	shortTerm shortterm.Store
	now       func() time.Time
}

func NewRetriever(opts RetrieverOptions, embedder Embedder, sparse *memory.SparseGenerator, vectors repository.FragmentVectorRepository, shortTerm shortterm.Store) *Retriever {
	defaults := DefaultRetrieverOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = defaults.EmbedTimeout
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = defaults.ContextLimit
	}
	if opts.MinResults < 0 {
		opts.MinResults = 0
	}
	return &Retriever{
		opts:      opts,
		embedder:  embedder,
		sparse:    sparse,
		vectors:   vectors,
		shortTerm: shortTerm,
		now:       time.Now,
	}
}

type hybridQuery struct {
	dense  []float32
	sparse memory.SparseVector
}

// Retrieve 不返回错误，任何一路失败都降级，最差只返回短期上下文
func (r *Retriever) Retrieve(ctx context.Context, req *model.RetrieveRequest) *model.RetrievalContext {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "memory.retrieve", attribute.String("user_id", req.UserID))
	defer span.End()

	result := &model.RetrievalContext{
		Chunks:           []model.RetrievedChunk{},
		ShortTermContext: r.shortTermContext(ctx, req),
		GeneratedAt:      r.now(),
	}
	defer func() {
		span.SetAttributes(attribute.String("stage", string(result.Stage)), attribute.Int("chunks", len(result.Chunks)))
		metrics.RetrievalStage.WithLabelValues(string(result.Stage)).Inc()
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	}()

	if !r.opts.Enabled {
		result.Stage = model.RetrievalStageDisabled
		return result
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Query) == "" {
		result.Stage = model.RetrievalStageShortTerm
		return result
	}

	query := hybridQuery{sparse: r.sparse.GenerateQuery(req.Query)}
	dense, err := r.embedQuery(ctx, req.Query)
	if err != nil {
		metrics.RetrievalErrors.WithLabelValues("embedding").Inc()
		log.WithError(err).WithField("user_id", req.UserID).Warn("query embedding failed, dense search disabled")
	} else {
		query.dense = dense
	}

	days := r.opts.TimeWindowDays
	if req.TimeWindowDays != nil {
		days = *req.TimeWindowDays
	}

	var windowed []model.RetrievedChunk
	if since := timeutil.DaysAgo(result.GeneratedAt, days); since != nil {
		chunks, err := r.search(ctx, req.UserID, query, since)
		if err == nil && len(chunks) >= r.opts.MinResults {
			result.Chunks, result.Stage = chunks, model.RetrievalStageWindowed
			return result
		}
		if err != nil {
			log.WithError(err).WithField("user_id", req.UserID).Warn("windowed retrieval failed, retry without time window")
		}
		windowed = chunks
	}

	chunks, err := r.search(ctx, req.UserID, query, nil)
	switch {
	case err == nil:
		result.Chunks, result.Stage = chunks, model.RetrievalStageUnbounded
	case len(windowed) > 0:
		// 不限时间的检索失败，保留时间窗口内不足数量的结果
		result.Chunks, result.Stage = windowed, model.RetrievalStageWindowed
	default:
		log.WithError(err).WithField("user_id", req.UserID).Warn("long-term retrieval unavailable, use short-term context only")
		result.Stage = model.RetrievalStageShortTerm
	}
	return result
}

func (r *Retriever) shortTermContext(ctx context.Context, req *model.RetrieveRequest) []model.Turn {
	if len(req.ShortTermMessages) > 0 {
		return append([]model.Turn(nil), req.ShortTermMessages...)
	}
	if r.shortTerm == nil || req.ConversationID == "" {
		return []model.Turn{}
	}

	turns, err := r.shortTerm.Get(ctx, req.ConversationID)
	if err != nil {
		metrics.RetrievalErrors.WithLabelValues("short_term").Inc()
		log.WithError(err).WithField("conversation_id", req.ConversationID).Warn("read short-term cache failed")
		return []model.Turn{}
	}
	return shortterm.Tail(turns, r.opts.ContextLimit)
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.EmbedTimeout)
	defer cancel()
	return r.embedder.Embed(ctx, query)
}

// search 一个阶段内的混合检索，只有两路都不可用时才返回错误
func (r *Retriever) search(ctx context.Context, userID string, query hybridQuery, since *time.Time) ([]model.RetrievedChunk, error) {
	condition := &repository.FragmentSearchCondition{
		UserID: userID,
		Since:  since,
		Limit:  r.opts.TopK * 2,
	}

	var (
		g                     errgroup.Group
		denseHits, sparseHits []*entity.ScoredFragment
		denseErr, sparseErr   error
	)
	denseErr, sparseErr = errNoModality, errNoModality

	if len(query.dense) > 0 {
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
			denseHits, denseErr = r.vectors.SearchDense(searchCtx, query.dense, condition)
			if denseErr != nil {
				metrics.RetrievalErrors.WithLabelValues("dense").Inc()
			}
			return nil
		})
	}
	if !query.sparse.Empty() {
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
			sparseHits, sparseErr = r.vectors.SearchSparse(searchCtx, query.sparse.Indices, query.sparse.Values, condition)
			if sparseErr != nil {
				metrics.RetrievalErrors.WithLabelValues("sparse").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	if denseErr != nil && sparseErr != nil {
		if denseErr == errNoModality {
			return nil, errors.Wrap(sparseErr, "sparse search")
		}
		return nil, errors.Wrap(denseErr, "dense search")
	}
	if denseErr != nil {
		denseHits = nil
	}
	if sparseErr != nil {
		sparseHits = nil
	}
	return fuse(denseHits, sparseHits, r.opts.DenseWeight, r.opts.SparseWeight, r.opts.TopK), nil
}

type candidate struct {
	fragment *entity.ScoredFragment
	dense    float64
	sparse   float64
	fused    float64
}

// fuse 两路分数各自按最大值归一化后加权求和。
// 初始顺序为稠密结果顺序，再接只在稀疏结果中出现的片段，稳定排序保证同分时顺序确定
func fuse(denseHits, sparseHits []*entity.ScoredFragment, denseWeight, sparseWeight float64, topK int) []model.RetrievedChunk {
	maxDense, maxSparse := 0.0, 0.0
	for _, hit := range denseHits {
		if hit.Score > maxDense {
			maxDense = hit.Score
		}
	}
	for _, hit := range sparseHits {
		if hit.Score > maxSparse {
			maxSparse = hit.Score
		}
	}

	ordered := make([]*candidate, 0, len(denseHits)+len(sparseHits))
	byID := make(map[string]*candidate, len(denseHits)+len(sparseHits))
	for _, hit := range denseHits {
		if _, ok := byID[hit.ID]; ok {
			continue
		}
		c := &candidate{fragment: hit}
		if maxDense > 0 && hit.Score > 0 {
			c.dense = hit.Score / maxDense
		}
		byID[hit.ID] = c
		ordered = append(ordered, c)
	}
	for _, hit := range sparseHits {
		score := 0.0
		if maxSparse > 0 && hit.Score > 0 {
			score = hit.Score / maxSparse
		}
		if c, ok := byID[hit.ID]; ok {
			if score > c.sparse {
				c.sparse = score
			}
			continue
		}
		c := &candidate{fragment: hit, sparse: score}
		byID[hit.ID] = c
		ordered = append(ordered, c)
	}

	for _, c := range ordered {
		c.fused = denseWeight*c.dense + sparseWeight*c.sparse
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].fused > ordered[j].fused
	})
	if topK > 0 && len(ordered) > topK {
		ordered = ordered[:topK]
	}

	chunks := make([]model.RetrievedChunk, 0, len(ordered))
	for _, c := range ordered {
		chunks = append(chunks, toRetrievedChunk(c.fragment, c.fused))
	}
	return chunks
}

func toRetrievedChunk(fragment *entity.ScoredFragment, score float64) model.RetrievedChunk {
	return model.RetrievedChunk{
		Content:        fragment.Content,
		Score:          score,
		ConversationID: fragment.ConversationID,
		MessageID:      fragment.MessageID,
		Timestamp:      fragment.CreatedAt,
		IsCode:         fragment.IsCode,
	}
}

// ListFragments 按时间倒序列出用户已写入的片段，查看长期记忆用，分数为 0
func (r *Retriever) ListFragments(ctx context.Context, userID string, limit int) ([]model.RetrievedChunk, *model.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorEmptyId, "user_id is required")
	}
	fragments, err := r.vectors.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, model.NewError(model.ErrorVectorStore, err)
	}
	chunks := make([]model.RetrievedChunk, 0, len(fragments))
	for _, fragment := range fragments {
		chunks = append(chunks, toRetrievedChunk(fragment, 0))
	}
	return chunks, nil
}
