package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tools"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tracing"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Embedder 稠密向量提供方，embedding.Client 实现了它
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type PipelineOptions struct {
	Enabled bool
	// 同时处理的批次数
	Workers   int
	QueueSize int
	// 单批最多消息数
	BatchSize     int
	BatchInterval time.Duration
	// 单批 embedding + upsert 的超时
	Timeout time.Duration
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Enabled:       true,
		Workers:       4,
		QueueSize:     1024,
		BatchSize:     32,
		BatchInterval: 200 * time.Millisecond,
		Timeout:       30 * time.Second,
	}
}

const (
	// 已删除会话的记录保留时间，需长于入队到写入的最长间隔
	forgetTTL  = 10 * time.Minute
	forgetSize = 10000
)

type ingestTask struct {
	UserID         string
	ConversationID string
	MessageID      string
	Content        string
	Role           string
	ModelUsed      string
	Timestamp      time.Time
}

// Pipeline 异步写入长期记忆：分块、稀疏向量、批量 embedding、写向量库
type Pipeline struct {
	opts      PipelineOptions
	chunker   *memory.Chunker
	sparse    *memory.SparseGenerator
	embedder  Embedder
	vectors   repository.FragmentVectorRepository
	processor *tools.Processor[*ingestTask]
	// 已删除的会话，之后到达的写入丢弃
	forgotten *expirable.LRU[string, struct{}]
}

func NewPipeline(opts PipelineOptions, chunker *memory.Chunker, sparse *memory.SparseGenerator, embedder Embedder, vectors repository.FragmentVectorRepository) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPipelineOptions().Timeout
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = DefaultPipelineOptions().BatchInterval
	}

	p := &Pipeline{
		opts:      opts,
		chunker:   chunker,
		sparse:    sparse,
		embedder:  embedder,
		vectors:   vectors,
		forgotten: expirable.NewLRU[string, struct{}](forgetSize, nil, forgetTTL),
	}
	p.processor = tools.NewProcessor("memory_ingest", &tools.Config{
		MaxThread:                opts.Workers,
		CacheNum:                 opts.BatchSize,
		QueueSize:                opts.QueueSize,
		TimeIntervalMilliSeconds: opts.BatchInterval.Milliseconds(),
	}, p.handle)
	p.processor.Start()
	return p
}

// Ingest 同步校验后入队，不等待向量化完成。队列满时丢弃并记录，不影响调用方
func (p *Pipeline) Ingest(ctx context.Context, req *model.IngestRequest) *model.Error {
	if merr := validateIngest(req); merr != nil {
		metrics.IngestSubmitted.WithLabelValues("rejected").Inc()
		return merr
	}
	if !p.opts.Enabled {
		metrics.IngestSubmitted.WithLabelValues("disabled").Inc()
		return nil
	}
	if p.Forgotten(req.ConversationID) {
		metrics.IngestSubmitted.WithLabelValues("deleted").Inc()
		return nil
	}

	task := &ingestTask{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Content:        req.Content,
		Role:           req.Role,
		ModelUsed:      req.ModelUsed,
		Timestamp:      time.Now(),
	}
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		task.Timestamp = *req.Timestamp
	}

	if !p.processor.Submit(task) {
		metrics.IngestSubmitted.WithLabelValues("dropped").Inc()
		log.WithFields(log.Fields{
			"conversation_id": req.ConversationID,
			"message_id":      req.MessageID,
		}).Warn("ingestion queue full, message dropped")
		return nil
	}
	metrics.IngestSubmitted.WithLabelValues("accepted").Inc()
	return nil
}

// Wait 等待已入队的消息全部处理完
func (p *Pipeline) Wait() {
	p.processor.Wait()
}

// Stop 处理完剩余消息后停止
func (p *Pipeline) Stop() {
	p.processor.Stop()
}

// Forget 标记会话已删除。须在删除向量之前调用，
// 之后入队的消息被丢弃，写入中的批次完成后会再删一次
func (p *Pipeline) Forget(conversationID string) {
	p.forgotten.Add(conversationID, struct{}{})
}

// Restore 同一 id 重新建会话时取消删除标记
func (p *Pipeline) Restore(conversationID string) {
	p.forgotten.Remove(conversationID)
}

func (p *Pipeline) Forgotten(conversationID string) bool {
	return p.forgotten.Contains(conversationID)
}

func validateIngest(req *model.IngestRequest) *model.Error {
	if req == nil {
		return model.NewErrorVerificationFailed(model.ErrorParams, "request body is required")
	}
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return model.NewErrorVerificationFailed(model.ErrorParams, "user_id is required")
	case strings.TrimSpace(req.ConversationID) == "":
		return model.NewErrorVerificationFailed(model.ErrorParams, "conversation_id is required")
	case strings.TrimSpace(req.MessageID) == "":
		return model.NewErrorVerificationFailed(model.ErrorParams, "message_id is required")
	case strings.TrimSpace(req.Content) == "":
		return model.NewErrorVerificationFailed(model.ErrorParams, "content is required")
	}
	switch req.Role {
	case constant.RoleUser, constant.RoleAssistant, constant.RoleSystem:
	default:
		return model.NewErrorVerificationFailed(model.ErrorParams, "role must be one of [user, assistant, system], got %q", req.Role)
	}
	return nil
}

// PointID 同一条消息的同一片段总是得到同一个 id，重复写入会覆盖
func PointID(messageID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", messageID, index))).String()
}

func (p *Pipeline) handle(batch []*ingestTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "memory.ingest", attribute.Int("messages", len(batch)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		points []*entity.IndexedPoint
		texts  []string
	)
	// 每条消息本次的片段数，用于清理重写后多出的旧片段
	counts := make(map[string]int)
	conversations := make(map[string]struct{})
	for _, task := range batch {
		if p.Forgotten(task.ConversationID) {
			continue
		}
		conversations[task.ConversationID] = struct{}{}
		fragments := p.chunker.Chunk(task.Content)
		counts[task.MessageID] = len(fragments)
		for _, fragment := range fragments {
			fragment.MessageID = task.MessageID
			fragment.ConversationID = task.ConversationID
			fragment.UserID = task.UserID
			fragment.Role = task.Role
			fragment.ModelUsed = task.ModelUsed
			fragment.CreatedAt = task.Timestamp
			fragment.ProfileTags = memory.ExtractTopics(fragment.Content)

			points = append(points, toIndexedPoint(fragment, p.sparse.Generate(fragment.Content)))
			texts = append(texts, fragment.Content)
		}
	}
	if len(points) == 0 {
		return nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.IngestFailures.WithLabelValues("embedding").Add(float64(len(batch)))
		span.RecordError(err)
		return errors.Wrapf(err, "embed %d fragments", len(texts))
	}
	if len(vectors) != len(points) {
		metrics.IngestFailures.WithLabelValues("embedding").Add(float64(len(batch)))
		return fmt.Errorf("embedding returned %d vectors for %d fragments", len(vectors), len(points))
	}
	for i := range points {
		points[i].Dense = vectors[i]
	}

	if err := p.vectors.Upsert(ctx, points); err != nil {
		metrics.IngestFailures.WithLabelValues("upsert").Add(float64(len(batch)))
		span.RecordError(err)
		return err
	}
	if err := p.vectors.TrimMessages(ctx, counts); err != nil {
		log.WithError(err).Warn("trim stale fragments failed")
	}
	// 写入期间被删除的会话，补删一次
	for conversationID := range conversations {
		if !p.Forgotten(conversationID) {
			continue
		}
		if err := p.vectors.DeleteByConversation(ctx, conversationID); err != nil {
			log.WithError(err).WithField("conversation_id", conversationID).Warn("delete vectors of deleted conversation failed")
		}
	}

	for _, point := range points {
		if point.IsCode {
			metrics.IngestFragments.WithLabelValues("code").Inc()
		} else {
			metrics.IngestFragments.WithLabelValues("text").Inc()
		}
	}
	log.Debugf("ingested %d messages as %d fragments", len(batch), len(points))
	return nil
}

func toIndexedPoint(fragment memory.Fragment, sparse memory.SparseVector) *entity.IndexedPoint {
	return &entity.IndexedPoint{
		ID:             PointID(fragment.MessageID, fragment.Index),
		UserID:         fragment.UserID,
		ConversationID: fragment.ConversationID,
		MessageID:      fragment.MessageID,
		Index:          fragment.Index,
		Content:        fragment.Content,
		IsCode:         fragment.IsCode,
		StartToken:     fragment.StartToken,
		EndToken:       fragment.EndToken,
		CreatedAt:      fragment.CreatedAt,
		ModelUsed:      fragment.ModelUsed,
		Role:           fragment.Role,
		ProfileTags:    fragment.ProfileTags,
		SparseIndices:  sparse.Indices,
		SparseValues:   sparse.Values,
	}
}
