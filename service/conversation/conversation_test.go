package conversation

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	pkgmemory "github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"
	"github.com/parththirwani/ChatterStack-sub001/repository"
	"github.com/parththirwani/ChatterStack-sub001/repository/xormimplement"
	"github.com/parththirwani/ChatterStack-sub001/service/memory"

	"github.com/stretchr/testify/suite"
)

type recordingVectors struct {
	repository.FragmentVectorRepository
	mu      sync.Mutex
	points  map[string]*entity.IndexedPoint
	deleted []string
}

func newRecordingVectors() *recordingVectors {
	return &recordingVectors{points: map[string]*entity.IndexedPoint{}}
}

func (r *recordingVectors) Upsert(ctx context.Context, points []*entity.IndexedPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range points {
		r.points[p.ID] = p
	}
	return nil
}

func (r *recordingVectors) TrimMessages(ctx context.Context, fragmentCounts map[string]int) error {
	return nil
}

func (r *recordingVectors) DeleteByConversation(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, conversationID)
	for id, p := range r.points {
		if p.ConversationID == conversationID {
			delete(r.points, id)
		}
	}
	return nil
}

func (r *recordingVectors) count(conversationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.points {
		if p.ConversationID == conversationID {
			n++
		}
	}
	return n
}

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

type ConversationTest struct {
	suite.Suite
	factory   *xormimplement.Factory
	shortTerm *shortterm.LocalStore
	vectors   *recordingVectors
	pipeline  *memory.Pipeline
	service   *Service
}

func (c *ConversationTest) SetupTest() {
	engine, err := xormimplement.OpenDB(xormimplement.DriverSqlite, "", "", "", filepath.Join(c.T().TempDir(), "conv.db"), "", false)
	c.Require().NoError(err)
	c.factory = xormimplement.NewFactory(engine)
	c.Require().NoError(c.factory.Sync())

	c.shortTerm = shortterm.NewLocalStore(shortterm.DefaultOptions(), nil)
	c.vectors = newRecordingVectors()

	chunker, err := pkgmemory.NewChunker(pkgmemory.DefaultChunkConfig(), pkgmemory.SimpleTokenizer{})
	c.Require().NoError(err)
	c.pipeline = memory.NewPipeline(memory.DefaultPipelineOptions(), chunker, pkgmemory.NewSparseGenerator(nil), constEmbedder{}, c.vectors)
	c.service = NewService(c.factory, c.shortTerm, c.vectors, c.pipeline)
}

func (c *ConversationTest) TearDownTest() {
	c.pipeline.Stop()
	_ = c.factory.Close()
}

func (c *ConversationTest) TestEnsure_CreatesWithTitle() {
	ctx := context.Background()
	long := strings.Repeat("字", 80)

	conv, merr := c.service.Ensure(ctx, "u1", "", "  "+long)
	c.Require().Nil(merr)
	c.NotEmpty(conv.ID)
	c.Equal(strings.Repeat("字", constant.ConversationTitleMaxRunes), conv.Title)

	again, merr := c.service.Ensure(ctx, "u1", conv.ID, "ignored")
	c.Require().Nil(merr)
	c.Equal(conv.Title, again.Title)

	// 其他用户访问视为不存在
	_, merr = c.service.Ensure(ctx, "u2", conv.ID, "hi")
	c.Require().NotNil(merr)
	c.Equal(model.ErrorConversationNotFound, merr.Code)

	named, merr := c.service.Ensure(ctx, "u1", "client-id", "hello")
	c.Require().Nil(merr)
	c.Equal("client-id", named.ID)
}

func (c *ConversationTest) TestAppendAndList() {
	ctx := context.Background()
	first, _ := c.service.Ensure(ctx, "u1", "", "first")
	second, _ := c.service.Ensure(ctx, "u1", "", "second")

	later := time.Now().Add(time.Hour)
	c.Require().Nil(c.service.AppendMessages(ctx, first.ID, &entity.Message{
		ID: "m1", ConversationID: first.ID, UserID: "u1", Role: constant.RoleUser, Content: "hi", CreatedAt: later,
	}))

	userID := "u1"
	list, total, merr := c.service.List(ctx, &model.GetConversationCondition{UserID: &userID})
	c.Require().Nil(merr)
	c.Equal(int64(2), total)
	c.Require().Len(list, 2)
	c.Equal(first.ID, list[0].ID)
	c.Equal(second.ID, list[1].ID)

	messages, merr := c.service.Messages(ctx, first.ID)
	c.Require().Nil(merr)
	c.Len(messages, 1)

	_, _, merr = c.service.List(ctx, &model.GetConversationCondition{})
	c.Require().NotNil(merr)
	c.Equal(model.ErrorParams, merr.Code)
}

func (c *ConversationTest) TestDelete_Cascades() {
	ctx := context.Background()
	conv, _ := c.service.Ensure(ctx, "u1", "", "first")
	c.Require().Nil(c.service.AppendMessages(ctx, conv.ID, &entity.Message{
		ID: "m1", ConversationID: conv.ID, UserID: "u1", Role: constant.RoleUser, Content: "hi", CreatedAt: time.Now(),
	}))
	c.Require().NoError(c.shortTerm.Add(ctx, conv.ID, model.Turn{Role: constant.RoleUser, Content: "hi"}))

	c.Require().Nil(c.service.Delete(ctx, conv.ID))

	messages, merr := c.service.Messages(ctx, conv.ID)
	c.Require().Nil(merr)
	c.Empty(messages)
	turns, merr := c.service.ShortTerm(ctx, conv.ID)
	c.Require().Nil(merr)
	c.Empty(turns)
	c.Equal([]string{conv.ID}, c.vectors.deleted)

	merr = c.service.Delete(ctx, conv.ID)
	c.Require().NotNil(merr)
	c.Equal(model.ErrorConversationNotFound, merr.Code)
}

func (c *ConversationTest) TestDelete_PendingIngestionDoesNotResurrect() {
	ctx := context.Background()
	conv, _ := c.service.Ensure(ctx, "u1", "", "first")

	// 默认批次间隔内删除，批次处理时会话已删
	c.Require().Nil(c.pipeline.Ingest(ctx, &model.IngestRequest{
		UserID: "u1", ConversationID: conv.ID, MessageID: "m1", Content: "remember redis eviction", Role: constant.RoleUser,
	}))
	c.Require().Nil(c.service.Delete(ctx, conv.ID))
	c.pipeline.Wait()
	c.Equal(0, c.vectors.count(conv.ID))

	// 删除后到达的写入直接丢弃
	c.Require().Nil(c.pipeline.Ingest(ctx, &model.IngestRequest{
		UserID: "u1", ConversationID: conv.ID, MessageID: "m2", Content: "late message", Role: constant.RoleUser,
	}))
	c.pipeline.Wait()
	c.Equal(0, c.vectors.count(conv.ID))

	// 同一 id 重新建会话后恢复写入
	again, merr := c.service.Ensure(ctx, "u1", conv.ID, "again")
	c.Require().Nil(merr)
	c.Require().Nil(c.pipeline.Ingest(ctx, &model.IngestRequest{
		UserID: "u1", ConversationID: again.ID, MessageID: "m3", Content: "new start", Role: constant.RoleUser,
	}))
	c.pipeline.Wait()
	c.Equal(1, c.vectors.count(again.ID))
}

func (c *ConversationTest) TestShortTerm() {
	ctx := context.Background()
	_, merr := c.service.ShortTerm(ctx, "")
	c.Require().NotNil(merr)
	c.Equal(model.ErrorEmptyId, merr.Code)

	c.Require().NoError(c.shortTerm.Add(ctx, "c1", model.Turn{Role: constant.RoleUser, Content: "hi"}))
	turns, merr := c.service.ShortTerm(ctx, "c1")
	c.Require().Nil(merr)
	c.Len(turns, 1)
}

func TestConversation(t *testing.T) {
	suite.Run(t, new(ConversationTest))
}
