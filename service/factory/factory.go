package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/pkg/clients/embedding"
	"github.com/parththirwani/ChatterStack-sub001/pkg/clients/llm_model"
	redisclient "github.com/parththirwani/ChatterStack-sub001/pkg/clients/redis"
	"github.com/parththirwani/ChatterStack-sub001/pkg/clients/vectordb"
	"github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/schedule"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"
	"github.com/parththirwani/ChatterStack-sub001/repository"
	repofactory "github.com/parththirwani/ChatterStack-sub001/repository/factory"
	"github.com/parththirwani/ChatterStack-sub001/repository/qdrantimplement"
	"github.com/parththirwani/ChatterStack-sub001/repository/xormimplement"
	"github.com/parththirwani/ChatterStack-sub001/service/chat"
	"github.com/parththirwani/ChatterStack-sub001/service/conversation"
	memoryservice "github.com/parththirwani/ChatterStack-sub001/service/memory"
	"github.com/parththirwani/ChatterStack-sub001/service/profile"

	"github.com/go-redis/redis/v8"
	"github.com/qdrant/go-client/qdrant"
	log "github.com/sirupsen/logrus"
)

var instance *Factory
var mu sync.RWMutex

// Factory 持有所有服务，启动时按配置组装一次
type Factory struct {
	repositoryFactory repofactory.Factory
	redisClient       redis.UniversalClient
	qdrantClient      *qdrant.Client
	embedder          *embedding.Client

	shortTerm     shortterm.Store
	vectors       repository.FragmentVectorRepository
	pipeline      *memoryservice.Pipeline
	retriever     *memoryservice.Retriever
	profiles      *profile.Engine
	conversations *conversation.Service
	chat          *chat.Service
	scheduler     *schedule.CronScheduler
}

// Init 组装全局 Factory，serve 启动时调用
func Init() error {
	f, err := NewFactory()
	if err != nil {
		return err
	}
	mu.Lock()
	instance = f
	mu.Unlock()
	return nil
}

// 单例模式，Init 之前调用返回 nil
func GetServiceFactory() *Factory {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func NewFactory() (*Factory, error) {
	cfg := config.GetInstance()
	f := &Factory{repositoryFactory: xormimplement.GetRepositoryFactoryInstance()}

	embedder, err := embedding.NewClient(embedding.ConfigFromViper())
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	f.embedder = embedder

	chunker, err := newChunker()
	if err != nil {
		return nil, err
	}

	backend := cfg.GetStringOrDefault(config.MemoryShortTermBackend, shortterm.BackendLocal)
	if backend == shortterm.BackendRedis {
		if f.redisClient, err = redisclient.NewFromConfig(); err != nil {
			return nil, fmt.Errorf("init redis client: %w", err)
		}
	}
	if f.shortTerm, err = shortterm.NewStore(backend, ShortTermOptionsFromConfig(), f.redisClient); err != nil {
		return nil, err
	}

	qdrantConfig := vectordb.ConfigFromViper()
	if f.qdrantClient, err = vectordb.NewClient(qdrantConfig); err != nil {
		return nil, fmt.Errorf("init qdrant client: %w", err)
	}
	f.vectors = qdrantimplement.NewFragmentRepository(f.qdrantClient, qdrantConfig.Collection)

	// 词表是进程内共享状态，写入和检索必须用同一个
	sparse := memory.NewSparseGenerator(nil)
	f.pipeline = memoryservice.NewPipeline(PipelineOptionsFromConfig(), chunker, sparse, embedder, f.vectors)
	f.retriever = memoryservice.NewRetriever(RetrieverOptionsFromConfig(), embedder, sparse, f.vectors, f.shortTerm)
	f.profiles = NewProfileEngine(f.repositoryFactory)
	f.conversations = conversation.NewService(f.repositoryFactory, f.shortTerm, f.vectors, f.pipeline)
	f.chat = chat.NewService(f.conversations, f.retriever, f.pipeline, f.profiles, f.shortTerm,
		llm_model.NewClient(llm_model.ConfigFromViper()))

	f.scheduler = schedule.NewCronScheduler()
	interval := time.Duration(cfg.GetIntOrDefault(config.MemoryShortTermSweepInterval, int(shortterm.DefaultSweepInterval/time.Second))) * time.Second
	if err := f.scheduler.AddJob(shortterm.NewSweepJob(f.shortTerm), shortterm.SweepSpec(interval)); err != nil {
		return nil, err
	}
	return f, nil
}

// NewProfileEngine 只依赖关系库，CLI 推断画像时单独使用
func NewProfileEngine(repositoryFactory repofactory.Factory) *profile.Engine {
	return profile.NewEngine(ProfileOptionsFromConfig(), repositoryFactory)
}

func newChunker() (*memory.Chunker, error) {
	cfg := config.GetInstance()
	tokenizer, err := memory.NewTokenizer(
		cfg.GetStringOrDefault(config.MemoryTokenizer, memory.TokenizerSimple),
		cfg.GetStringOrDefault(config.MemoryTiktokenEnc, memory.DefaultTiktokenEncoding),
	)
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	chunker, err := memory.NewChunker(memory.ChunkConfig{
		Size:    cfg.GetIntOrDefault(config.MemoryChunkSize, memory.DefaultChunkSize),
		Overlap: cfg.GetIntOrDefault(config.MemoryChunkOverlap, memory.DefaultChunkOverlap),
	}, tokenizer)
	if err != nil {
		return nil, fmt.Errorf("invalid chunk config: %w", err)
	}
	return chunker, nil
}

func ShortTermOptionsFromConfig() shortterm.Options {
	cfg := config.GetInstance()
	return shortterm.Options{
		TTL:        time.Duration(cfg.GetIntOrDefault(config.MemoryShortTermTTLSeconds, int(shortterm.DefaultTTL/time.Second))) * time.Second,
		MaxEntries: cfg.GetIntOrDefault(config.MemoryShortTermMaxEntries, shortterm.DefaultMaxEntries),
	}
}

func RetrieverOptionsFromConfig() memoryservice.RetrieverOptions {
	cfg := config.GetInstance()
	defaults := memoryservice.DefaultRetrieverOptions()
	return memoryservice.RetrieverOptions{
		Enabled:        cfg.GetBoolOrDefault(config.MemoryEnabled, defaults.Enabled),
		TopK:           cfg.GetIntOrDefault(config.MemoryRetrievalTopK, defaults.TopK),
		TimeWindowDays: cfg.GetIntOrDefault(config.MemoryRetrievalTimeWindowDays, defaults.TimeWindowDays),
		MinResults:     cfg.GetIntOrDefault(config.MemoryRetrievalMinResults, defaults.MinResults),
		DenseWeight:    cfg.GetFloat64OrDefault(config.MemoryRetrievalDenseWeight, defaults.DenseWeight),
		SparseWeight:   cfg.GetFloat64OrDefault(config.MemoryRetrievalSparseWeight, defaults.SparseWeight),
		Timeout:        time.Duration(cfg.GetIntOrDefault(config.MemoryRetrievalTimeoutMs, int(defaults.Timeout/time.Millisecond))) * time.Millisecond,
		EmbedTimeout:   time.Duration(cfg.GetIntOrDefault(config.MemoryRetrievalEmbedTimeoutMs, int(defaults.EmbedTimeout/time.Millisecond))) * time.Millisecond,
		ContextLimit:   cfg.GetIntOrDefault(config.MemoryShortTermContextLimit, defaults.ContextLimit),
	}
}

func PipelineOptionsFromConfig() memoryservice.PipelineOptions {
	cfg := config.GetInstance()
	defaults := memoryservice.DefaultPipelineOptions()
	return memoryservice.PipelineOptions{
		Enabled:       cfg.GetBoolOrDefault(config.MemoryEnabled, defaults.Enabled),
		Workers:       cfg.GetIntOrDefault(config.MemoryIngestionWorkers, defaults.Workers),
		QueueSize:     cfg.GetIntOrDefault(config.MemoryIngestionQueueSize, defaults.QueueSize),
		BatchSize:     defaults.BatchSize,
		BatchInterval: time.Duration(cfg.GetIntOrDefault(config.MemoryIngestionBatchIntervalMs, int(defaults.BatchInterval/time.Millisecond))) * time.Millisecond,
		Timeout:       time.Duration(cfg.GetIntOrDefault(config.MemoryIngestionTimeoutSeconds, int(defaults.Timeout/time.Second))) * time.Second,
	}
}

func ProfileOptionsFromConfig() profile.Options {
	cfg := config.GetInstance()
	defaults := profile.DefaultOptions()
	return profile.Options{
		HistoryLimit:  cfg.GetIntOrDefault(config.MemoryProfileHistoryLimit, defaults.HistoryLimit),
		UpdateTimeout: time.Duration(cfg.GetIntOrDefault(config.MemoryProfileUpdateTimeout, int(defaults.UpdateTimeout/time.Second))) * time.Second,
		Alpha:         defaults.Alpha,
	}
}

// Start 启动定时任务
func (f *Factory) Start(ctx context.Context) {
	f.scheduler.Start(ctx)
}

// Bootstrap 建表、建向量集合和索引，可重复执行
func (f *Factory) Bootstrap(ctx context.Context) error {
	if err := f.repositoryFactory.Sync(); err != nil {
		return fmt.Errorf("sync tables: %w", err)
	}

	dimension := f.embedder.Dimension()
	if dimension <= 0 {
		// 未配置维度时用一次真实调用确定
		vector, err := f.embedder.Embed(ctx, "dimension check")
		if err != nil {
			return fmt.Errorf("detect embedding dimension: %w", err)
		}
		dimension = len(vector)
	}
	if err := f.vectors.EnsureCollection(ctx, dimension); err != nil {
		return err
	}
	log.Infof("bootstrap finished, dense dimension %d", dimension)
	return nil
}

// Close 先排空异步任务，再关闭外部连接
func (f *Factory) Close() {
	f.scheduler.Stop()
	f.pipeline.Stop()
	f.profiles.Wait()
	if f.redisClient != nil {
		redisclient.Close(f.redisClient)
	}
	if f.qdrantClient != nil {
		if err := f.qdrantClient.Close(); err != nil {
			log.Warnf("close qdrant client: %v", err)
		}
	}
	if closer, ok := f.repositoryFactory.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warnf("close database: %v", err)
		}
	}
}

func (f *Factory) ChatService() *chat.Service {
	return f.chat
}

func (f *Factory) ConversationService() *conversation.Service {
	return f.conversations
}

func (f *Factory) MemoryPipeline() *memoryservice.Pipeline {
	return f.pipeline
}

func (f *Factory) Retriever() *memoryservice.Retriever {
	return f.retriever
}

func (f *Factory) ProfileEngine() *profile.Engine {
	return f.profiles
}
