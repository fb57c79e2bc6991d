package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxBatchSize 每批最多处理的数量
	MaxBatchSize = 64
	// MaxRetries 最大重试次数
	MaxRetries = 3
	// LRUCacheCapacity LRU 缓存容量
	LRUCacheCapacity = 5000
	// DefaultCacheTTL 缓存过期时间
	DefaultCacheTTL = 30 * time.Minute
)

type Config struct {
	APIKey     string
	BaseURL    string
	ModelName  string
	Dimension  int
	CacheSize  int
	CacheTTL   time.Duration
	MaxRetries int
	// RetryBackoff 第一次重试前的等待时间，之后指数增长
	RetryBackoff time.Duration
}

// ConfigFromViper 从全局配置读取 embedding 客户端配置
func ConfigFromViper() Config {
	cfg := config.GetInstance()
	return Config{
		APIKey:       cfg.GetString(config.EmbeddingConfigKeyAPIKey),
		BaseURL:      cfg.GetString(config.EmbeddingConfigKeyBaseURL),
		ModelName:    cfg.GetString(config.EmbeddingConfigKeyModelName),
		Dimension:    cfg.GetIntOrDefault(config.EmbeddingConfigKeyDimension, 0),
		CacheSize:    cfg.GetIntOrDefault(config.EmbeddingConfigKeyCacheSize, LRUCacheCapacity),
		CacheTTL:     time.Duration(cfg.GetIntOrDefault(config.EmbeddingConfigKeyCacheTTL, int(DefaultCacheTTL/time.Second))) * time.Second,
		MaxRetries:   cfg.GetIntOrDefault(config.EmbeddingConfigKeyMaxRetries, MaxRetries),
		RetryBackoff: time.Second,
	}
}

// Client Embedding 客户端
type Client struct {
	client     openai.Client
	modelName  string
	dimension  int
	maxRetries int
	backoff    time.Duration
	cache      *expirable.LRU[string, []float32] // embedding 缓存
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s is required", config.EmbeddingConfigKeyAPIKey)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%s is required", config.EmbeddingConfigKeyModelName)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = LRUCacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}

	// 重试由本客户端控制，关闭 SDK 自带的重试
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}

	// 如果配置了 base_url，则使用自定义的 base_url（用于兼容其他兼容 OpenAI API 的服务）
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		modelName:  cfg.ModelName,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		cache:      expirable.NewLRU[string, []float32](cfg.CacheSize, nil, cfg.CacheTTL),
	}, nil
}

// Dimension 配置的向量维度，0 表示由模型决定
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed 获取单个文本的 Embedding 向量（带缓存）
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embeddings[0], nil
}

// EmbedBatch 批量获取文本的 Embedding 向量（带批量切分、重试和缓存），结果与输入一一对应
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	// 检查缓存并收集需要请求的文本
	type textWithIndex struct {
		text  string
		index int
	}
	needRequest := make([]textWithIndex, 0)
	result := make([][]float32, len(texts))

	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			result[i] = cached
			metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		} else {
			needRequest = append(needRequest, textWithIndex{text: text, index: i})
			metrics.EmbeddingCache.WithLabelValues("miss").Inc()
		}
	}

	if len(needRequest) == 0 {
		log.Debugf("All embeddings retrieved from cache (count: %d)", len(texts))
		return result, nil
	}

	// 批量切分处理
	for i := 0; i < len(needRequest); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(needRequest) {
			end = len(needRequest)
		}

		batch := needRequest[i:end]
		batchTexts := make([]string, len(batch))
		for j, item := range batch {
			batchTexts[j] = item.text
		}

		// 带重试的批量请求
		embeddings, err := c.embedBatchWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to get embeddings for batch %d-%d: %w", i, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(batch), len(embeddings))
		}

		// 填充结果并更新缓存
		for j, item := range batch {
			result[item.index] = embeddings[j]
			c.cache.Add(item.text, embeddings[j])
		}
	}

	log.Debugf("Embedding batch completed: total=%d, cache_hits=%d, requests=%d",
		len(texts), len(texts)-len(needRequest), len(needRequest))

	return result, nil
}

// embedBatchWithRetry 带重试机制的批量获取 Embedding，等待期间响应 ctx 取消
func (c *Client) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避：1s, 2s, 4s
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			log.Warnf("Retrying embedding request (attempt %d/%d) after %v", attempt+1, c.maxRetries, backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		embeddings, err := c.embedBatchOnce(ctx, texts)
		if err == nil {
			return embeddings, nil
		}

		lastErr = err
		log.Errorf("Embedding request failed (attempt %d/%d): %v", attempt+1, c.maxRetries, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// embedBatchOnce 单次批量获取 Embedding（不重试）
func (c *Client) embedBatchOnce(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.modelName),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	start := time.Now()
	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		metrics.EmbeddingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	metrics.EmbeddingDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	// API 返回 []float64，按 index 放回原位置并转成 qdrant 使用的 float32
	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		result[item.Index] = vector
	}
	for i, vector := range result {
		if vector == nil {
			return nil, fmt.Errorf("embedding missing for input %d", i)
		}
	}

	return result, nil
}
