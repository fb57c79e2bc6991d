//nolint:typecheck
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/pkg/file"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	OSConfigPath      = "CONFIG_PATH"
	DefaultConfigName = "config.yaml"
	TypeYaml          = "yaml"

	ApplicationLogRequest = "app.log.request"
	AppLogLevel           = "app.log.level"
	AppLogReportcaller    = "app.log.reportcaller"
	AppHost               = "app.host"
	AppTraceStdout        = "app.trace.stdout" // 是否把 trace 打印到 stdout

	BaseDbXormType     = "base.db.xorm.type"
	BaseDbXormUsername = "base.db.xorm.username"
	BaseDbXormPassword = "base.db.xorm.password"
	BaseDbXormHost     = "base.db.xorm.host"
	BaseDbXormPort     = "base.db.xorm.port"
	BaseDbXormName     = "base.db.xorm.name"
	BaseDbXormShowsql  = "base.db.xorm.showsql"

	// 大模型调用配置
	ClientChatModelAddr        = "clients.llmModel.addr"
	ClientChatModelModel       = "clients.llmModel.model"
	ClientChatModelTemperature = "clients.llmModel.temperature"
	ClientChatModelMaxTokens   = "clients.llmModel.maxTokens"
	ClientChatModelAPIKey      = "clients.llmModel.api_key"

	// Embedding 客户端配置键
	EmbeddingConfigKeyModelName  = "clients.embedding.model_name"
	EmbeddingConfigKeyBaseURL    = "clients.embedding.base_url"
	EmbeddingConfigKeyAPIKey     = "clients.embedding.api_key"
	EmbeddingConfigKeyDimension  = "clients.embedding.dimension"
	EmbeddingConfigKeyCacheSize  = "clients.embedding.cache_size"
	EmbeddingConfigKeyCacheTTL   = "clients.embedding.cache_ttl_seconds"
	EmbeddingConfigKeyMaxRetries = "clients.embedding.max_retries"

	// redis 配置
	RedisClientMode       = "clients.redisClient.mode" // single / failover / cluster
	RedisClientDb         = "clients.redisClient.db"
	RedisClientHost       = "clients.redisClient.host"
	RedisClientHosts      = "clients.redisClient.hosts"
	RedisClientMasterName = "clients.redisClient.master_name"
	RedisClientPassword   = "clients.redisClient.password"
	RedisClientPoolSize   = "clients.redisClient.pool_size"

	// qdrant 配置
	QdrantHost       = "clients.qdrant.host"
	QdrantPort       = "clients.qdrant.port"
	QdrantAPIKey     = "clients.qdrant.api_key"
	QdrantUseTLS     = "clients.qdrant.use_tls"
	QdrantCollection = "clients.qdrant.collection"

	// 记忆系统配置
	MemoryEnabled      = "memory.enabled"
	MemoryChunkSize    = "memory.chunk_size"
	MemoryChunkOverlap = "memory.chunk_overlap"
	MemoryTokenizer    = "memory.tokenizer"
	MemoryTiktokenEnc  = "memory.tiktoken_encoding"

	MemoryShortTermBackend       = "memory.short_term.backend"
	MemoryShortTermTTLSeconds    = "memory.short_term.ttl_seconds"
	MemoryShortTermMaxEntries    = "memory.short_term.max_entries"
	MemoryShortTermSweepInterval = "memory.short_term.sweep_interval_seconds"
	MemoryShortTermContextLimit  = "memory.short_term.context_limit"

	MemoryRetrievalTopK           = "memory.retrieval.top_k"
	MemoryRetrievalTimeWindowDays = "memory.retrieval.time_window_days"
	MemoryRetrievalMinResults     = "memory.retrieval.min_results"
	MemoryRetrievalDenseWeight    = "memory.retrieval.dense_weight"
	MemoryRetrievalSparseWeight   = "memory.retrieval.sparse_weight"
	MemoryRetrievalTimeoutMs      = "memory.retrieval.timeout_ms"
	MemoryRetrievalEmbedTimeoutMs = "memory.retrieval.embed_timeout_ms"

	MemoryIngestionWorkers         = "memory.ingestion.workers"
	MemoryIngestionQueueSize       = "memory.ingestion.queue_size"
	MemoryIngestionBatchIntervalMs = "memory.ingestion.batch_interval_ms"
	MemoryIngestionTimeoutSeconds  = "memory.ingestion.timeout_seconds"

	MemoryProfileHistoryLimit  = "memory.profile.history_limit"
	MemoryProfileUpdateTimeout = "memory.profile.update_timeout_seconds"
)

var instance *config
var once sync.Once

type config struct {
	*viper.Viper
}

// GetInstance 读取 config.yaml，找不到文件时只使用环境变量和代码默认值
func GetInstance() *config {
	once.Do(func() {
		configInstance := &config{Viper: viper.New()}
		configInstance.SetConfigType(TypeYaml)

		configPath := resolveConfigPath()
		if configPath != constant.EmptyString {
			configInstance.SetConfigFile(configPath)
			if err := configInstance.ReadInConfig(); err != nil {
				panic(err)
			}
			log.Infof("load config from %s", configPath)
		} else {
			log.Warnf("%s not found, use environment and defaults", DefaultConfigName)
		}

		configInstance.AutomaticEnv()
		replacer := strings.NewReplacer(".", "_")
		configInstance.SetEnvKeyReplacer(replacer)

		instance = configInstance
	})
	return instance
}

func resolveConfigPath() string {
	envConfigPath := os.Getenv(OSConfigPath)
	if !strings.EqualFold(envConfigPath, constant.EmptyString) {
		configPath := fmt.Sprintf("%v/%v", envConfigPath, DefaultConfigName)
		if file.IsRegularFile(configPath) {
			return configPath
		}
		log.Warnf("CONFIG_PATH=%s has no %s", envConfigPath, DefaultConfigName)
	}

	configPath := fmt.Sprintf("./%v", DefaultConfigName)
	if file.IsRegularFile(configPath) {
		return configPath
	}
	return constant.EmptyString
}

func (c *config) GetString(key string) string {
	return c.Viper.GetString(key)
}

func (c *config) GetStringOrDefault(key string, defaultValue string) string {
	if c.IsSet(key) {
		return c.GetString(key)
	}

	return defaultValue
}

func (c *config) GetInt(key string) int {
	return c.Viper.GetInt(key)
}

func (c *config) GetIntOrDefault(key string, defaultValue int) int {
	if c.IsSet(key) {
		return c.GetInt(key)
	}

	return defaultValue
}

func (c *config) GetBool(key string) bool {
	return c.Viper.GetBool(key)
}

func (c *config) GetBoolOrDefault(key string, defaultValue bool) bool {
	if c.IsSet(key) {
		return c.GetBool(key)
	}

	return defaultValue
}

func (c *config) GetStringSlice(key string) []string {
	return c.Viper.GetStringSlice(key)
}

func (c *config) GetFloat64(key string) float64 {
	return c.Viper.GetFloat64(key)
}

func (c *config) GetFloat64OrDefault(key string, defaultValue float64) float64 {
	if c.IsSet(key) {
		return c.GetFloat64(key)
	}

	return defaultValue
}
