package vectordb

import (
	"context"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/config"

	"github.com/qdrant/go-client/qdrant"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPort       = 6334
	DefaultCollection = "conversation_memory"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// ConfigFromViper 从全局配置读取 qdrant 连接参数
func ConfigFromViper() Config {
	cfg := config.GetInstance()
	return Config{
		Host:       cfg.GetStringOrDefault(config.QdrantHost, "localhost"),
		Port:       cfg.GetIntOrDefault(config.QdrantPort, DefaultPort),
		APIKey:     cfg.GetString(config.QdrantAPIKey),
		UseTLS:     cfg.GetBool(config.QdrantUseTLS),
		Collection: cfg.GetStringOrDefault(config.QdrantCollection, DefaultCollection),
	}
}

// NewClient 创建 qdrant gRPC 客户端并做一次健康检查
func NewClient(cfg Config) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := client.HealthCheck(ctx)
	if err != nil {
		log.Warnf("qdrant health check failed at %s:%d: %v", cfg.Host, cfg.Port, err)
		return client, nil
	}
	log.Infof("connected to qdrant %s at %s:%d", reply.GetVersion(), cfg.Host, cfg.Port)
	return client, nil
}
