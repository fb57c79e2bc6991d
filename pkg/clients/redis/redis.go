package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/config"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	ModeSingle   = "single"
	ModeFailover = "failover"
	ModeCluster  = "cluster"
)

// NewRedisSingleClient 创建单节点模式客户端对象
func NewRedisSingleClient(cfg *RedisConfig) (*redis.Client, error) {
	return newRedisSingleApi(cfg)
}

// NewRedisFailoverClient 创建哨兵模式客户端
func NewRedisFailoverClient(cfg RedisFailoverConfig) (*redis.Client, error) {
	return newRedisFailoverApi(cfg.MasterName, cfg.Hosts, cfg.Password, cfg.Db, cfg.PoolSize)
}

// NewRedisClusterClient 创建集群模式客户端
func NewRedisClusterClient(cfg RedisClusterConfig) (*redis.ClusterClient, error) {
	return newRedisClusterApi(cfg)
}

// NewFromConfig 按 clients.redisClient.mode 创建客户端，返回统一的 UniversalClient
func NewFromConfig() (redis.UniversalClient, error) {
	cfg := config.GetInstance()
	mode := cfg.GetStringOrDefault(config.RedisClientMode, ModeSingle)
	password := cfg.GetString(config.RedisClientPassword)
	poolSize := cfg.GetInt(config.RedisClientPoolSize)

	switch mode {
	case ModeSingle:
		return NewRedisSingleClient(&RedisConfig{
			Host:     cfg.GetString(config.RedisClientHost),
			Password: password,
			Db:       cfg.GetInt(config.RedisClientDb),
			PoolConfig: PoolConfig{
				PoolSize: poolSize,
			},
		})
	case ModeFailover:
		return NewRedisFailoverClient(RedisFailoverConfig{
			Hosts:      cfg.GetStringSlice(config.RedisClientHosts),
			Password:   password,
			Db:         cfg.GetInt(config.RedisClientDb),
			PoolSize:   poolSize,
			MasterName: cfg.GetString(config.RedisClientMasterName),
		})
	case ModeCluster:
		return NewRedisClusterClient(RedisClusterConfig{
			Hosts:    cfg.GetStringSlice(config.RedisClientHosts),
			Password: password,
			PoolConfig: PoolConfig{
				PoolSize: poolSize,
			},
		})
	default:
		return nil, fmt.Errorf("unknown redis mode %q", mode)
	}
}

// Close 关闭任意模式的客户端
func Close(r redis.UniversalClient) {
	if r != nil {
		if err := r.Close(); err != nil {
			log.Errorf("redis close error: %v", err)
		}
	}
}

func ping(r redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.Ping(ctx).Result(); err != nil {
		log.Errorf("redis ping error: %v", err)
		_ = r.Close()
		return err
	}
	return nil
}

// 单节点模式
func newRedisSingleApi(cfg *RedisConfig) (*redis.Client, error) {
	cfg.DefaultConfig()
	r := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  time.Second * time.Duration(cfg.DialTimeout),
		ReadTimeout:  time.Second * time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(cfg.WriteTimeout),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxConnAge:   time.Minute * time.Duration(cfg.MaxConnAge),
		PoolTimeout:  time.Second * time.Duration(cfg.PoolTimeout),
		IdleTimeout:  time.Second * time.Duration(cfg.IdleTimeout),
		DB:           cfg.Db,
	})
	if err := ping(r); err != nil {
		return nil, err
	}
	return r, nil
}

// 哨兵模式
func newRedisFailoverApi(masterName string, addrs []string, pw string, db, poolSize int) (*redis.Client, error) {
	if poolSize == 0 {
		poolSize = 100
	}
	r := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       masterName,
		SentinelAddrs:    addrs,
		SentinelPassword: pw,
		Password:         pw,
		MaxRetries:       3,
		DialTimeout:      time.Second * 30,
		ReadTimeout:      time.Second * 5,
		WriteTimeout:     time.Second * 5,
		PoolSize:         poolSize,
		MinIdleConns:     10,
		MaxConnAge:       time.Minute * 1,
		PoolTimeout:      time.Second * 30,
		IdleTimeout:      time.Second * 30,
		DB:               db,
	})
	if err := ping(r); err != nil {
		return nil, err
	}
	return r, nil
}

// 集群模式
func newRedisClusterApi(cfg RedisClusterConfig) (*redis.ClusterClient, error) {
	cfg.DefaultConfig()
	r := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        cfg.Hosts,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  time.Second * time.Duration(cfg.DialTimeout),
		ReadTimeout:  time.Second * time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(cfg.WriteTimeout),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxConnAge:   time.Minute * time.Duration(cfg.MaxConnAge),
		PoolTimeout:  time.Second * time.Duration(cfg.PoolTimeout),
		IdleTimeout:  time.Second * time.Duration(cfg.IdleTimeout),
	})
	if err := ping(r); err != nil {
		return nil, err
	}
	return r, nil
}
