package shortterm

import (
	"context"
	"fmt"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/go-redis/redis/v8"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"

	DefaultTTL           = 5 * time.Minute
	DefaultMaxEntries    = 100
	DefaultSweepInterval = 60 * time.Second
)

// Store 按会话保存最近的对话，读写都会把过期时间刷新为 now + TTL
type Store interface {
	Add(ctx context.Context, conversationID string, turn model.Turn) error
	Get(ctx context.Context, conversationID string) ([]model.Turn, error)
	Delete(ctx context.Context, conversationID string) error
	// Sweep 清理过期会话，返回清理数量
	Sweep(ctx context.Context) (int, error)
}

type Options struct {
	TTL        time.Duration
	MaxEntries int
}

func DefaultOptions() Options {
	return Options{TTL: DefaultTTL, MaxEntries: DefaultMaxEntries}
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	return o
}

// NewStore 按 backend 创建存储，redis 模式必须传入客户端
func NewStore(backend string, opts Options, client redis.UniversalClient) (Store, error) {
	switch backend {
	case "", BackendLocal:
		return NewLocalStore(opts, nil), nil
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("short-term backend %q requires a redis client", backend)
		}
		return NewRedisStore(client, opts), nil
	default:
		return nil, fmt.Errorf("unknown short-term backend %q", backend)
	}
}

// Tail 取最后 n 条，n <= 0 时返回全部
func Tail(turns []model.Turn, n int) []model.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
