package shortterm

import (
	"context"
	"encoding/json"

	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "stm:"

// RedisStore 共享实现，每个会话一个 list，过期交给 redis 自己处理
type RedisStore struct {
	client redis.UniversalClient
	opts   Options
}

func NewRedisStore(client redis.UniversalClient, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

func (s *RedisStore) Add(ctx context.Context, conversationID string, turn model.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return errors.WithStack(err)
	}

	key := redisKey(conversationID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-s.opts.MaxEntries), -1)
		pipe.Expire(ctx, key, s.opts.TTL)
		return nil
	})
	return errors.WithStack(err)
}

func (s *RedisStore) Get(ctx context.Context, conversationID string) ([]model.Turn, error) {
	key := redisKey(conversationID)

	var values *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		values = pipe.LRange(ctx, key, 0, -1)
		pipe.Expire(ctx, key, s.opts.TTL)
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, errors.WithStack(err)
	}

	raw := values.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var turn model.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			log.WithError(err).WithField("conversation_id", conversationID).Warn("skip malformed short-term turn")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return errors.WithStack(s.client.Del(ctx, redisKey(conversationID)).Err())
}

// Sweep redis 依赖 key 过期，无需清理
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}
