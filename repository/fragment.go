package repository

import (
	"context"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/entity"
)

// FragmentSearchCondition 向量检索条件，结果始终限定在 UserID 内
type FragmentSearchCondition struct {
	UserID string
	// Since 非空时只返回晚于该时间的片段
	Since *time.Time
	Limit int
}

// FragmentVectorRepository 片段向量存储
type FragmentVectorRepository interface {
	// EnsureCollection 幂等创建集合和 payload 索引
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []*entity.IndexedPoint) error
	SearchDense(ctx context.Context, vector []float32, condition *FragmentSearchCondition) ([]*entity.ScoredFragment, error)
	SearchSparse(ctx context.Context, indices []uint32, values []float32, condition *FragmentSearchCondition) ([]*entity.ScoredFragment, error)
	// ListByUser 按时间倒序列出用户的片段
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.ScoredFragment, error)
	// TrimMessages 删除每条消息中序号不小于 fragmentCounts[messageID] 的片段
	TrimMessages(ctx context.Context, fragmentCounts map[string]int) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}
