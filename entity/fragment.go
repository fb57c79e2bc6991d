package entity

import "time"

// 向量库 payload 字段
const (
	FragmentPayloadUserID         = "user_id"
	FragmentPayloadConversationID = "conversation_id"
	FragmentPayloadMessageID      = "message_id"
	FragmentPayloadIndex          = "fragment_index"
	FragmentPayloadContent        = "content"
	FragmentPayloadIsCode         = "is_code"
	FragmentPayloadStartToken     = "start_token"
	FragmentPayloadEndToken       = "end_token"
	FragmentPayloadCreatedAt      = "created_at" // unix 秒
	FragmentPayloadModelUsed      = "model_used"
	FragmentPayloadRole           = "role"
	FragmentPayloadProfileTags    = "profile_tags"
)

// IndexedPoint 向量库中持久化的单元：片段 + 稠密向量 + 稀疏向量
type IndexedPoint struct {
	ID             string
	UserID         string
	ConversationID string
	MessageID      string
	Index          int
	Content        string
	IsCode         bool
	StartToken     int
	EndToken       int
	CreatedAt      time.Time
	ModelUsed      string
	Role           string
	ProfileTags    []string
	Dense          []float32
	SparseIndices  []uint32
	SparseValues   []float32
}

// ScoredFragment 检索命中的片段
type ScoredFragment struct {
	ID             string
	Score          float64
	UserID         string
	ConversationID string
	MessageID      string
	Index          int
	Content        string
	IsCode         bool
	CreatedAt      time.Time
}
