package model

import "time"

// Turn 一轮对话中的一条消息，短期记忆的存储单元
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ModelUsed string    `json:"model_used,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestRequest 记忆写入请求
type IngestRequest struct {
	UserID         string     `json:"user_id"`
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id"`
	Content        string     `json:"content"`
	Role           string     `json:"role"`
	ModelUsed      string     `json:"model_used"`
	Timestamp      *time.Time `json:"timestamp"`
}

// RetrieveRequest 记忆检索请求
type RetrieveRequest struct {
	UserID            string `json:"user_id" binding:"required"`
	Query             string `json:"query" binding:"required"`
	ConversationID    string `json:"conversation_id"`
	ShortTermMessages []Turn `json:"short_term_messages"`
	// nil 使用配置的默认时间窗口，0 表示不限制
	TimeWindowDays *int `json:"time_window_days"`
}

// RetrievalStage 检索最终命中的降级阶段
type RetrievalStage string

const (
	RetrievalStageWindowed  RetrievalStage = "windowed"
	RetrievalStageUnbounded RetrievalStage = "unbounded"
	RetrievalStageShortTerm RetrievalStage = "short_term_only"
	RetrievalStageDisabled  RetrievalStage = "disabled"
)

// RetrievedChunk 一条长期记忆检索结果
type RetrievedChunk struct {
	Content        string    `json:"content"`
	Score          float64   `json:"score"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
	IsCode         bool      `json:"is_code"`
}

// RetrievalContext 检索结果，长期记忆 + 短期上下文
type RetrievalContext struct {
	Chunks           []RetrievedChunk `json:"chunks"`
	ShortTermContext []Turn           `json:"short_term_context"`
	Stage            RetrievalStage   `json:"stage"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// RetrieveResponse 检索接口返回
type RetrieveResponse struct {
	*RetrievalContext
	Formatted string `json:"formatted"`
}
