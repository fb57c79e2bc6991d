package model

// ChatRequest 聊天请求
type ChatRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"` // 为空时新建会话
	Message        string `json:"message" binding:"required"`
	Stream         bool   `json:"stream"` // 是否流式返回
	// nil 使用配置的默认时间窗口
	TimeWindowDays *int `json:"time_window_days"`
}

// ChatResponse 聊天响应（非流式）
type ChatResponse struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	RetrievalStage RetrievalStage `json:"retrieval_stage"`
}
