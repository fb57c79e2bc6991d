package model

import "time"

// GetConversationCondition 会话查询条件（带分页和排序）
type GetConversationCondition struct {
	UserID *string `json:"user_id" form:"user_id"`
	Title  *string `json:"title" form:"title"` // like 查询
	*Pager
	*Order
}

func (g *GetConversationCondition) GetPager() *Pager {
	return g.Pager
}

func (g *GetConversationCondition) GetOrder() *Order {
	return g.Order
}

// GetMessageCondition 消息查询条件
type GetMessageCondition struct {
	UserID         *string    `json:"user_id"`
	ConversationID *string    `json:"conversation_id"`
	Role           *string    `json:"role"`
	Since          *time.Time `json:"since"`
	*Pager
	*Order
}

func (g *GetMessageCondition) GetPager() *Pager {
	return g.Pager
}

func (g *GetMessageCondition) GetOrder() *Order {
	return g.Order
}
