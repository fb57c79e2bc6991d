package entity

import "time"

const (
	TableNameConversation = "conversation"

	ConversationFieldID        = "id"
	ConversationFieldUserID    = "user_id"
	ConversationFieldTitle     = "title"
	ConversationFieldCreatedAt = "created_at"
	ConversationFieldUpdatedAt = "updated_at"
)

type Conversation struct {
	ID        string    `xorm:"pk varchar(64) id" json:"id"`
	UserID    string    `xorm:"varchar(64) index user_id" json:"user_id"`
	Title     string    `xorm:"varchar(255) title" json:"title"`
	CreatedAt time.Time `xorm:"created_at" json:"created_at"`
	UpdatedAt time.Time `xorm:"updated_at" json:"updated_at"`
}

func (e *Conversation) TableName() string {
	return TableNameConversation
}
