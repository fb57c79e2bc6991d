package entity

import "time"

const (
	TableNameMessage = "message"

	MessageFieldID             = "id"
	MessageFieldConversationID = "conversation_id"
	MessageFieldUserID         = "user_id"
	MessageFieldRole           = "role"
	MessageFieldContent        = "content"
	MessageFieldModelUsed      = "model_used"
	MessageFieldCreatedAt      = "created_at"
)

type Message struct {
	ID             string    `xorm:"pk varchar(64) id" json:"id"`
	ConversationID string    `xorm:"varchar(64) index conversation_id" json:"conversation_id"`
	UserID         string    `xorm:"varchar(64) index user_id" json:"user_id"`
	Role           string    `xorm:"varchar(16) role" json:"role"`
	Content        string    `xorm:"text content" json:"content"`
	ModelUsed      string    `xorm:"varchar(128) model_used" json:"model_used"`
	CreatedAt      time.Time `xorm:"created_at" json:"created_at"`
}

func (e *Message) TableName() string {
	return TableNameMessage
}
