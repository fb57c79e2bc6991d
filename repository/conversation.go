package repository

import (
	"time"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
)

type ConversationRepository interface {
	Insert(conversation *entity.Conversation) error
	// Get 不存在时返回 nil, nil
	Get(conversationID string) (*entity.Conversation, error)
	List(condition *model.GetConversationCondition) ([]*entity.Conversation, int64, error)
	UpdateTitle(conversationID, title string) error
	Touch(conversationID string, updatedAt time.Time) error
	Delete(conversationID string) error
}

type MessageRepository interface {
	Insert(messages ...*entity.Message) error
	List(condition *model.GetMessageCondition) ([]*entity.Message, error)
	DeleteByConversation(conversationID string) error
}
