package xormimplement

import (
	"fmt"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"xorm.io/builder"
)

type MessageRepository struct {
	session *Session
}

func NewMessageRepository(session *Session) repository.MessageRepository {
	return &MessageRepository{session: session}
}

func (r *MessageRepository) Insert(messages ...*entity.Message) error {
	if len(messages) == 0 {
		return nil
	}

	_, err := r.session.Table(entity.TableNameMessage).Insert(messages)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *MessageRepository) List(condition *model.GetMessageCondition) ([]*entity.Message, error) {
	if condition == nil {
		return nil, fmt.Errorf("get condition cannot be nil")
	}

	session := r.session.Table(entity.TableNameMessage)
	var conds []builder.Cond

	if condition.UserID != nil && *condition.UserID != "" {
		conds = append(conds, builder.Eq{entity.MessageFieldUserID: *condition.UserID})
	}
	if condition.ConversationID != nil && *condition.ConversationID != "" {
		conds = append(conds, builder.Eq{entity.MessageFieldConversationID: *condition.ConversationID})
	}
	if condition.Role != nil && *condition.Role != "" {
		conds = append(conds, builder.Eq{entity.MessageFieldRole: *condition.Role})
	}
	if condition.Since != nil {
		conds = append(conds, builder.Gte{entity.MessageFieldCreatedAt: *condition.Since})
	}

	if len(conds) > 0 {
		session = session.Where(builder.And(conds...))
	}
	pagerOrder(session, condition, WithDefaultOrderField(entity.MessageFieldCreatedAt), WithDefaultOrderAsc(true))

	var results []*entity.Message
	if err := session.Find(&results); err != nil {
		return nil, fmt.Errorf("failed to list message: %w", err)
	}
	return results, nil
}

func (r *MessageRepository) DeleteByConversation(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}

	_, err := r.session.Table(entity.TableNameMessage).
		Where(builder.Eq{entity.MessageFieldConversationID: conversationID}).
		Delete(&entity.Message{})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
