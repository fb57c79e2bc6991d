package xormimplement

import (
	"fmt"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"xorm.io/builder"
)

type ConversationRepository struct {
	session *Session
}

func NewConversationRepository(session *Session) repository.ConversationRepository {
	return &ConversationRepository{session: session}
}

func (r *ConversationRepository) Insert(conversation *entity.Conversation) error {
	if conversation == nil || conversation.ID == "" {
		return fmt.Errorf("conversation id is required")
	}

	_, err := r.session.Table(entity.TableNameConversation).Insert(conversation)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(conversationID string) (*entity.Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}

	result := &entity.Conversation{}
	ok, err := r.session.Table(entity.TableNameConversation).
		Where(builder.Eq{entity.ConversationFieldID: conversationID}).
		Get(result)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return result, nil
}

func (r *ConversationRepository) List(condition *model.GetConversationCondition) ([]*entity.Conversation, int64, error) {
	if condition == nil {
		return nil, 0, fmt.Errorf("get condition cannot be nil")
	}

	session := r.session.Table(entity.TableNameConversation)
	var conds []builder.Cond

	if condition.UserID != nil && *condition.UserID != "" {
		conds = append(conds, builder.Eq{entity.ConversationFieldUserID: *condition.UserID})
	}
	if condition.Title != nil && *condition.Title != "" {
		conds = append(conds, builder.Like{entity.ConversationFieldTitle, *condition.Title})
	}

	if len(conds) > 0 {
		session = session.Where(builder.And(conds...))
	}
	pagerOrder(session, condition, WithDefaultOrderField(entity.ConversationFieldUpdatedAt))

	var results []*entity.Conversation
	total, err := session.FindAndCount(&results)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversation: %w", err)
	}

	return results, total, nil
}

func (r *ConversationRepository) UpdateTitle(conversationID, title string) error {
	_, err := r.session.Table(entity.TableNameConversation).
		Where(builder.Eq{entity.ConversationFieldID: conversationID}).
		Update(map[string]interface{}{
			entity.ConversationFieldTitle:     title,
			entity.ConversationFieldUpdatedAt: time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Touch(conversationID string, updatedAt time.Time) error {
	_, err := r.session.Table(entity.TableNameConversation).
		Where(builder.Eq{entity.ConversationFieldID: conversationID}).
		Update(map[string]interface{}{
			entity.ConversationFieldUpdatedAt: updatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Delete(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}

	_, err := r.session.Table(entity.TableNameConversation).
		Where(builder.Eq{entity.ConversationFieldID: conversationID}).
		Delete(&entity.Conversation{})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
