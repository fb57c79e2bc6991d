package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"
	"github.com/parththirwani/ChatterStack-sub001/pkg/str"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tools"
	"github.com/parththirwani/ChatterStack-sub001/repository"
	"github.com/parththirwani/ChatterStack-sub001/repository/factory"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Forgetter 异步写入方，删除会话时先让它停止接收该会话的数据
type Forgetter interface {
	Forget(conversationID string)
	Restore(conversationID string)
}

type Service struct {
	repositoryFactory factory.Factory
	shortTerm         shortterm.Store
	vectors           repository.FragmentVectorRepository
	forgetter         Forgetter
	now               func() time.Time
}

// NewService forgetter 可以为 nil
func NewService(repositoryFactory factory.Factory, shortTerm shortterm.Store, vectors repository.FragmentVectorRepository, forgetter Forgetter) *Service {
	return &Service{
		repositoryFactory: repositoryFactory,
		shortTerm:         shortTerm,
		vectors:           vectors,
		forgetter:         forgetter,
		now:               time.Now,
	}
}

// Ensure 返回会话，conversationID 为空或不存在时新建，标题取首条用户消息
func (s *Service) Ensure(ctx context.Context, userID, conversationID, firstMessage string) (*entity.Conversation, *model.Error) {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	conversations, err := s.repositoryFactory.NewConversationRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	if conversationID != "" {
		existing, err := conversations.Get(conversationID)
		if err != nil {
			return nil, model.NewError(model.ErrorDB, err)
		}
		if existing != nil {
			if existing.UserID != userID {
				return nil, model.NewErrorWithMessage(model.ErrorConversationNotFound,
					fmt.Sprintf("conversation %s not found", conversationID))
			}
			return existing, nil
		}
	} else {
		conversationID = uuid.NewString()
	}

	now := s.now()
	created := &entity.Conversation{
		ID:        conversationID,
		UserID:    userID,
		Title:     str.TruncateRunes(firstMessage, constant.ConversationTitleMaxRunes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := conversations.Insert(created); err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if s.forgetter != nil {
		s.forgetter.Restore(conversationID)
	}
	return created, nil
}

// AppendMessages 写入消息并刷新会话更新时间
func (s *Service) AppendMessages(ctx context.Context, conversationID string, messages ...*entity.Message) *model.Error {
	if len(messages) == 0 {
		return nil
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	messageRepo, err := s.repositoryFactory.NewMessageRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}
	conversations, err := s.repositoryFactory.NewConversationRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}

	if err := messageRepo.Insert(messages...); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	if err := conversations.Touch(conversationID, messages[len(messages)-1].CreatedAt); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, condition *model.GetConversationCondition) ([]*entity.Conversation, int64, *model.Error) {
	if condition == nil || condition.UserID == nil || strings.TrimSpace(*condition.UserID) == "" {
		return nil, 0, model.NewErrorVerificationFailed(model.ErrorParams, "user_id is required")
	}
	if condition.Pager == nil {
		condition.Pager = &model.Pager{Limit: constant.DefaultPageLimit}
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	conversations, err := s.repositoryFactory.NewConversationRepository(session)
	if err != nil {
		return nil, 0, model.NewError(model.ErrorNewRepo, err)
	}
	list, total, err := conversations.List(condition)
	if err != nil {
		return nil, 0, model.NewError(model.ErrorDB, err)
	}
	return list, total, nil
}

func (s *Service) Messages(ctx context.Context, conversationID string) ([]*entity.Message, *model.Error) {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	messageRepo, err := s.repositoryFactory.NewMessageRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}
	messages, err := messageRepo.List(&model.GetMessageCondition{ConversationID: &conversationID})
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	return messages, nil
}

// ShortTerm 会话当前缓存的最近对话
func (s *Service) ShortTerm(ctx context.Context, conversationID string) ([]model.Turn, *model.Error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorEmptyId, "conversation_id is required")
	}
	turns, err := s.shortTerm.Get(ctx, conversationID)
	if err != nil {
		return nil, model.NewError(model.ErrorCache, err)
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return turns, nil
}

// Delete 事务内删除会话和消息，之后清理短期缓存和向量库，后两步失败只记日志。
// 清理前先标记删除，避免尚在写入中的数据在清理后重新出现
func (s *Service) Delete(ctx context.Context, conversationID string) *model.Error {
	if strings.TrimSpace(conversationID) == "" {
		return model.NewErrorVerificationFailed(model.ErrorEmptyId, "conversation_id is required")
	}

	if merr := s.deleteRelational(ctx, conversationID); merr != nil {
		return merr
	}
	if s.forgetter != nil {
		s.forgetter.Forget(conversationID)
	}

	if err := s.shortTerm.Delete(ctx, conversationID); err != nil {
		log.WithError(err).WithField("conversation_id", conversationID).Warn("delete short-term cache failed")
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteByConversation(ctx, conversationID); err != nil {
			log.WithError(err).WithField("conversation_id", conversationID).Warn("delete conversation vectors failed")
		}
	}
	return nil
}

func (s *Service) deleteRelational(ctx context.Context, conversationID string) *model.Error {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	conversations, err := s.repositoryFactory.NewConversationRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}
	messageRepo, err := s.repositoryFactory.NewMessageRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}

	existing, err := conversations.Get(conversationID)
	if err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	if existing == nil {
		return model.NewErrorWithMessage(model.ErrorConversationNotFound, fmt.Sprintf("conversation %s not found", conversationID))
	}

	if err := session.Begin(); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	if err := messageRepo.DeleteByConversation(conversationID); err != nil {
		tools.ErrorWithPrintContext(session.Rollback, "rollback delete conversation %s", conversationID)
		return model.NewError(model.ErrorDB, err)
	}
	if err := conversations.Delete(conversationID); err != nil {
		tools.ErrorWithPrintContext(session.Rollback, "rollback delete conversation %s", conversationID)
		return model.NewError(model.ErrorDB, err)
	}
	if err := session.Commit(); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	return nil
}
