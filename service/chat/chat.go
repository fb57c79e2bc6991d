package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"
	"github.com/parththirwani/ChatterStack-sub001/pkg/shortterm"
	"github.com/parththirwani/ChatterStack-sub001/service/conversation"
	"github.com/parththirwani/ChatterStack-sub001/service/memory"
	"github.com/parththirwani/ChatterStack-sub001/service/profile"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// ChatModel 对话模型，llm_model.ClientChatModel 实现了它
type ChatModel interface {
	ModelName() string
	StreamChatCompletions(ctx context.Context, messages []openai.ChatCompletionMessage, onDelta func(delta string) error) (string, error)
	PostChatCompletionsNonStreamContent(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

type Service struct {
	conversations *conversation.Service
	retriever     *memory.Retriever
	pipeline      *memory.Pipeline
	profiles      *profile.Engine
	shortTerm     shortterm.Store
	llm           ChatModel
	now           func() time.Time
}

func NewService(conversations *conversation.Service, retriever *memory.Retriever, pipeline *memory.Pipeline, profiles *profile.Engine, shortTerm shortterm.Store, llm ChatModel) *Service {
	return &Service{
		conversations: conversations,
		retriever:     retriever,
		pipeline:      pipeline,
		profiles:      profiles,
		shortTerm:     shortTerm,
		llm:           llm,
		now:           time.Now,
	}
}

// Chat 处理一轮对话。onDelta 不为 nil 时流式返回，每段内容回调一次。
// 回复完成后的缓存、持久化、记忆写入、画像更新都不会让本次请求失败
func (s *Service) Chat(ctx context.Context, req *model.ChatRequest, onDelta func(delta string) error) (*model.ChatResponse, *model.Error) {
	stream := onDelta != nil
	response, merr := s.chat(ctx, req, onDelta)
	result := "ok"
	if merr != nil {
		result = "error"
	}
	metrics.ChatRequests.WithLabelValues(fmt.Sprint(stream), result).Inc()
	return response, merr
}

func (s *Service) chat(ctx context.Context, req *model.ChatRequest, onDelta func(delta string) error) (*model.ChatResponse, *model.Error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorParams, "user_id and message are required")
	}

	conv, merr := s.conversations.Ensure(ctx, req.UserID, req.ConversationID, req.Message)
	if merr != nil {
		return nil, merr
	}

	userAt := s.now()
	userMessage := &entity.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           constant.RoleUser,
		Content:        req.Message,
		CreatedAt:      userAt,
	}
	if merr := s.conversations.AppendMessages(ctx, conv.ID, userMessage); merr != nil {
		return nil, merr
	}

	// 检索在记录本轮之前进行，短期上下文只包含历史
	retrieval := s.retriever.Retrieve(ctx, &model.RetrieveRequest{
		UserID:         req.UserID,
		Query:          req.Message,
		ConversationID: conv.ID,
		TimeWindowDays: req.TimeWindowDays,
	})
	messages := s.buildMessages(ctx, req, retrieval)

	var (
		reply string
		err   error
	)
	if onDelta != nil {
		reply, err = s.llm.StreamChatCompletions(ctx, messages, onDelta)
	} else {
		reply, err = s.llm.PostChatCompletionsNonStreamContent(ctx, messages)
	}
	if err != nil {
		return nil, model.NewError(model.ErrorLLM, err)
	}

	assistantMessage := &entity.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           constant.RoleAssistant,
		Content:        reply,
		ModelUsed:      s.llm.ModelName(),
		CreatedAt:      userAt.Add(time.Millisecond),
	}
	// 客户端断开不影响收尾
	s.afterReply(context.WithoutCancel(ctx), userMessage, assistantMessage)

	return &model.ChatResponse{
		Message:        reply,
		ConversationID: conv.ID,
		MessageID:      assistantMessage.ID,
		RetrievalStage: retrieval.Stage,
	}, nil
}

func (s *Service) buildMessages(ctx context.Context, req *model.ChatRequest, retrieval *model.RetrievalContext) []openai.ChatCompletionMessage {
	system := []string{constant.ChatSystemPrompt}

	userProfile, merr := s.profiles.GetProfile(ctx, req.UserID)
	if merr != nil {
		if merr.Code != model.ErrorProfileNotFound {
			log.WithField("user_id", req.UserID).Warnf("load profile failed, use defaults: %s", merr.String())
		}
		userProfile = profile.NewDefaultProfile(req.UserID)
	}
	system = append(system, profile.RenderSteering(userProfile))

	// 短期对话作为历史消息单独传入，这里只拼长期记忆
	if block := memory.Format(&model.RetrievalContext{Chunks: retrieval.Chunks, GeneratedAt: retrieval.GeneratedAt}); block != "" {
		system = append(system, fmt.Sprintf(constant.MemoryContextPromptTemplate, block))
	}

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: strings.Join(system, "\n\n"),
	}}
	for _, turn := range retrieval.ShortTermContext {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
}

func (s *Service) afterReply(ctx context.Context, userMessage, assistantMessage *entity.Message) {
	conversationID := userMessage.ConversationID
	fields := log.Fields{"conversation_id": conversationID, "user_id": userMessage.UserID}
	if s.pipeline.Forgotten(conversationID) {
		log.WithFields(fields).Info("conversation deleted during reply, skip recording")
		return
	}

	for _, message := range []*entity.Message{userMessage, assistantMessage} {
		turn := model.Turn{
			Role:      message.Role,
			Content:   message.Content,
			ModelUsed: message.ModelUsed,
			Timestamp: message.CreatedAt,
		}
		if err := s.shortTerm.Add(ctx, conversationID, turn); err != nil {
			log.WithError(err).WithFields(fields).Warn("record short-term turn failed")
		}
	}
	// 写缓存期间会话被删，删除方可能已清过缓存
	if s.pipeline.Forgotten(conversationID) {
		if err := s.shortTerm.Delete(ctx, conversationID); err != nil {
			log.WithError(err).WithFields(fields).Warn("delete short-term cache of deleted conversation failed")
		}
		return
	}

	if merr := s.conversations.AppendMessages(ctx, assistantMessage.ConversationID, assistantMessage); merr != nil {
		log.WithFields(fields).Warnf("persist assistant message failed: %s", merr.String())
	}

	for _, message := range []*entity.Message{userMessage, assistantMessage} {
		timestamp := message.CreatedAt
		if merr := s.pipeline.Ingest(ctx, &model.IngestRequest{
			UserID:         message.UserID,
			ConversationID: message.ConversationID,
			MessageID:      message.ID,
			Content:        message.Content,
			Role:           message.Role,
			ModelUsed:      message.ModelUsed,
			Timestamp:      &timestamp,
		}); merr != nil {
			log.WithFields(fields).Warnf("submit %s message to ingestion failed: %s", message.Role, merr.String())
		}
	}

	s.profiles.IncrementalUpdateAsync(userMessage.UserID, &model.ProfileTurn{
		Content:        userMessage.Content,
		ConversationID: userMessage.ConversationID,
	})
}
