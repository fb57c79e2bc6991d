package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/memory"
	"github.com/parththirwani/ChatterStack-sub001/pkg/metrics"
	"github.com/parththirwani/ChatterStack-sub001/pkg/str"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tools"
	"github.com/parththirwani/ChatterStack-sub001/repository/factory"

	log "github.com/sirupsen/logrus"
)

const (
	// 乐观锁冲突时的重试次数，进程内已按用户串行，冲突只可能来自其他实例
	maxConflictRetries = 3

	defaultTechnicalScore = 0.25
)

type Options struct {
	// InferProfile 分析的最近用户消息条数
	HistoryLimit int
	// 异步增量更新的超时
	UpdateTimeout time.Duration
	// 技术分数的指数滑动平均系数
	Alpha float64
}

func DefaultOptions() Options {
	return Options{
		HistoryLimit:  200,
		UpdateTimeout: 10 * time.Second,
		Alpha:         0.1,
	}
}

// Engine 维护用户画像：全量推断、逐条增量更新、手动修改。同一用户的写操作串行执行
type Engine struct {
	opts              Options
	repositoryFactory factory.Factory
	locks             *tools.KeyedMutex
	pending           sync.WaitGroup
	now               func() time.Time
}

func NewEngine(opts Options, repositoryFactory factory.Factory) *Engine {
	defaults := DefaultOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = defaults.UpdateTimeout
	}
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = defaults.Alpha
	}
	return &Engine{
		opts:              opts,
		repositoryFactory: repositoryFactory,
		locks:             tools.NewKeyedMutex(),
		now:               time.Now,
	}
}

// NewDefaultProfile 还没有任何信号时的画像
func NewDefaultProfile(userID string) *entity.UserProfile {
	return &entity.UserProfile{
		UserID:           userID,
		TechnicalLevel:   memory.LevelFromScore(defaultTechnicalScore),
		TechnicalScore:   defaultTechnicalScore,
		ExplanationStyle: model.ExplanationStyleBalanced,
		TopicFrequency:   map[string]float64{},
		Likes:            []string{},
		Dislikes:         []string{},
		LockedFields:     []string{},
	}
}

func (e *Engine) GetProfile(ctx context.Context, userID string) (*entity.UserProfile, *model.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorEmptyId, "user_id is required")
	}

	session := e.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	profiles, err := e.repositoryFactory.NewUserProfileRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}
	profile, err := profiles.Get(userID)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if profile == nil {
		return nil, model.NewErrorWithMessage(model.ErrorProfileNotFound, fmt.Sprintf("profile of user %s not found", userID))
	}
	return profile, nil
}

// InferProfile 用最近的用户消息整体重算技术水平、讲解风格、话题频率，锁定字段保持不变
func (e *Engine) InferProfile(ctx context.Context, userID string) (*entity.UserProfile, *model.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorEmptyId, "user_id is required")
	}

	history, merr := e.loadHistory(ctx, userID)
	if merr != nil {
		return nil, merr
	}
	analysis := analyse(history)

	profile, merr := e.mutate(ctx, userID, func(p *entity.UserProfile) error {
		if analysis.messages > 0 {
			if !p.IsLocked(model.ProfileFieldTechnicalLevel) {
				p.TechnicalScore = analysis.score
				p.TechnicalLevel = memory.LevelFromScore(analysis.score)
			}
			if !p.IsLocked(model.ProfileFieldExplanationStyle) {
				p.ExplanationStyle = analysis.style
			}
			if !p.IsLocked(model.ProfileFieldTopicFrequency) {
				p.TopicFrequency = analysis.topics
			}
		}
		if int64(analysis.messages) > p.MessageCount {
			p.MessageCount = int64(analysis.messages)
		}
		return nil
	})
	recordUpdate("infer", merr)
	if merr != nil {
		return nil, merr
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"messages": analysis.messages,
		"version":  profile.Version,
	}).Info("profile inferred")
	return profile, nil
}

// IncrementalUpdate 根据一条用户消息做轻量更新，version 恰好 +1
func (e *Engine) IncrementalUpdate(ctx context.Context, userID string, turn *model.ProfileTurn) *model.Error {
	if strings.TrimSpace(userID) == "" {
		return model.NewErrorVerificationFailed(model.ErrorEmptyId, "user_id is required")
	}
	if turn == nil {
		return model.NewErrorVerificationFailed(model.ErrorParams, "turn is required")
	}

	topics := memory.ExtractTopics(turn.Content)
	score := memory.TechnicalScore(turn.Content)
	style, hasStyle := memory.DominantStyle(memory.StyleSignals(turn.Content))

	_, merr := e.mutate(ctx, userID, func(p *entity.UserProfile) error {
		if !p.IsLocked(model.ProfileFieldTopicFrequency) {
			if p.TopicFrequency == nil {
				p.TopicFrequency = map[string]float64{}
			}
			for _, topic := range topics {
				p.TopicFrequency[strings.ToLower(topic)]++
			}
		}
		p.MessageCount++
		if !p.IsLocked(model.ProfileFieldTechnicalLevel) {
			p.TechnicalScore = (1-e.opts.Alpha)*p.TechnicalScore + e.opts.Alpha*score
			p.TechnicalLevel = memory.LevelFromScore(p.TechnicalScore)
		}
		if hasStyle && !p.IsLocked(model.ProfileFieldExplanationStyle) {
			p.ExplanationStyle = style
		}
		return nil
	})
	recordUpdate("incremental", merr)
	return merr
}

// IncrementalUpdateAsync 在请求链路之外执行增量更新，失败只记录日志
func (e *Engine) IncrementalUpdateAsync(userID string, turn *model.ProfileTurn) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.UpdateTimeout)
		defer cancel()

		if merr := e.IncrementalUpdate(ctx, userID, turn); merr != nil {
			log.WithField("user_id", userID).Warnf("incremental profile update failed: %s", merr.String())
		}
	}()
}

// Wait 等待所有异步增量更新完成
func (e *Engine) Wait() {
	e.pending.Wait()
}

// UpdateProfile 手动修改画像，被修改的字段加入锁定列表，之后的推断不再覆盖
func (e *Engine) UpdateProfile(ctx context.Context, userID string, overrides *model.ProfileOverrides) (*entity.UserProfile, *model.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewErrorVerificationFailed(model.ErrorEmptyId, "user_id is required")
	}
	if overrides == nil {
		return nil, model.NewErrorVerificationFailed(model.ErrorParams, "overrides are required")
	}

	var (
		level model.TechnicalLevel
		style model.ExplanationStyle
		err   error
	)
	if overrides.TechnicalLevel != nil {
		if level, err = model.ParseTechnicalLevel(*overrides.TechnicalLevel); err != nil {
			return nil, model.NewErrorVerificationFailed(model.ErrorParams, "%s", err.Error())
		}
	}
	if overrides.ExplanationStyle != nil {
		if style, err = model.ParseExplanationStyle(*overrides.ExplanationStyle); err != nil {
			return nil, model.NewErrorVerificationFailed(model.ErrorParams, "%s", err.Error())
		}
	}
	for _, field := range overrides.Unlock {
		if !model.IsLockableProfileField(field) {
			return nil, model.NewErrorVerificationFailed(model.ErrorParams, "field %q cannot be unlocked", field)
		}
	}

	profile, merr := e.mutate(ctx, userID, func(p *entity.UserProfile) error {
		p.LockedFields = str.RemoveFold(p.LockedFields, overrides.Unlock...)

		if overrides.TechnicalLevel != nil {
			p.TechnicalLevel = level
			p.LockedFields = str.MergeFold(p.LockedFields, model.ProfileFieldTechnicalLevel)
		}
		if overrides.ExplanationStyle != nil {
			p.ExplanationStyle = style
			p.LockedFields = str.MergeFold(p.LockedFields, model.ProfileFieldExplanationStyle)
		}
		if len(overrides.Likes) > 0 {
			p.Dislikes = str.RemoveFold(p.Dislikes, overrides.Likes...)
			p.Likes = str.MergeFold(p.Likes, overrides.Likes...)
		}
		if len(overrides.Dislikes) > 0 {
			p.Likes = str.RemoveFold(p.Likes, overrides.Dislikes...)
			p.Dislikes = str.MergeFold(p.Dislikes, overrides.Dislikes...)
		}
		return nil
	})
	recordUpdate("override", merr)
	return profile, merr
}

// mutate 在用户锁内读取画像（不存在则创建默认画像）、修改、按版本号写回
func (e *Engine) mutate(ctx context.Context, userID string, apply func(p *entity.UserProfile) error) (*entity.UserProfile, *model.Error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	session := e.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	profiles, err := e.repositoryFactory.NewUserProfileRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	for attempt := 0; ; attempt++ {
		current, err := profiles.Get(userID)
		if err != nil {
			return nil, model.NewError(model.ErrorDB, err)
		}

		isNew := current == nil
		if isNew {
			current = NewDefaultProfile(userID)
		}
		next := current.Clone()
		if err := apply(next); err != nil {
			return nil, model.NewError(model.ErrorParams, err)
		}
		next.Version = current.Version + 1
		next.LastUpdated = e.now()

		if isNew {
			err = profiles.Insert(next)
		} else {
			err = profiles.Update(next, current.Version)
		}
		if err == nil {
			return next, nil
		}

		var modelErr *model.Error
		if errors.As(err, &modelErr) && modelErr.Code == model.ErrorProfileConflict && attempt < maxConflictRetries {
			log.WithField("user_id", userID).Warnf("profile version conflict, retry %d", attempt+1)
			continue
		}
		if errors.As(err, &modelErr) {
			return nil, modelErr
		}
		return nil, model.NewError(model.ErrorDB, err)
	}
}

func (e *Engine) loadHistory(ctx context.Context, userID string) ([]*entity.Message, *model.Error) {
	session := e.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	messages, err := e.repositoryFactory.NewMessageRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	role := constant.RoleUser
	history, err := messages.List(&model.GetMessageCondition{
		UserID: &userID,
		Role:   &role,
		Pager:  &model.Pager{Limit: e.opts.HistoryLimit},
		Order:  &model.Order{OrderBy: entity.MessageFieldCreatedAt, OrderAsc: false},
	})
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	return history, nil
}

type historyAnalysis struct {
	messages int
	score    float64
	style    model.ExplanationStyle
	topics   map[string]float64
}

func analyse(history []*entity.Message) historyAnalysis {
	result := historyAnalysis{
		style:  model.ExplanationStyleBalanced,
		topics: map[string]float64{},
	}
	signals := map[model.ExplanationStyle]int{}
	total := 0.0
	for _, message := range history {
		if strings.TrimSpace(message.Content) == "" {
			continue
		}
		result.messages++
		total += memory.TechnicalScore(message.Content)
		for _, topic := range memory.ExtractTopics(message.Content) {
			result.topics[strings.ToLower(topic)]++
		}
		for style, n := range memory.StyleSignals(message.Content) {
			signals[style] += n
		}
	}
	if result.messages > 0 {
		result.score = total / float64(result.messages)
	}
	if style, ok := memory.DominantStyle(signals); ok {
		result.style = style
	}
	return result
}

func recordUpdate(kind string, merr *model.Error) {
	if merr != nil {
		metrics.ProfileUpdates.WithLabelValues(kind, "error").Inc()
		return
	}
	metrics.ProfileUpdates.WithLabelValues(kind, "ok").Inc()
}

// TopTopics 按权重降序取前 n 个话题，同权重按名称排序
func TopTopics(profile *entity.UserProfile, n int) []string {
	topics := make([]string, 0, len(profile.TopicFrequency))
	for topic := range profile.TopicFrequency {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		wi, wj := profile.TopicFrequency[topics[i]], profile.TopicFrequency[topics[j]]
		if wi != wj {
			return wi > wj
		}
		return topics[i] < topics[j]
	})
	if n > 0 && len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

// RenderSteering 生成注入 system prompt 的画像描述
func RenderSteering(profile *entity.UserProfile) string {
	if profile == nil {
		return ""
	}
	join := func(items []string) string {
		if len(items) == 0 {
			return "无"
		}
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf(constant.ProfilePromptTemplate,
		profile.TechnicalLevel,
		profile.ExplanationStyle,
		join(TopTopics(profile, 5)),
		join(profile.Likes),
		join(profile.Dislikes))
}
