package profile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/repository"
	"github.com/parththirwani/ChatterStack-sub001/repository/interfaces"
)

type fakeSession struct{}

func (fakeSession) Begin() error    { return nil }
func (fakeSession) Close() error    { return nil }
func (fakeSession) Commit() error   { return nil }
func (fakeSession) Rollback() error { return nil }

type fakeProfiles struct {
	mu       sync.Mutex
	rows     map[string]*entity.UserProfile
	conflict int
}

func (f *fakeProfiles) Get(userID string) (*entity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID].Clone(), nil
}

func (f *fakeProfiles) Insert(profile *entity.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[profile.UserID]; ok {
		return errors.New("duplicate key")
	}
	f.rows[profile.UserID] = profile.Clone()
	return nil
}

func (f *fakeProfiles) Update(profile *entity.UserProfile, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict > 0 {
		// 模拟其他实例抢先写入
		f.conflict--
		f.rows[profile.UserID].Version++
	}
	current, ok := f.rows[profile.UserID]
	if !ok || current.Version != expectedVersion {
		return model.NewErrorWithMessage(model.ErrorProfileConflict, "conflict")
	}
	f.rows[profile.UserID] = profile.Clone()
	return nil
}

func (f *fakeProfiles) Delete(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, userID)
	return nil
}

type fakeMessages struct {
	rows []*entity.Message
}

func (f *fakeMessages) Insert(messages ...*entity.Message) error {
	f.rows = append(f.rows, messages...)
	return nil
}

func (f *fakeMessages) List(condition *model.GetMessageCondition) ([]*entity.Message, error) {
	var result []*entity.Message
	for _, m := range f.rows {
		if condition.UserID != nil && m.UserID != *condition.UserID {
			continue
		}
		if condition.Role != nil && m.Role != *condition.Role {
			continue
		}
		result = append(result, m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if condition.Pager != nil && condition.Limit > 0 && len(result) > condition.Limit {
		result = result[:condition.Limit]
	}
	return result, nil
}

func (f *fakeMessages) DeleteByConversation(conversationID string) error {
	return nil
}

type fakeFactory struct {
	profiles *fakeProfiles
	messages *fakeMessages
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		profiles: &fakeProfiles{rows: map[string]*entity.UserProfile{}},
		messages: &fakeMessages{},
	}
}

func (f *fakeFactory) NewSession(ctx context.Context) interfaces.Session {
	return fakeSession{}
}

func (f *fakeFactory) Sync() error {
	return nil
}

func (f *fakeFactory) NewConversationRepository(session interfaces.Session) (repository.ConversationRepository, error) {
	return nil, errors.New("not used")
}

func (f *fakeFactory) NewMessageRepository(session interfaces.Session) (repository.MessageRepository, error) {
	return f.messages, nil
}

func (f *fakeFactory) NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error) {
	return f.profiles, nil
}
