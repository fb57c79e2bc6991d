package factory

import (
	"context"

	"github.com/parththirwani/ChatterStack-sub001/repository"
	"github.com/parththirwani/ChatterStack-sub001/repository/interfaces"
)

type Factory interface {
	NewSession(ctx context.Context) interfaces.Session
	// Sync 建表，bootstrap 命令和测试使用
	Sync() error
	NewConversationRepository(session interfaces.Session) (repository.ConversationRepository, error)
	NewMessageRepository(session interfaces.Session) (repository.MessageRepository, error)
	NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error)
}
