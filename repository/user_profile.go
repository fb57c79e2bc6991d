package repository

import (
	"github.com/parththirwani/ChatterStack-sub001/entity"
)

type UserProfileRepository interface {
	// Get 不存在时返回 nil, nil
	Get(userID string) (*entity.UserProfile, error)
	Insert(profile *entity.UserProfile) error
	// Update 乐观锁更新，只有库中版本等于 expectedVersion 时才写入，否则返回 ErrorProfileConflict
	Update(profile *entity.UserProfile, expectedVersion int64) error
	Delete(userID string) error
}
