package xormimplement

import (
	"fmt"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"xorm.io/builder"
)

type UserProfileRepository struct {
	session *Session
}

func NewUserProfileRepository(session *Session) repository.UserProfileRepository {
	return &UserProfileRepository{session: session}
}

func (r *UserProfileRepository) Get(userID string) (*entity.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	result := &entity.UserProfile{}
	ok, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{entity.UserProfileFieldUserID: userID}).
		Get(result)
	if err != nil {
		return nil, fmt.Errorf("failed to get user_profile: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return result, nil
}

func (r *UserProfileRepository) Insert(profile *entity.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	_, err := r.session.Table(entity.TableNameUserProfile).Insert(profile)
	if err != nil {
		return fmt.Errorf("failed to insert user_profile: %w", err)
	}
	return nil
}

func (r *UserProfileRepository) Update(profile *entity.UserProfile, expectedVersion int64) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	affected, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{
			entity.UserProfileFieldUserID:  profile.UserID,
			entity.UserProfileFieldVersion: expectedVersion,
		}).
		AllCols().
		Update(profile)
	if err != nil {
		return fmt.Errorf("failed to update user_profile: %w", err)
	}
	if affected == 0 {
		return model.NewErrorWithMessage(model.ErrorProfileConflict,
			fmt.Sprintf("profile %s changed since version %d", profile.UserID, expectedVersion))
	}

	return nil
}

func (r *UserProfileRepository) Delete(userID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	_, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{entity.UserProfileFieldUserID: userID}).
		Delete(&entity.UserProfile{})
	if err != nil {
		return fmt.Errorf("failed to delete user_profile: %w", err)
	}

	return nil
}
