package entity

import (
	"time"

	"github.com/parththirwani/ChatterStack-sub001/model"
)

const (
	TableNameUserProfile = "user_profile"

	UserProfileFieldUserID           = "user_id"
	UserProfileFieldTechnicalLevel   = "technical_level"
	UserProfileFieldTechnicalScore   = "technical_score"
	UserProfileFieldExplanationStyle = "explanation_style"
	UserProfileFieldTopicFrequency   = "topic_frequency"
	UserProfileFieldLikes            = "likes"
	UserProfileFieldDislikes         = "dislikes"
	UserProfileFieldLockedFields     = "locked_fields"
	UserProfileFieldMessageCount     = "message_count"
	UserProfileFieldVersion          = "version"
	UserProfileFieldLastUpdated      = "last_updated"
)

type UserProfile struct {
	UserID           string                 `xorm:"pk varchar(64) user_id" json:"user_id"`
	TechnicalLevel   model.TechnicalLevel   `xorm:"varchar(16) technical_level" json:"technical_level"`
	TechnicalScore   float64                `xorm:"technical_score" json:"technical_score"`
	ExplanationStyle model.ExplanationStyle `xorm:"varchar(32) explanation_style" json:"explanation_style"`
	TopicFrequency   map[string]float64     `xorm:"topic_frequency json" json:"topic_frequency"`
	Likes            []string               `xorm:"likes json" json:"likes"`
	Dislikes         []string               `xorm:"dislikes json" json:"dislikes"`
	LockedFields     []string               `xorm:"locked_fields json" json:"locked_fields"`
	MessageCount     int64                  `xorm:"message_count" json:"message_count"`
	Version          int64                  `xorm:"bigint 'version'" json:"version"`
	LastUpdated      time.Time              `xorm:"last_updated" json:"last_updated"`
}

func (e *UserProfile) TableName() string {
	return TableNameUserProfile
}

// IsLocked 字段是否被手动修改锁定
func (e *UserProfile) IsLocked(field string) bool {
	for _, f := range e.LockedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Clone 深拷贝，仓库实现和服务层之间传递时使用
func (e *UserProfile) Clone() *UserProfile {
	if e == nil {
		return nil
	}
	c := *e
	if e.TopicFrequency != nil {
		c.TopicFrequency = make(map[string]float64, len(e.TopicFrequency))
		for k, v := range e.TopicFrequency {
			c.TopicFrequency[k] = v
		}
	}
	c.Likes = append([]string(nil), e.Likes...)
	c.Dislikes = append([]string(nil), e.Dislikes...)
	c.LockedFields = append([]string(nil), e.LockedFields...)
	return &c
}
