package model

import (
	"fmt"
	"strings"
)

// TechnicalLevel 技术水平，有序：beginner < intermediate < advanced < expert
type TechnicalLevel string

const (
	TechnicalLevelBeginner     TechnicalLevel = "beginner"
	TechnicalLevelIntermediate TechnicalLevel = "intermediate"
	TechnicalLevelAdvanced     TechnicalLevel = "advanced"
	TechnicalLevelExpert       TechnicalLevel = "expert"
)

var technicalLevelRank = map[TechnicalLevel]int{
	TechnicalLevelBeginner:     0,
	TechnicalLevelIntermediate: 1,
	TechnicalLevelAdvanced:     2,
	TechnicalLevelExpert:       3,
}

// Rank 返回等级序号，非法值返回 -1
func (l TechnicalLevel) Rank() int {
	if r, ok := technicalLevelRank[l]; ok {
		return r
	}
	return -1
}

func (l TechnicalLevel) Valid() bool {
	return l.Rank() >= 0
}

func ParseTechnicalLevel(s string) (TechnicalLevel, error) {
	l := TechnicalLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("technical_level must be one of [beginner, intermediate, advanced, expert], got %q", s)
	}
	return l, nil
}

// ExplanationStyle 讲解风格，封闭集合
type ExplanationStyle string

const (
	ExplanationStyleConcise       ExplanationStyle = "concise"
	ExplanationStyleDetailed      ExplanationStyle = "detailed"
	ExplanationStyleStepByStep    ExplanationStyle = "step_by_step"
	ExplanationStyleExampleDriven ExplanationStyle = "example_driven"
	ExplanationStyleBalanced      ExplanationStyle = "balanced"
)

var explanationStyles = map[ExplanationStyle]struct{}{
	ExplanationStyleConcise:       {},
	ExplanationStyleDetailed:      {},
	ExplanationStyleStepByStep:    {},
	ExplanationStyleExampleDriven: {},
	ExplanationStyleBalanced:      {},
}

func (s ExplanationStyle) Valid() bool {
	_, ok := explanationStyles[s]
	return ok
}

func ParseExplanationStyle(s string) (ExplanationStyle, error) {
	style := ExplanationStyle(strings.ToLower(strings.TrimSpace(s)))
	if !style.Valid() {
		return "", fmt.Errorf("explanation_style must be one of [concise, detailed, step_by_step, example_driven, balanced], got %q", s)
	}
	return style, nil
}

// 可被手动锁定的画像字段
const (
	ProfileFieldTechnicalLevel   = "technical_level"
	ProfileFieldExplanationStyle = "explanation_style"
	ProfileFieldTopicFrequency   = "topic_frequency"
)

var lockableProfileFields = map[string]struct{}{
	ProfileFieldTechnicalLevel:   {},
	ProfileFieldExplanationStyle: {},
	ProfileFieldTopicFrequency:   {},
}

func IsLockableProfileField(field string) bool {
	_, ok := lockableProfileFields[field]
	return ok
}

// ProfileOverrides 手动修改画像，修改过的字段会被锁定，推断不再覆盖
type ProfileOverrides struct {
	TechnicalLevel   *string  `json:"technical_level"`
	ExplanationStyle *string  `json:"explanation_style"`
	Likes            []string `json:"likes"`
	Dislikes         []string `json:"dislikes"`
	// 解除锁定的字段
	Unlock []string `json:"unlock"`
}

// ProfileTurn 增量更新画像用的一条用户消息
type ProfileTurn struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}
