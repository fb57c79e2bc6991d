package constant

const (
	DefaultPageLimit = 10
)

const (
	EmptyString = ""
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// 会话标题最大长度（按字符）
const ConversationTitleMaxRunes = 50

// 对话拼接相关的提示词常量
const (
	// 对话系统提示词
	ChatSystemPrompt = "你是一个乐于助人的 AI 助手。回答时结合用户画像和历史记忆，但不要编造历史中不存在的内容。"

	// 用户画像提示词模板，参数依次为：技术水平、讲解风格、感兴趣的话题、喜欢、不喜欢
	ProfilePromptTemplate = `用户画像：
- 技术水平：%s
- 偏好的讲解风格：%s
- 常聊话题：%s
- 喜欢：%s
- 不喜欢：%s`

	// 记忆上下文提示词模板，这个是对话中使用
	MemoryContextPromptTemplate = "以下是与当前问题相关的记忆，仅作参考：\n%s"

	// Format 输出的分段标题
	MemoryLongTermHeader  = "相关历史记忆："
	MemoryShortTermHeader = "最近对话："
	MemoryCodeMarker      = "[code]"
)
