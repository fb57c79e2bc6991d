package llm_model

// Config 大模型调用配置
type Config struct {
	Addr        string  `json:"addr"`        // API基础地址，需带 /v1
	Model       string  `json:"llm_model"`   // 模型名称
	Token       string  `json:"token"`       // API密钥
	Temperature float32 `json:"temperature"` // 温度参数，控制输出随机性
	MaxTokens   int     `json:"maxTokens"`   // 最大输出token数
}

// Option 配置选项函数类型
type Option func(*Config)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// WithTemperature 设置温度参数
func WithTemperature(temperature float32) Option {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithMaxTokens 设置最大输出token数
func WithMaxTokens(maxTokens int) Option {
	return func(c *Config) {
		c.MaxTokens = maxTokens
	}
}
