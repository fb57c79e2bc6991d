package llm_model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/pkg/tools"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const (
	clientNameChatModel = "chat_model"
)

type ClientChatModel struct {
	config *Config
	client *openai.Client
}

// ConfigFromViper 从全局配置读取大模型配置
func ConfigFromViper() *Config {
	cfg := config.GetInstance()
	conf := DefaultConfig()
	conf.Addr = cfg.GetString(config.ClientChatModelAddr)
	conf.Model = cfg.GetString(config.ClientChatModelModel)
	conf.Token = cfg.GetString(config.ClientChatModelAPIKey)
	if cfg.IsSet(config.ClientChatModelTemperature) {
		conf.Temperature = cast.ToFloat32(cfg.GetFloat64(config.ClientChatModelTemperature))
	}
	conf.MaxTokens = cfg.GetIntOrDefault(config.ClientChatModelMaxTokens, conf.MaxTokens)
	return conf
}

// NewClient 创建大模型客户端
func NewClient(conf *Config, opts ...Option) *ClientChatModel {
	if conf == nil {
		conf = DefaultConfig()
	}
	for _, opt := range opts {
		opt(conf)
	}

	clientConfig := openai.DefaultConfig(conf.Token)
	if conf.Addr != "" {
		clientConfig.BaseURL = conf.Addr
	}

	return &ClientChatModel{
		config: conf,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// ModelName 当前使用的模型
func (zc *ClientChatModel) ModelName() string {
	return zc.config.Model
}

// StreamChatCompletions 流式调用，每收到一段内容回调一次 onDelta，返回拼接后的完整回复
func (zc *ClientChatModel) StreamChatCompletions(ctx context.Context, messages []openai.ChatCompletionMessage, onDelta func(delta string) error) (string, error) {
	stream, err := zc.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		Stream:      true,
	})
	if err != nil {
		log.Errorf("%s stream creation error: %v", clientNameChatModel, err)
		return "", err
	}

	defer tools.ErrorWithPrintContext(stream.Close, "close stream")

	var full strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Errorf("%s stream.Recv error: %v", clientNameChatModel, err)
			return full.String(), err
		}
		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				log.Errorf("%s stream write error: %v", clientNameChatModel, err)
				return full.String(), err
			}
		}
	}

	return full.String(), nil
}

// @Description 封装非流式调用，直接返回完整结果
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success *openai.ChatCompletionResponse
// @Success error
func (zc *ClientChatModel) PostChatCompletionsNonStream(c context.Context, messages []openai.ChatCompletionMessage) (*openai.ChatCompletionResponse, error) {
	// 创建请求结构
	request := openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		Stream:      false,
	}

	// debug 出完整的请求参数，json格式（仅在 debug 级别时序列化）
	if log.GetLevel() == log.DebugLevel {
		requestJson, err := json.MarshalIndent(request, "", "  ")
		if err != nil {
			log.Errorf("%s chat completion request json marshal error: %v", clientNameChatModel, err)
			return nil, err
		}
		// 直接输出格式化的 JSON 到标准输出，避免日志系统转义换行符
		if _, err := fmt.Fprintf(os.Stdout, "[DEBUG] %s chat completion request:\n%s\n", clientNameChatModel, string(requestJson)); err != nil {
			log.Warnf("%s failed to write debug output: %v", clientNameChatModel, err)
		}
	}

	response, err := zc.client.CreateChatCompletion(c, request)

	if err != nil {
		log.Errorf("%s chat completion error: %v", clientNameChatModel, err)
		return nil, err
	}

	return &response, nil
}

// @Description 封装非流式调用，只返回响应内容字符串
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success string
// @Success error
func (zc *ClientChatModel) PostChatCompletionsNonStreamContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	response, err := zc.PostChatCompletionsNonStream(c, messages)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		log.Errorf("%s chat completion response has no choices", clientNameChatModel)
		return "", fmt.Errorf("chat completion response has no choices")
	}

	content := response.Choices[0].Message.Content
	if content == "" {
		log.Warnf("%s chat completion response content is empty", clientNameChatModel)
	}

	return content, nil
}
