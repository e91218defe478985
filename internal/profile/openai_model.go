package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/ratelimit"
)

// ErrStreamUnsupported 档案生成只需要一次性回复
var ErrStreamUnsupported = errors.New("OpenAIChatModel 不支持流式输出")

// ChatCompletionClient go-openai 客户端中用到的最小接口
type ChatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIChatModel 把 OpenAI 兼容接口适配为 eino 的 BaseChatModel
type OpenAIChatModel struct {
	client      ChatCompletionClient
	model       string
	temperature float32
	maxTokens   int
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 按配置创建模型，APIKey 为空时返回 ErrLLMDisabled
func NewOpenAIChatModel(cfg config.LLMConfig) (*OpenAIChatModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrLLMDisabled
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewOpenAIChatModelWithClient(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
}

// NewOpenAIChatModelWithClient 使用现有客户端创建模型
func NewOpenAIChatModelWithClient(client ChatCompletionClient, modelName string, temperature float32, maxTokens int) *OpenAIChatModel {
	return &OpenAIChatModel{
		client:      client,
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: &m.temperature,
		MaxTokens:   &m.maxTokens,
	}, opts...)

	req := openai.ChatCompletionRequest{
		Model:    *options.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(input)),
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	for _, msg := range input {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("调用LLM失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM未返回任何结果")
	}
	out := schema.AssistantMessage(resp.Choices[0].Message.Content, nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	return out, nil
}

func (m *OpenAIChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, ErrStreamUnsupported
}

func toOpenAIRole(role schema.RoleType) string {
	switch role {
	case schema.System:
		return openai.ChatMessageRoleSystem
	case schema.Assistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// IsRetryable 429 和 5xx 可重试，其余按错误信息判断
func IsRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return ratelimit.IsRetryableError(err)
}
